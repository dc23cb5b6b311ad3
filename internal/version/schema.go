package version

// ChangeSchemaVersion is folded into every change digest. Bumping it
// invalidates all recorded change entries, forcing the next run to rebuild
// the setup image.
//
// Bump for:
//   - Digest layout changes (seed order, length prefixing)
//   - Changes to the default tracked file set
//   - Changes to how setup images are built that old images do not reflect
//
// Don't bump for:
//   - CLI-only changes
//   - Logging changes
const ChangeSchemaVersion = 1
