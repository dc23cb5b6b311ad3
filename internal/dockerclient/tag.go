package dockerclient

import (
	"fmt"
	"strings"

	"github.com/containerd/platforms"
	"github.com/distribution/reference"
)

// ParsePlatforms turns user input into an ordered, de-duplicated platform
// list. Blank entries are ignored, so "" yields no platforms at all.
func ParsePlatforms(in []string) ([]platforms.Platform, error) {
	var out []platforms.Platform
	seen := map[string]struct{}{}

	for _, raw := range in {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := platforms.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPlatform, raw, err)
		}
		key := platforms.Format(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// PlatformSuffix renders p as a tag-safe "os-arch[-variant]".
func PlatformSuffix(p platforms.Platform) string {
	parts := []string{p.OS, p.Architecture}
	if p.Variant != "" {
		parts = append(parts, p.Variant)
	}
	return strings.Join(parts, "-")
}

// ImageTag composes "<image>[-<suffix>]:<branch>" and validates it as a
// docker reference.
func ImageTag(image, suffix, branch string) (string, error) {
	name := image
	if suffix != "" {
		name += "-" + suffix
	}
	tag := name + ":" + branch

	ref, err := reference.ParseNormalizedNamed(tag)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidReference, tag, err)
	}
	if _, ok := ref.(reference.Tagged); !ok {
		return "", fmt.Errorf("%w %q: missing tag", ErrInvalidReference, tag)
	}
	if _, ok := ref.(reference.Digested); ok {
		return "", fmt.Errorf("%w %q: digests are not allowed", ErrInvalidReference, tag)
	}
	return tag, nil
}
