// Package identity derives the build identity (image, branch, target) a run
// operates under.
package identity

import (
	"slices"
	"strings"
	"unicode"
)

const (
	// UnknownBranch is used when the ref carries no usable branch name.
	UnknownBranch = "unknown"

	// DefaultTarget is the build-target qualifier when none is configured.
	DefaultTarget = "any"

	maxTagLen = 128
)

// DefaultMainBranches are the branches whose main image gets pushed.
var DefaultMainBranches = []string{"master", "development"}

var refPrefixes = []string{"refs/heads/", "refs/tags/"}

// Identity is fixed for the whole run.
type Identity struct {
	Image  string
	Branch string
	Target string
}

func New(image, ref, target string) Identity {
	if target == "" {
		target = DefaultTarget
	}
	return Identity{
		Image:  image,
		Branch: BranchFromRef(ref),
		Target: target,
	}
}

// Salt renders "<image>-<target>:<branch>", the identity folded into change digests.
func (id Identity) Salt() string {
	return id.Image + "-" + id.Target + ":" + id.Branch
}

// IsMainBranch reports whether the identity's branch is in mainBranches.
// Entries are git branch names and are compared in their tag form, so
// "release/1.0" matches the resolved branch "release-1.0".
func (id Identity) IsMainBranch(mainBranches []string) bool {
	return slices.ContainsFunc(mainBranches, func(b string) bool {
		b = SanitizeTag(strings.TrimSpace(b))
		return b != "" && b == id.Branch
	})
}

// BranchFromRef turns a source ref into a tag-safe branch name.
//
//	refs/heads/master       -> master
//	refs/heads/feature/x    -> feature-x
//	refs/tags/v1.2.0        -> v1.2.0
//	refs/pull/42/merge      -> merge
//	""                      -> unknown
func BranchFromRef(ref string) string {
	ref = strings.TrimSpace(ref)

	name := ""
	for _, p := range refPrefixes {
		if after, ok := strings.CutPrefix(ref, p); ok {
			name = after
			break
		}
	}
	if name == "" {
		name = ref
		if i := strings.LastIndexByte(ref, '/'); i >= 0 {
			name = ref[i+1:]
		}
	}

	name = SanitizeTag(name)
	if name == "" {
		return UnknownBranch
	}
	return name
}

// SanitizeTag maps s onto the docker tag charset [A-Za-z0-9_.-]: other
// characters become '-', leading '.' and '-' are trimmed, and the result is
// capped at 128 characters. Returns "" if nothing valid remains.
func SanitizeTag(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.TrimLeft(b.String(), ".-")
	if len(out) > maxTagLen {
		out = out[:maxTagLen]
	}
	return out
}
