// Package versions checks tool versions against semver constraints.
package versions

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrUnsatisfied is the sentinel you can check with errors.Is.
var ErrUnsatisfied = errors.New("version does not satisfy constraint")

// UnsatisfiedError reports a tool version outside the accepted range.
type UnsatisfiedError struct {
	Tool       string
	Version    string
	Constraint string
}

func (e *UnsatisfiedError) Error() string {
	return fmt.Sprintf("%s %s does not satisfy %q", e.Tool, e.Version, e.Constraint)
}

func (e *UnsatisfiedError) Unwrap() error { return ErrUnsatisfied }

// versionLiteral matches v?MAJOR.MINOR[.PATCH][-PRERELEASE][+BUILD].
var versionLiteral = regexp.MustCompile(`\bv?\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?`)

// Extract returns the first version-like literal in text, parsed.
//
// Vendor builds decorate the version ("0.11.2+azure-1", "v0.20.1-desktop.2");
// prerelease and build metadata are dropped so they compare as the release
// they are based on.
func Extract(text string) (*semver.Version, error) {
	lit := versionLiteral.FindString(text)
	if lit == "" {
		return nil, fmt.Errorf("no version found in %q", strings.TrimSpace(text))
	}
	v, err := semver.NewVersion(lit)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", lit, err)
	}
	release, err := v.SetPrerelease("")
	if err != nil {
		return nil, err
	}
	release, err = release.SetMetadata("")
	if err != nil {
		return nil, err
	}
	return &release, nil
}

// Satisfies parses the first version in versionText and checks it against constraint.
// A failed check returns an *UnsatisfiedError.
func Satisfies(tool, versionText, constraint string) (*semver.Version, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("invalid constraint %q: %w", constraint, err)
	}
	v, err := Extract(versionText)
	if err != nil {
		return nil, err
	}
	if !c.Check(v) {
		return v, &UnsatisfiedError{Tool: tool, Version: v.String(), Constraint: constraint}
	}
	return v, nil
}
