package dockerclient

import (
	"errors"
	"fmt"
)

var (
	ErrBuildFailed      = errors.New("docker build failed")
	ErrInvalidReference = errors.New("invalid image reference")
	ErrInvalidPlatform  = errors.New("invalid platform")
)

// BuildFailedError is returned when a build invocation exits non-zero or
// cannot be started. Platform is empty for single, platform-less builds.
type BuildFailedError struct {
	Image    string
	Platform string
	// ExitCode is -1 when the process never produced one.
	ExitCode int
	Err      error
}

func (e *BuildFailedError) Error() string {
	target := e.Image
	if e.Platform != "" {
		target += " for platform " + e.Platform
	}
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%v: %s: exit code %d", ErrBuildFailed, target, e.ExitCode)
	}
	return fmt.Sprintf("%v: %s: %v", ErrBuildFailed, target, e.Err)
}

func (e *BuildFailedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBuildFailed}
	}
	return []error{ErrBuildFailed, e.Err}
}
