package dockerclient

import (
	"context"
	"fmt"

	"github.com/0xa1bed0/imgship/internal/versions"
)

// DefaultBuildxConstraint is the oldest buildx that supports --secret
// together with local cache export.
const DefaultBuildxConstraint = ">=0.8.0"

// CheckBuildx runs `docker buildx version` and checks it against constraint.
// It returns the detected version.
func CheckBuildx(ctx context.Context, runner Runner, constraint string) (string, error) {
	if constraint == "" {
		constraint = DefaultBuildxConstraint
	}

	out, err := runner.Output(ctx, "", dockerBinary, []string{"buildx", "version"})
	if err != nil {
		return "", fmt.Errorf("docker buildx unavailable: %w", err)
	}

	v, err := versions.Satisfies("buildx", string(out), constraint)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
