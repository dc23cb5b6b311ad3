// Package pipeline sequences a run: conditional setup image, then the main image.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xa1bed0/imgship/internal/dockerclient"
	"github.com/0xa1bed0/imgship/internal/identity"
	"github.com/0xa1bed0/imgship/internal/logs"
)

const (
	SetupDockerfile = "Dockerfile.setup"
	MainDockerfile  = "Dockerfile"

	// DefaultWorkflowFile is tracked together with the setup Dockerfile.
	DefaultWorkflowFile = ".github/workflows/build.yml"

	setupImageSuffix = "-setup"
)

var ErrMissingDockerfile = errors.New("main Dockerfile not found")

// ChangeDetector reports whether tracked files changed since the last run.
// Forget undoes the record HasChanged made, so a failed build is retried.
type ChangeDetector interface {
	HasChanged(ctx context.Context, paths []string) (bool, error)
	Forget(ctx context.Context, paths []string) error
}

// Plan is everything a run needs to know, fixed before it starts.
type Plan struct {
	Identity     identity.Identity
	Workspace    string
	Platforms    []string
	MainBranches []string
	WorkflowFile string

	// Context is the build context relative to Workspace, "." when empty.
	Context string
}

type Deps struct {
	Builder  dockerclient.ImageBuilder
	Detector ChangeDetector

	// Preflight, if set, runs before any build.
	Preflight func(ctx context.Context) error
}

// Result records what a run did.
type Result struct {
	SetupFound bool
	SetupBuilt bool
	MainPushed bool
}

// Run executes the plan. Any failure stops the run; images pushed before the
// failure stay pushed.
func Run(ctx context.Context, plan Plan, deps Deps) (Result, error) {
	var res Result
	if deps.Builder == nil || deps.Detector == nil {
		return res, errors.New("pipeline: builder and detector required")
	}
	if plan.Workspace == "" {
		return res, errors.New("pipeline: workspace required")
	}
	if plan.WorkflowFile == "" {
		plan.WorkflowFile = DefaultWorkflowFile
	}
	if plan.Context == "" {
		plan.Context = "."
	}

	logs.Group("Docker build")
	defer logs.EndGroup()

	logs.Infof("image %s, branch %s, target %s", plan.Identity.Image, plan.Identity.Branch, plan.Identity.Target)

	if deps.Preflight != nil {
		if err := deps.Preflight(ctx); err != nil {
			return res, fmt.Errorf("preflight: %w", err)
		}
	}

	found, err := fileExists(filepath.Join(plan.Workspace, SetupDockerfile))
	if err != nil {
		return res, err
	}
	res.SetupFound = found

	if found {
		built, err := buildSetup(ctx, plan, deps)
		if err != nil {
			return res, err
		}
		res.SetupBuilt = built
	} else {
		logs.Debugf("no %s in %s, skipping setup image", SetupDockerfile, plan.Workspace)
	}

	pushed, err := buildMain(ctx, plan, deps)
	if err != nil {
		return res, err
	}
	res.MainPushed = pushed

	return res, nil
}

func buildSetup(ctx context.Context, plan Plan, deps Deps) (bool, error) {
	tracked := []string{SetupDockerfile, plan.WorkflowFile}
	changed, err := deps.Detector.HasChanged(ctx, tracked)
	if err != nil {
		return false, err
	}
	if !changed {
		logs.Infof("setup image is up to date, skipping")
		return false, nil
	}

	logs.Group(SetupDockerfile + " build")
	defer logs.EndGroup()

	// setup images are always published once rebuilt, whatever the branch
	err = deps.Builder.Build(ctx, dockerclient.BuildRequest{
		Image:      plan.Identity.Image + setupImageSuffix,
		Dockerfile: SetupDockerfile,
		Push:       true,
		Context:    plan.Context,
		Platforms:  plan.Platforms,
	})
	if err != nil {
		// the run may have been cancelled, the eviction must still land
		if ferr := deps.Detector.Forget(context.WithoutCancel(ctx), tracked); ferr != nil {
			logs.Warnf("setup build failed and its change entry could not be dropped, the next run may skip it: %v", ferr)
		}
		return false, err
	}
	return true, nil
}

func buildMain(ctx context.Context, plan Plan, deps Deps) (bool, error) {
	found, err := fileExists(filepath.Join(plan.Workspace, MainDockerfile))
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("%w in %s", ErrMissingDockerfile, plan.Workspace)
	}

	logs.Group(MainDockerfile + " build")
	defer logs.EndGroup()

	push := plan.Identity.IsMainBranch(plan.MainBranches)
	if !push {
		logs.Infof("branch %s is not one of %v, image will not be pushed", plan.Identity.Branch, plan.MainBranches)
	}

	err = deps.Builder.Build(ctx, dockerclient.BuildRequest{
		Image:      plan.Identity.Image,
		Dockerfile: MainDockerfile,
		Push:       push,
		Context:    plan.Context,
		Platforms:  plan.Platforms,
	})
	if err != nil {
		return false, err
	}
	return push, nil
}

func fileExists(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err == nil {
		return !fi.IsDir(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
