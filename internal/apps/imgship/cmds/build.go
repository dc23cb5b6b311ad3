package imgship

import (
	"context"
	"fmt"

	"github.com/0xa1bed0/imgship/internal/changes"
	"github.com/0xa1bed0/imgship/internal/dockerclient"
	"github.com/0xa1bed0/imgship/internal/logs"
	"github.com/0xa1bed0/imgship/internal/pipeline"
	"github.com/spf13/cobra"
)

type buildOptions struct {
	SkipPreflight bool
	BuildArgs     []string
}

func attachBuildFlags(cmd *cobra.Command, opts *buildOptions) {
	cmd.Flags().BoolVar(&opts.SkipPreflight, "skip-preflight", false, "don't check the docker daemon and buildx version before building")
	cmd.Flags().StringArrayVar(&opts.BuildArgs, "build-arg", nil, "extra KEY=VALUE build arg, passed after GIT_BRANCH (repeatable)")
}

func (a *app) newBuildCmd() *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the setup image if needed, then the main image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(cmd.Context(), opts)
		},
	}

	attachBuildFlags(cmd, opts)

	return cmd
}

func (a *app) runBuild(ctx context.Context, opts *buildOptions) error {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	id := cfg.Identity()

	store, closeCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	detector, err := changes.New(cfg.Workspace, store, changes.WithSalt(id.Salt()))
	if err != nil {
		return err
	}

	runner := dockerclient.NewExecRunner()
	builder, err := dockerclient.NewBuilder(id.Branch, cfg.Token, runner,
		dockerclient.WithWorkDir(cfg.Workspace),
		dockerclient.WithCacheDir(cfg.CacheDir),
		dockerclient.WithBuildArgs(opts.BuildArgs...),
	)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{Builder: builder, Detector: detector}
	if !opts.SkipPreflight {
		deps.Preflight = preflight(runner)
	}

	res, err := pipeline.Run(ctx, pipeline.Plan{
		Identity:     id,
		Workspace:    cfg.Workspace,
		Platforms:    cfg.Platforms,
		MainBranches: cfg.MainBranches,
		WorkflowFile: cfg.WorkflowFile,
	}, deps)
	if err != nil {
		return err
	}

	logs.Infof("done: setup found=%v rebuilt=%v, main pushed=%v", res.SetupFound, res.SetupBuilt, res.MainPushed)
	return nil
}

func preflight(runner dockerclient.Runner) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		daemon, err := dockerclient.NewDaemon(ctx)
		if err != nil {
			return err
		}
		defer daemon.Close()

		apiVersion, err := daemon.Ping(ctx)
		if err != nil {
			return err
		}
		logs.Debugf("docker daemon API version %s", apiVersion)

		buildxVersion, err := dockerclient.CheckBuildx(ctx, runner, dockerclient.DefaultBuildxConstraint)
		if err != nil {
			return fmt.Errorf("buildx: %w", err)
		}
		logs.Debugf("docker buildx %s", buildxVersion)
		return nil
	}
}
