package dockerclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xa1bed0/imgship/internal/logs"
	"github.com/0xa1bed0/imgship/internal/secrets"
	"github.com/containerd/platforms"
)

const (
	// SecretKey is the id the auth token is mounted under (RUN --mount=type=secret,id=GIT_AUTH_TOKEN).
	SecretKey = "GIT_AUTH_TOKEN"

	// DefaultCacheDir holds buildx's local layer cache between invocations.
	DefaultCacheDir = "/tmp/.buildx-cache"

	dockerBinary = "docker"
)

type BuildRequest struct {
	Image      string
	Dockerfile string
	Push       bool

	// Context is the build context directory, "." when empty.
	Context   string
	Platforms []string
}

type ImageBuilder interface {
	Build(ctx context.Context, req BuildRequest) error
}

// Builder drives `docker buildx build`, one invocation per requested platform.
type Builder struct {
	branch    string
	token     string
	cacheDir  string
	workDir   string
	secretDir string
	buildArgs []string
	runner    Runner
}

type BuilderOption func(*Builder)

// WithCacheDir sets the local layer cache directory used for --cache-from/--cache-to.
func WithCacheDir(dir string) BuilderOption {
	return func(b *Builder) { b.cacheDir = dir }
}

// WithWorkDir sets the directory buildx runs in; Dockerfile and context paths are relative to it.
func WithWorkDir(dir string) BuilderOption {
	return func(b *Builder) { b.workDir = dir }
}

// WithSecretDir sets where the token file is materialized.
func WithSecretDir(dir string) BuilderOption {
	return func(b *Builder) { b.secretDir = dir }
}

// WithBuildArgs appends KEY=VALUE build args after GIT_BRANCH.
func WithBuildArgs(args ...string) BuilderOption {
	return func(b *Builder) { b.buildArgs = append(b.buildArgs, args...) }
}

func NewBuilder(branch, token string, runner Runner, opts ...BuilderOption) (*Builder, error) {
	if branch == "" {
		return nil, errors.New("builder: branch required")
	}
	if runner == nil {
		return nil, errors.New("builder: runner required")
	}
	b := &Builder{
		branch:    branch,
		token:     token,
		cacheDir:  DefaultCacheDir,
		buildArgs: []string{"GIT_BRANCH=" + branch},
		runner:    runner,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

type invocation struct {
	tag      string
	platform string
}

// plan resolves tags for every invocation before anything runs, so a bad
// platform or reference fails the build without side effects.
func (b *Builder) plan(req BuildRequest) ([]invocation, error) {
	plats, err := ParsePlatforms(req.Platforms)
	if err != nil {
		return nil, err
	}

	if len(plats) == 0 {
		tag, err := ImageTag(req.Image, "", b.branch)
		if err != nil {
			return nil, err
		}
		return []invocation{{tag: tag}}, nil
	}

	out := make([]invocation, 0, len(plats))
	for _, p := range plats {
		suffix := ""
		// a lone platform keeps the plain tag; several would overwrite each other
		if len(plats) > 1 {
			suffix = PlatformSuffix(p)
		}
		tag, err := ImageTag(req.Image, suffix, b.branch)
		if err != nil {
			return nil, err
		}
		out = append(out, invocation{tag: tag, platform: platforms.Format(p)})
	}
	return out, nil
}

// args builds the buildx argument vector. Values are discrete tokens and are
// never joined and re-split.
func (b *Builder) args(req BuildRequest, inv invocation, secretRef string) []string {
	args := []string{"buildx", "build", "--tag", inv.tag}
	if req.Push {
		args = append(args, "--push")
	}
	args = append(args, "--secret", secretRef)
	for _, a := range b.buildArgs {
		args = append(args, "--build-arg", a)
	}
	args = append(args,
		"--file", req.Dockerfile,
		"--cache-from", "type=local,src="+b.cacheDir,
		"--cache-to", "type=local,dest="+b.cacheDir,
	)
	if inv.platform != "" {
		args = append(args, "--platform", inv.platform)
	}

	buildContext := req.Context
	if buildContext == "" {
		buildContext = "."
	}
	return append(args, buildContext)
}

// Build runs the request. The first failing invocation aborts the rest; a
// pushed image is never retried. The token file is removed before Build
// returns, whatever the outcome.
func (b *Builder) Build(ctx context.Context, req BuildRequest) error {
	if req.Image == "" || req.Dockerfile == "" {
		return errors.New("builder: image and dockerfile required")
	}

	invs, err := b.plan(req)
	if err != nil {
		return err
	}

	secret, err := secrets.Materialize(SecretKey+"="+b.token, secrets.WithDir(b.secretDir))
	if err != nil {
		return fmt.Errorf("auth token: %w", err)
	}
	defer func() {
		if err := secret.Close(); err != nil {
			logs.Warnf("%v", err)
		}
	}()

	for _, inv := range invs {
		if err := b.invoke(ctx, req, inv, secret.Ref()); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) invoke(ctx context.Context, req BuildRequest, inv invocation, secretRef string) error {
	if inv.platform != "" {
		logs.Group("Build for platform: " + inv.platform)
		defer logs.EndGroup()
	}

	logs.Infof("building %s (push: %v)", inv.tag, req.Push)
	err := b.runner.Run(ctx, b.workDir, dockerBinary, b.args(req, inv, secretRef))
	if err == nil {
		return nil
	}

	code, _ := ExitCode(err)
	return &BuildFailedError{
		Image:    inv.tag,
		Platform: inv.platform,
		ExitCode: code,
		Err:      err,
	}
}
