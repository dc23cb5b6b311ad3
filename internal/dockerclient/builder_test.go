package dockerclient

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/0xa1bed0/imgship/internal/dockerclient/mocks"
	"github.com/0xa1bed0/imgship/internal/secrets"
	"go.uber.org/mock/gomock"
)

const testToken = "ghp_0123456789secret"

type capturedRun struct {
	dir  string
	name string
	args []string
	// secretContent is read while the build runs, before cleanup.
	secretContent string
}

func captureRuns(t *testing.T, runner *mocks.MockRunner, results ...error) *[]capturedRun {
	t.Helper()

	runs := &[]capturedRun{}
	runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Times(len(results)).
		DoAndReturn(func(_ context.Context, dir, name string, args []string) error {
			c := capturedRun{dir: dir, name: name, args: slices.Clone(args)}
			if path := secretPath(args); path != "" {
				if data, err := os.ReadFile(path); err == nil {
					c.secretContent = string(data)
				}
			}
			res := results[len(*runs)]
			*runs = append(*runs, c)
			return res
		})
	return runs
}

func secretPath(args []string) string {
	i := slices.Index(args, "--secret")
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	_, path, _ := strings.Cut(args[i+1], ",src=")
	return path
}

func newTestBuilder(t *testing.T, runner Runner) (*Builder, string) {
	t.Helper()
	secretDir := t.TempDir()
	b, err := NewBuilder("feature-x", testToken, runner,
		WithWorkDir("/ws"),
		WithSecretDir(secretDir),
		WithCacheDir("/tmp/cache"),
	)
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	return b, secretDir
}

func assertNoSecretFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read secret dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("secret files left behind: %v", entries)
	}
}

func TestNewBuilderValidation(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	if _, err := NewBuilder("", testToken, mocks.NewMockRunner(ctrl)); err == nil {
		t.Fatal("expected error for empty branch")
	}
	if _, err := NewBuilder("master", testToken, nil); err == nil {
		t.Fatal("expected error for nil runner")
	}
}

func TestBuildSingleInvocationWithoutPlatforms(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	b, secretDir := newTestBuilder(t, runner)
	runs := captureRuns(t, runner, nil)

	err := b.Build(context.Background(), BuildRequest{
		Image:      "ghcr.io/acme/app",
		Dockerfile: "Dockerfile",
		Push:       false,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(*runs) != 1 {
		t.Fatalf("got %d invocations, want 1", len(*runs))
	}
	run := (*runs)[0]
	if run.name != "docker" || run.dir != "/ws" {
		t.Fatalf("ran %q in %q, want docker in /ws", run.name, run.dir)
	}

	ref := run.args[slices.Index(run.args, "--secret")+1]
	want := []string{
		"buildx", "build",
		"--tag", "ghcr.io/acme/app:feature-x",
		"--secret", ref,
		"--build-arg", "GIT_BRANCH=feature-x",
		"--file", "Dockerfile",
		"--cache-from", "type=local,src=/tmp/cache",
		"--cache-to", "type=local,dest=/tmp/cache",
		".",
	}
	if !slices.Equal(run.args, want) {
		t.Fatalf("args =\n%q\nwant\n%q", run.args, want)
	}
	if !strings.HasPrefix(ref, "id=GIT_AUTH_TOKEN,src="+secretDir) {
		t.Fatalf("secret ref = %q", ref)
	}
	if run.secretContent != testToken {
		t.Fatalf("secret file held %q during build", run.secretContent)
	}
	for _, a := range run.args {
		if strings.Contains(a, testToken) {
			t.Fatalf("token leaked into argv: %q", a)
		}
	}
	assertNoSecretFiles(t, secretDir)
}

func TestBuildPushFlag(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	b, _ := newTestBuilder(t, runner)
	runs := captureRuns(t, runner, nil)

	err := b.Build(context.Background(), BuildRequest{
		Image:      "ghcr.io/acme/app-setup",
		Dockerfile: "Dockerfile.setup",
		Push:       true,
		Context:    "docker",
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	args := (*runs)[0].args
	if i := slices.Index(args, "--push"); i != 4 {
		t.Fatalf("--push at index %d in %q, want right after the tag", i, args)
	}
	if args[len(args)-1] != "docker" {
		t.Fatalf("context = %q, want %q", args[len(args)-1], "docker")
	}
}

func TestBuildPerPlatform(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	b, secretDir := newTestBuilder(t, runner)
	runs := captureRuns(t, runner, nil, nil)

	err := b.Build(context.Background(), BuildRequest{
		Image:      "ghcr.io/acme/app",
		Dockerfile: "Dockerfile",
		Platforms:  []string{"linux/amd64", "linux/arm64"},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(*runs) != 2 {
		t.Fatalf("got %d invocations, want 2", len(*runs))
	}
	wantTags := []string{"ghcr.io/acme/app-linux-amd64:feature-x", "ghcr.io/acme/app-linux-arm64:feature-x"}
	wantPlatforms := []string{"linux/amd64", "linux/arm64"}
	for i, run := range *runs {
		args := run.args
		if tag := args[slices.Index(args, "--tag")+1]; tag != wantTags[i] {
			t.Fatalf("invocation %d tag = %q, want %q", i, tag, wantTags[i])
		}
		pi := slices.Index(args, "--platform")
		if pi < 0 || args[pi+1] != wantPlatforms[i] {
			t.Fatalf("invocation %d args %q missing --platform %s", i, args, wantPlatforms[i])
		}
		if args[len(args)-1] != "." {
			t.Fatalf("context must be the last argument, got %q", args)
		}
	}
	assertNoSecretFiles(t, secretDir)
}

func TestBuildSinglePlatformKeepsPlainTag(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	b, _ := newTestBuilder(t, runner)
	runs := captureRuns(t, runner, nil)

	err := b.Build(context.Background(), BuildRequest{
		Image:      "ghcr.io/acme/app",
		Dockerfile: "Dockerfile",
		Platforms:  []string{"linux/arm64"},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	args := (*runs)[0].args
	if tag := args[slices.Index(args, "--tag")+1]; tag != "ghcr.io/acme/app:feature-x" {
		t.Fatalf("tag = %q", tag)
	}
	if !slices.Contains(args, "--platform") {
		t.Fatalf("single platform build lost --platform: %q", args)
	}
}

func TestBuildFailureAbortsRemainingPlatforms(t *testing.T) {
	t.Parallel()

	// a real *exec.ExitError with code 3
	exitErr := exec.Command("sh", "-c", "exit 3").Run()
	if exitErr == nil {
		t.Skip("sh unavailable")
	}

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	b, secretDir := newTestBuilder(t, runner)
	// only two calls are expected; a third would fail the test
	runs := captureRuns(t, runner, nil, exitErr)

	err := b.Build(context.Background(), BuildRequest{
		Image:      "ghcr.io/acme/app",
		Dockerfile: "Dockerfile",
		Platforms:  []string{"linux/amd64", "linux/arm64", "linux/arm/v7"},
	})
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("error = %v, want ErrBuildFailed", err)
	}
	var bfe *BuildFailedError
	if !errors.As(err, &bfe) {
		t.Fatalf("error = %#v, want *BuildFailedError", err)
	}
	if bfe.Platform != "linux/arm64" || bfe.ExitCode != 3 {
		t.Fatalf("BuildFailedError = %+v, want platform linux/arm64 exit 3", bfe)
	}
	if len(*runs) != 2 {
		t.Fatalf("got %d invocations, want 2", len(*runs))
	}
	assertNoSecretFiles(t, secretDir)
}

func TestBuildRejectsBadInputBeforeRunning(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	b, secretDir := newTestBuilder(t, runner)

	cases := []struct {
		req  BuildRequest
		want error
	}{
		{BuildRequest{Image: "ghcr.io/acme/app", Dockerfile: "Dockerfile", Platforms: []string{"a/b/c/d"}}, ErrInvalidPlatform},
		{BuildRequest{Image: "Not Valid", Dockerfile: "Dockerfile"}, ErrInvalidReference},
	}
	for _, tc := range cases {
		if err := b.Build(context.Background(), tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("Build(%+v) error = %v, want %v", tc.req, err, tc.want)
		}
	}
	assertNoSecretFiles(t, secretDir)
}

func TestBuildMissingTokenIsMalformedSecret(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	b, err := NewBuilder("master", "", mocks.NewMockRunner(ctrl), WithSecretDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	err = b.Build(context.Background(), BuildRequest{Image: "app", Dockerfile: "Dockerfile"})
	if !errors.Is(err, secrets.ErrMalformedSecret) {
		t.Fatalf("error = %v, want ErrMalformedSecret", err)
	}
}

func TestBuildExtraBuildArgs(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	b, err := NewBuilder("master", testToken, runner,
		WithSecretDir(t.TempDir()),
		WithBuildArgs("VERSION=1.2.3"),
	)
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	runs := captureRuns(t, runner, nil)

	if err := b.Build(context.Background(), BuildRequest{Image: "app", Dockerfile: "Dockerfile"}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buildArgs []string
	args := (*runs)[0].args
	for i, a := range args {
		if a == "--build-arg" {
			buildArgs = append(buildArgs, args[i+1])
		}
	}
	want := []string{"GIT_BRANCH=master", "VERSION=1.2.3"}
	if !slices.Equal(buildArgs, want) {
		t.Fatalf("build args = %q, want %q", buildArgs, want)
	}
	if filepath.Base(args[len(args)-1]) != "." {
		t.Fatalf("context = %q", args[len(args)-1])
	}
}
