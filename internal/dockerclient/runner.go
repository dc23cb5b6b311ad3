package dockerclient

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"

	"github.com/0xa1bed0/imgship/internal/logs"
)

// Runner executes an external command in dir. The exit status is the only
// success signal; output is streamed, never parsed, except by Output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args []string) error
	Output(ctx context.Context, dir, name string, args []string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner streams child output to the log writer.
func NewExecRunner() *ExecRunner {
	w := logs.Writer()
	return &ExecRunner{Stdout: w, Stderr: w}
}

func (r *ExecRunner) Run(ctx context.Context, dir, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	logs.Debugf("exec: %s %s", name, strings.Join(args, " "))
	return cmd.Run()
}

func (r *ExecRunner) Output(ctx context.Context, dir, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stderr = r.Stderr

	logs.Debugf("exec: %s %s", name, strings.Join(args, " "))
	return cmd.Output()
}

// ExitCode extracts the process exit code from a Runner error.
func ExitCode(err error) (int, bool) {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), true
	}
	return -1, false
}
