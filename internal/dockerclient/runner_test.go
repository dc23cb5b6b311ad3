// Tests in this file run real processes through ExecRunner.
package dockerclient

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunnerStreamsOutputAndUsesDir(t *testing.T) {
	t.Parallel()
	requireShell(t)

	dir := t.TempDir()
	var out bytes.Buffer
	r := &ExecRunner{Stdout: &out, Stderr: &out}

	if err := r.Run(context.Background(), dir, "sh", []string{"-c", "pwd; echo oops >&2"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out.String(), "oops") {
		t.Fatalf("stderr not streamed: %q", out.String())
	}
	if !strings.Contains(out.String(), dir) && !strings.Contains(out.String(), "/private"+dir) {
		t.Fatalf("command did not run in %q: %q", dir, out.String())
	}
}

func TestExecRunnerExitCode(t *testing.T) {
	t.Parallel()
	requireShell(t)

	r := &ExecRunner{}
	err := r.Run(context.Background(), "", "sh", []string{"-c", "exit 7"})
	code, ok := ExitCode(err)
	if !ok || code != 7 {
		t.Fatalf("ExitCode = %d, %v; want 7, true", code, ok)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	t.Parallel()

	r := &ExecRunner{}
	err := r.Run(context.Background(), "", "imgship-definitely-not-a-binary", nil)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if _, ok := ExitCode(err); ok {
		t.Fatal("missing binary reported an exit code")
	}
}

func TestExecRunnerOutput(t *testing.T) {
	t.Parallel()
	requireShell(t)

	r := &ExecRunner{}
	out, err := r.Output(context.Background(), "", "sh", []string{"-c", "echo github.com/docker/buildx v0.12.1 abc"})
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "github.com/docker/buildx v0.12.1 abc" {
		t.Fatalf("Output = %q", out)
	}
}
