package ui

// Tests in this file cover level filtering, GitHub Actions workflow commands
// and the full log writers.

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var out, full bytes.Buffer
	l := New(Options{Out: &out, FullLogWriter: &full, LogLevel: LogLevelWarn, Plain: true})

	l.Info("info line")
	l.Debug("debug line")
	l.Error("error line")

	if !strings.Contains(out.String(), "info line") || !strings.Contains(out.String(), "error line") {
		t.Fatalf("expected info and error on out, got %q", out.String())
	}
	if strings.Contains(out.String(), "debug line") {
		t.Fatalf("debug should be silent at warn level, got %q", out.String())
	}
	if !strings.Contains(full.String(), "[DEBG] debug line") {
		t.Fatalf("full log should get every level, got %q", full.String())
	}
}

func TestWorkflowSectionsAndFailure(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	l := New(Options{Out: &out, Workflow: true})

	l.Section("Docker build")
	l.Section("Build for platform: linux/arm64")
	l.EndSection()
	l.Fail("build failed: 50%\nsee log")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := "::group::Docker build\n" +
		"::group::Build for platform: linux/arm64\n" +
		"::endgroup::\n" +
		"::error::build failed: 50%25%0Asee log\n" +
		"::endgroup::\n"
	if out.String() != want {
		t.Fatalf("unexpected workflow output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestFailOutsideWorkflow(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	l := New(Options{Out: &out, Plain: true})
	l.Fail("boom")
	l.EndSection()

	if !strings.Contains(out.String(), "[ERR ] boom") {
		t.Fatalf("expected ERR line, got %q", out.String())
	}
	if strings.Contains(out.String(), "::") {
		t.Fatalf("no workflow commands expected, got %q", out.String())
	}
}

func TestTimestampWriterStampsEachLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := NewTimestampWriter(&buf)
	tw.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	tw.Write([]byte("one\ntw"))
	n, err := tw.Write([]byte("o\nthree\n"))
	if err != nil || n != len("o\nthree\n") {
		t.Fatalf("Write = %d, %v", n, err)
	}

	stamp := "[2024-01-02T03:04:05.000] "
	want := stamp + "one\n" + stamp + "two\n" + stamp + "three\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestOpenFullLog(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "run.log")
	w, err := OpenFullLog(path)
	if err != nil {
		t.Fatalf("OpenFullLog: %v", err)
	}

	l := New(Options{Out: &bytes.Buffer{}, FullLogWriter: w, Plain: true})
	l.Section("Dockerfile build")
	l.Info("building")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, want := range []string{"===== Dockerfile build =====", "[INFO] building", "===== end Dockerfile build ====="} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("log missing %q:\n%s", want, data)
		}
	}
}
