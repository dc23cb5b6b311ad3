package ui

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimestampWriter prefixes every line it sees with a timestamp. It is the
// final hop before the full log file, so buffered child output (which may
// arrive in arbitrary chunks) is still stamped per line.
type TimestampWriter struct {
	mu          sync.Mutex
	w           io.Writer
	atLineStart bool
	now         func() time.Time
}

// NewTimestampWriter creates a new TimestampWriter that wraps the given writer.
func NewTimestampWriter(w io.Writer) *TimestampWriter {
	return &TimestampWriter{w: w, atLineStart: true, now: time.Now}
}

func (tw *TimestampWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	var buf bytes.Buffer
	rest := p
	for len(rest) > 0 {
		if tw.atLineStart {
			buf.WriteString("[" + tw.now().Format(timestampLayout) + "] ")
			tw.atLineStart = false
		}
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			buf.Write(rest)
			break
		}
		buf.Write(rest[:i+1])
		rest = rest[i+1:]
		tw.atLineStart = true
	}

	if _, err := tw.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	// callers expect the length of what they passed in
	return len(p), nil
}

// Sync forwards sync to underlying writer if it supports it.
func (tw *TimestampWriter) Sync() error {
	if s, ok := tw.w.(syncer); ok {
		return s.Sync()
	}
	return nil
}

// Close forwards close to underlying writer if it supports it.
func (tw *TimestampWriter) Close() error {
	if c, ok := tw.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// OpenFullLog creates (or truncates) the file at path and returns a
// timestamping, periodically synced writer over it, ready for
// Logger.SetFullLogWriter.
func OpenFullLog(path string) (*TimestampWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return NewTimestampWriter(NewSyncWriter(f, defaultSyncInterval)), nil
}
