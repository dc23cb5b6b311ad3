// Package secrets turns key=value secrets into short-lived files that buildx
// can mount with --secret.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrMalformedSecret is returned for input that is not a non-empty key=value pair.
var ErrMalformedSecret = errors.New("malformed secret")

// Secret is a materialized secret file. Close removes it.
type Secret struct {
	Key  string
	Path string

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	dir string
}

type Option func(*options)

// WithDir places the secret file in dir instead of os.TempDir().
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// Materialize writes the value of kvp ("key=value", split at the first '=')
// to a new 0600 temp file.
func Materialize(kvp string, opts ...Option) (*Secret, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	key, value, ok := strings.Cut(kvp, "=")
	if !ok {
		return nil, fmt.Errorf("%w: missing '=' delimiter", ErrMalformedSecret)
	}
	// never echo the value back, it ends up in CI logs
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrMalformedSecret)
	}
	if value == "" {
		return nil, fmt.Errorf("%w: empty value for %q", ErrMalformedSecret, key)
	}

	f, err := os.CreateTemp(o.dir, "imgship-secret-*")
	if err != nil {
		return nil, fmt.Errorf("create secret file: %w", err)
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write secret file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("close secret file: %w", err)
	}

	return &Secret{Key: key, Path: f.Name()}, nil
}

// Ref renders the reference buildx expects after --secret.
func (s *Secret) Ref() string {
	return fmt.Sprintf("id=%s,src=%s", s.Key, s.Path)
}

// Close removes the secret file. It is safe to call more than once.
func (s *Secret) Close() error {
	s.closeOnce.Do(func() {
		if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.closeErr = fmt.Errorf("remove secret file: %w", err)
		}
	})
	return s.closeErr
}
