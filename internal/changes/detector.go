// Package changes decides whether a set of tracked files changed since the
// last recorded run.
package changes

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/0xa1bed0/imgship/internal/logs"
	"github.com/0xa1bed0/imgship/internal/version"
	"github.com/opencontainers/go-digest"
)

// Cache is an existence-only store keyed by the resolved path list plus the digest hex.
type Cache interface {
	Restore(ctx context.Context, paths []string, key string) (bool, error)
	Save(ctx context.Context, paths []string, key string) error
	Evict(ctx context.Context, paths []string, key string) error
}

type Detector struct {
	root  string
	cache Cache
	salt  string
}

type Option func(*Detector)

// WithSalt folds the build identity into every digest so different
// image/target/branch combinations never share an entry.
func WithSalt(salt string) Option {
	return func(d *Detector) { d.salt = salt }
}

// New creates a detector over root. cache may be nil when only Digest is
// needed; HasChanged then fails.
func New(root string, cache Cache, opts ...Option) (*Detector, error) {
	if root == "" {
		return nil, errors.New("changes: workspace root required")
	}
	d := &Detector{root: root, cache: cache}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func schemaMarker() string {
	return fmt.Sprintf("imgship/changes/v%d", version.ChangeSchemaVersion)
}

// Resolve maps relative paths onto the workspace root. Absolute paths pass through.
func (d *Detector) Resolve(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
			continue
		}
		out[i] = filepath.Join(d.root, p)
	}
	return out
}

// Digest hashes the schema marker, the salt and every file's content, in
// that order, each length-prefixed. It returns the resolved paths alongside.
func (d *Detector) Digest(paths []string) (digest.Digest, []string, error) {
	resolved := d.Resolve(paths)

	digester := digest.SHA256.Digester()
	h := digester.Hash()
	var lenBuf [8]byte
	writeChunk := func(b []byte) {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
		h.Write(lenBuf[:])
		h.Write(b)
	}

	writeChunk([]byte(schemaMarker()))
	writeChunk([]byte(d.salt))

	for _, p := range resolved {
		if err := hashFile(h, p, lenBuf[:]); err != nil {
			return "", nil, &FileReadError{Path: p, Err: err}
		}
	}

	return digester.Digest(), resolved, nil
}

// hashFile streams a file into h behind its 8-byte length.
func hashFile(h io.Writer, path string, lenBuf []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return errors.New("is a directory")
	}

	binary.BigEndian.PutUint64(lenBuf, uint64(fi.Size()))
	h.Write(lenBuf)
	n, err := io.Copy(h, f)
	if err != nil {
		return err
	}
	if n != fi.Size() {
		return fmt.Errorf("file changed while hashing (%d of %d bytes)", n, fi.Size())
	}
	return nil
}

// HasChanged reports whether the tracked files differ from every recorded
// run. A miss records the new digest; failing to record it is only a warning.
func (d *Detector) HasChanged(ctx context.Context, paths []string) (bool, error) {
	if d.cache == nil {
		return false, errors.New("changes: no cache configured")
	}
	dgst, resolved, err := d.Digest(paths)
	if err != nil {
		return false, err
	}
	key := dgst.Encoded()
	logs.Infof("tracked files digest: %s", dgst)

	hit, err := d.cache.Restore(ctx, resolved, key)
	if err != nil {
		logs.Warnf("change cache lookup failed, assuming changed: %v", err)
		hit = false
	}

	if hit {
		logs.Infof("tracked files did not change")
		return false, nil
	}

	logs.Infof("tracked files changed")
	if err := d.cache.Save(ctx, resolved, key); err != nil {
		logs.Warnf("%v", &CacheWriteError{Key: key, Err: err})
	}
	return true, nil
}

// Forget drops the entry for the current digest of paths, so the next
// HasChanged reports a change. Used when the build the change triggered failed.
func (d *Detector) Forget(ctx context.Context, paths []string) error {
	if d.cache == nil {
		return errors.New("changes: no cache configured")
	}
	dgst, resolved, err := d.Digest(paths)
	if err != nil {
		return err
	}
	return d.cache.Evict(ctx, resolved, dgst.Encoded())
}
