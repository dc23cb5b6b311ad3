// Package cache records which change digests have already been built.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0xa1bed0/imgship/internal/state"
)

// KeyPrefix namespaces change entries inside the shared kv_store table.
const KeyPrefix = "changes:"

// Store is an existence-only cache keyed by {paths, digest}.
type Store struct {
	kv *state.KVStore
}

func NewStore(kv *state.KVStore) (*Store, error) {
	if kv == nil {
		return nil, errors.New("cache: kv store required")
	}
	return &Store{kv: kv}, nil
}

func entryKey(paths []string, key string) state.KVStoreKey {
	return state.KVStoreKey(KeyPrefix + CacheKeyPaths(paths) + ":" + key)
}

// Restore reports whether an entry for paths+key exists.
func (s *Store) Restore(ctx context.Context, paths []string, key string) (bool, error) {
	if key == "" {
		return false, errors.New("cache: empty key")
	}
	_, found, err := s.kv.Get(ctx, entryKey(paths, key))
	if err != nil {
		return false, fmt.Errorf("cache restore: %w", err)
	}
	return found, nil
}

// Save records an entry for paths+key. The value is informational only.
func (s *Store) Save(ctx context.Context, paths []string, key string) error {
	if key == "" {
		return errors.New("cache: empty key")
	}
	if err := s.kv.Upsert(ctx, entryKey(paths, key), strings.Join(paths, "\n")); err != nil {
		return fmt.Errorf("cache save: %w", err)
	}
	return nil
}

// Evict removes the entry for paths+key so the next Restore misses.
func (s *Store) Evict(ctx context.Context, paths []string, key string) error {
	if key == "" {
		return errors.New("cache: empty key")
	}
	if err := s.kv.Delete(ctx, entryKey(paths, key)); err != nil {
		return fmt.Errorf("cache evict: %w", err)
	}
	return nil
}

// Prune drops entries that no run has restored since cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.kv.DeleteUnusedBefore(ctx, KeyPrefix, cutoff)
}

// Len returns the number of recorded entries.
func (s *Store) Len(ctx context.Context) (int64, error) {
	return s.kv.Count(ctx, KeyPrefix)
}
