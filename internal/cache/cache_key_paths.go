package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
)

// CacheKeyPaths deterministically computes a key for an ordered list of paths.
// It prefixes each path with its length (8-byte big-endian) before hashing to avoid collisions
// between sequences like ["ab", "c"] and ["a", "bc"].
func CacheKeyPaths(paths []string) string {
	h := sha256.New()
	var lenBuf [8]byte

	for _, p := range paths {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		io.WriteString(h, p)
	}

	return hex.EncodeToString(h.Sum(nil))
}
