// internal/markercache/cache.go

// Package markercache is the content-addressed store for compiled marker
// binaries. Recompiling an unchanged photo set costs minutes of CPU; a hit
// here turns that into a file read.
package markercache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/photobooksgallery/ar-compiler/internal/imageprep"
)

// Key computes the cache key for a prepared image set. Order-sensitive: a
// multi-target set with reordered photos is a different artifact, since
// target indexes are baked into the binary.
func Key(prepared []*imageprep.PreparedImage, paramsFingerprint string) string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, p := range prepared {
		data := p.CanonicalBytes()
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
		h.Write(lenBuf[:])
		h.Write(data)
	}
	h.Write([]byte(paramsFingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// Cache stores one file per key under a flat directory. Entries are never
// mutated in place; a concurrent miss-then-write race resolves by atomic
// rename, and last-writer-wins is harmless because compilation output is
// deterministic for a given key.
type Cache struct {
	dir string
}

func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".mind")
}

// Get returns the cached artifact bytes, or ok=false on miss.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return data, true, nil
}

// Put stores an artifact under key. Safe for concurrent writers of the same
// key: data lands in a unique temp file first, then renames into place.
func (c *Cache) Put(key string, data []byte) error {
	tmp := filepath.Join(c.dir, fmt.Sprintf(".tmp-%s-%s", key[:12], uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache temp: %w", err)
	}
	if err := os.Rename(tmp, c.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}
