package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/model"
)

// KeyPrefix versions every key; bump it when the cached evidence shape changes
const KeyPrefix = "veritas:v1:"

// Cache stores encoded evidence by key
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// EvidenceKey derives the key for one source's evidence on a claim.
// Claims differing only in case or spacing share a key.
func EvidenceKey(source, claim string, depth int) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(claim), " "))
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s", source, depth, normalized)))
	return KeyPrefix + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg: memory only when no directory is
// configured, memory in front of disk otherwise. It returns nil when caching
// is disabled.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	memory := NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	if cfg.Dir == "" {
		return memory
	}
	return NewLayeredCache(memory, NewDiskCache(cfg.Dir, cfg.DiskTTL))
}
