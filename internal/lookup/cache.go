package lookup

import (
	"strconv"
	"strings"
	"sync"

	"github.com/audiora/audiora/pkg/provider/translate"
)

const (
	// keyHashWidth is the length of the base-36 content hash. 13 digits hold
	// any uint64.
	keyHashWidth = 13

	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// Key derives the cache key for a translation. Content is hashed rune by
// rune into a fixed-width base-36 string, so any script produces a stable key.
// The key is namespaced by kind and the lowercased language.
func Key(kind translate.Kind, content, language string) string {
	var h uint64 = fnvOffset64
	for _, r := range content {
		h ^= uint64(r)
		h *= fnvPrime64
	}
	sum := strconv.FormatUint(h, 36)
	if pad := keyHashWidth - len(sum); pad > 0 {
		sum = strings.Repeat("0", pad) + sum
	}
	return string(kind) + ":" + strings.ToLower(strings.TrimSpace(language)) + ":" + sum
}

// Cache memoises translations for the lifetime of the process. There is no
// eviction. Writes are last-write-wins. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Get returns the cached translation, if any.
func (c *Cache) Get(kind translate.Kind, content, language string) (string, bool) {
	key := Key(kind, content, language)
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Set stores a translation.
func (c *Cache) Set(kind translate.Kind, content, language, value string) {
	key := Key(kind, content, language)
	c.mu.Lock()
	c.entries[key] = value
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
