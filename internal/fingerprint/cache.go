package fingerprint

import (
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry is what the Cache remembers about a path: enough metadata to detect
// that the file has changed without re-reading it.
type entry struct {
	modTime int64
	size    int64
	sum     uint64
}

// Cache avoids re-hashing unchanged files within a single build run. It is
// a pure performance optimisation: every lookup validates mtime+size against
// the current os.Stat before trusting the cached sum, and any mismatch (or
// absence) falls through to a fresh File() read. Correctness of the engine
// never depends on this cache being warm or even present.
type Cache struct {
	entries *lru.Cache[string, entry]
}

// NewCache creates a path-fingerprint cache bounded to size entries.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: c}, nil
}

// File returns the fingerprint of the file at path, consulting and
// maintaining the cache.
func (c *Cache) File(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, &IoError{Path: path, Err: err}
	}

	if e, ok := c.entries.Get(path); ok {
		if e.modTime == info.ModTime().UnixNano() && e.size == info.Size() {
			return e.sum, nil
		}
	}

	sum, err := File(path)
	if err != nil {
		return 0, err
	}

	c.entries.Add(path, entry{
		modTime: info.ModTime().UnixNano(),
		size:    info.Size(),
		sum:     sum,
	})
	return sum, nil
}
