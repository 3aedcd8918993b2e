// Package prebuild implements the prebuild cache: a flat directory of
// immutable, content-addressed artefacts (analysis results, object files,
// module files) named STEM.HASH.SUFFIX. Entries are never modified in
// place — a changed input produces a new hash and therefore a new file —
// so every write is a create, and every read either hits an existing
// entry or misses entirely.
package prebuild

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Cache is a handle on one prebuild directory. It does not hold any
// in-memory lookup index; every Lookup re-stats the directory entry,
// because the directory itself is the source of truth and may be shared
// across runs. It does track which keys this run has touched, so the
// housekeeper can tell a still-current entry from an abandoned one
// without re-deriving every key the run ever computed.
type Cache struct {
	dir string

	mu      sync.Mutex
	touched map[Key]struct{}
}

// Open returns a Cache rooted at dir, creating dir if it does not exist.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prebuild: open %s: %w", dir, err)
	}
	return &Cache{dir: dir, touched: make(map[Key]struct{})}, nil
}

// Touched returns every key this run has looked up or stored, the
// current-files set spec.md §4.10's default housekeeping policy keeps.
func (c *Cache) Touched() map[Key]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Key]struct{}, len(c.touched))
	for k := range c.touched {
		out[k] = struct{}{}
	}
	return out
}

func (c *Cache) touch(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.touched == nil {
		c.touched = make(map[Key]struct{})
	}
	c.touched[k] = struct{}{}
}

// Dir returns the cache's root directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) path(k Key) string {
	return filepath.Join(c.dir, k.FileName())
}

// Lookup reports whether k is present in the cache and, if so, its path.
func (c *Cache) Lookup(k Key) (path string, ok bool, err error) {
	p := c.path(k)
	_, statErr := os.Stat(p)
	switch {
	case statErr == nil:
		c.touch(k)
		return p, true, nil
	case os.IsNotExist(statErr):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("prebuild: lookup %s: %w", k.FileName(), statErr)
	}
}

// Store copies sourcePath into the cache under k's canonical name. The
// write goes to a temporary sibling file first and is renamed into place
// only once complete, so a reader's Lookup never observes a partially
// written entry, and a crash mid-write leaves no corrupt entry behind —
// only an orphaned temp file, which Sweep leaves in place because its
// name does not parse as a Key.
func (c *Cache) Store(sourcePath string, k Key) (path string, err error) {
	dest := c.path(k)
	if _, statErr := os.Stat(dest); statErr == nil {
		c.touch(k)
		return dest, nil
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-"+k.FileName()+"-*")
	if err != nil {
		return "", fmt.Errorf("prebuild: store %s: %w", k.FileName(), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	src, err := os.Open(sourcePath)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("prebuild: store %s: %w", k.FileName(), err)
	}
	_, copyErr := io.Copy(tmp, src)
	src.Close()
	closeErr := tmp.Close()
	if copyErr != nil {
		return "", fmt.Errorf("prebuild: store %s: %w", k.FileName(), copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("prebuild: store %s: %w", k.FileName(), closeErr)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("prebuild: store %s: %w", k.FileName(), err)
	}
	c.touch(k)
	return dest, nil
}

// Recover copies the cached entry for k out to dest, for a step that needs
// a working copy under a source-tree-relative name rather than the cache's
// own canonical name.
func (c *Cache) Recover(k Key, dest string) error {
	path, ok, err := c.Lookup(k)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("prebuild: recover %s: not found", k.FileName())
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prebuild: recover %s: %w", k.FileName(), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("prebuild: recover %s: %w", k.FileName(), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	src, err := os.Open(path)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("prebuild: recover %s: %w", k.FileName(), err)
	}
	_, copyErr := io.Copy(tmp, src)
	src.Close()
	closeErr := tmp.Close()
	if copyErr != nil {
		return fmt.Errorf("prebuild: recover %s: %w", k.FileName(), copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("prebuild: recover %s: %w", k.FileName(), closeErr)
	}
	return os.Rename(tmpName, dest)
}

// Sweep deletes every cache entry not named in keep, the set of keys the
// current run is known to still depend on. Entries whose filename does not
// parse as a valid Key (foreign or corrupted files) are left untouched;
// Sweep only ever removes files it understands.
//
// If olderThan is non-nil, it replaces the keep-set check: Sweep deletes
// exactly the entries whose modification time is older than olderThan,
// whether or not they are in keep — the explicit housekeeping override
// from spec.md §4.10.
func (c *Cache) Sweep(keep map[Key]struct{}, olderThan *time.Duration) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("prebuild: sweep: %w", err)
	}

	var cutoff time.Time
	if olderThan != nil {
		cutoff = time.Now().Add(-*olderThan)
	}

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		k, parseErr := ParseFileName(name)
		if parseErr != nil {
			continue
		}
		if olderThan == nil {
			if _, kept := keep[k]; kept {
				continue
			}
		} else {
			info, statErr := entry.Info()
			if statErr != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
		}
		full := filepath.Join(c.dir, name)
		if err := os.Remove(full); err != nil {
			return removed, fmt.Errorf("prebuild: sweep %s: %w", name, err)
		}
		removed = append(removed, full)
	}
	sort.Strings(removed)
	return removed, nil
}
