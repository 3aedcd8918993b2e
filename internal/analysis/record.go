package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/scibuild/fab/internal/prebuild"
)

// analysisKey is spec.md §4.6's prebuild key for a .an record: hash of the
// content hash alone, since analysis never depends on compiler choice.
func analysisKey(stem string, contentHash uint64) prebuild.Key {
	return prebuild.Key{Stem: stem, Hash: contentHash, Suffix: "an"}
}

// loadRecord deserialises a cached .an record hit into out (a pointer to
// *AnalysedFortran or *AnalysedC), matching spec.md §4.6's "if a prior .an
// record exists, deserialise and reuse".
func loadRecord(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}

// storeRecord serialises rec and writes it through the prebuild cache
// under key, via a temp file in cacheDir so Cache.Store's copy-then-rename
// contract is preserved like every other cache write in this engine.
func storeRecord(cache *prebuild.Cache, key prebuild.Key, cacheDir string, rec any) (string, error) {
	raw, err := yaml.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("analysis: marshal %s: %w", key.FileName(), err)
	}

	tmp, err := os.CreateTemp(cacheDir, ".an-tmp-*")
	if err != nil {
		return "", fmt.Errorf("analysis: write %s: %w", key.FileName(), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", fmt.Errorf("analysis: write %s: %w", key.FileName(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("analysis: write %s: %w", key.FileName(), err)
	}

	return cache.Store(tmpName, key)
}

func stemOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
