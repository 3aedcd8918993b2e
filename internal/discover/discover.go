// Package discover implements source discovery and copy-in: it walks a
// project's configured source roots, copies every recognised file into
// the workspace's source/ directory, and categorises the copies into the
// collections the rest of the pipeline reads.
package discover

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/scibuild/fab/internal/store"
)

// skipDirs names the directories no scientific Fortran/C project wants
// treated as source: version control metadata and this engine's own
// output directories.
var skipDirs = map[string]struct{}{
	".git":        {},
	".svn":        {},
	".hg":         {},
	"build_output": {},
	"_prebuild":   {},
}

// suffixCollection maps a recognised file extension to the collection it
// seeds. Anything not listed here is copied into source/ (so it's still
// available to a DEPENDS-ON override or a future step) but never added to
// a build collection.
var suffixCollection = map[string]store.Name{
	".f90":  store.FortranBuildFiles,
	".F90":  store.FortranBuildFiles,
	".f":    store.FortranBuildFiles,
	".F":    store.FortranBuildFiles,
	".c":    store.CBuildFiles,
	".h":    store.CBuildFiles,
	".x90":  store.X90BuildFiles,
}

// Result is what one discovery pass found, already split into the initial
// collections the step runtime publishes to the artefact store.
type Result struct {
	InitialSource []string
	Fortran       []string
	C             []string
	X90           []string
}

// Run walks every root in sourceRoots, copies each recognised file into
// destDir (normally <workspace>/<project>/source), and returns the
// categorised results. Paths returned are those of the copies (destDir
// joined with each file's path relative to its source root), not the
// original source-root paths — every later step operates on the
// workspace's own copy, never the user's source tree directly.
func Run(sourceRoots []string, destDir string) (Result, error) {
	var result Result

	for _, root := range sourceRoots {
		gi := loadGitignore(root)

		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			name := d.Name()

			if d.IsDir() {
				if path == root {
					return nil
				}
				if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(name, ".") {
				return nil
			}
			if d.Type()&os.ModeSymlink != 0 {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			if gi != nil && gi.MatchesPath(rel) {
				return nil
			}

			dest := filepath.Join(destDir, rel)
			if err := copyFile(path, dest); err != nil {
				return fmt.Errorf("discover: copy %s: %w", path, err)
			}

			result.InitialSource = append(result.InitialSource, dest)
			switch suffixCollection[filepath.Ext(name)] {
			case store.FortranBuildFiles:
				result.Fortran = append(result.Fortran, dest)
			case store.CBuildFiles:
				result.C = append(result.C, dest)
			case store.X90BuildFiles:
				result.X90 = append(result.X90, dest)
			}
			return nil
		})
		if err != nil {
			return Result{}, err
		}
	}

	sort.Strings(result.InitialSource)
	sort.Strings(result.Fortran)
	sort.Strings(result.C)
	sort.Strings(result.X90)
	return result, nil
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// Publish writes a Result into the artefact store's initial collections.
// Separated from Run so tests can exercise discovery and store-population
// independently.
func Publish(s *store.Store, r Result) {
	s.Set(store.InitialSource, r.InitialSource)
	s.Set(store.FortranBuildFiles, r.Fortran)
	s.Set(store.CBuildFiles, r.C)
	s.Set(store.X90BuildFiles, r.X90)
}
