package preprocess

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/scibuild/fab/internal/buildconfig"
	"github.com/scibuild/fab/internal/prebuild"
	"github.com/scibuild/fab/internal/runtime"
	"github.com/scibuild/fab/internal/store"
	"github.com/scibuild/fab/internal/toolrun"
)

// fileOutcome is one file's preprocessing result: either a rewritten path
// or a failure, never both. Collecting these into an index-ordered slice
// (rather than appending from concurrent workers) keeps output order
// stable and avoids a shared-slice data race across the fan-out.
type fileOutcome struct {
	path   string
	failed *PreprocessFailed
}

// FortranStep preprocesses FORTRAN_BUILD_FILES: uppercase .F90 entries are
// run through the fpp tool and replaced by the lowercase .f90 they
// produce; already-lowercase .f90 entries are copied into build_output
// unchanged so every downstream path lives under one root, matching
// spec.md §4.5.
type FortranStep struct {
	Tool       toolrun.Tool
	ToolConfig buildconfig.Tool
	Cache      *prebuild.Cache
	OutDir     string
}

func (s FortranStep) Name() string { return "preprocess-fortran" }

func (s FortranStep) Run(ctx context.Context, scope *runtime.Scope) error {
	files, err := store.Get[[]string](scope.Store, store.FortranBuildFiles)
	if err != nil {
		return err
	}

	outcomes, err := runtime.MapMP(ctx, files, func(ctx context.Context, path string) (fileOutcome, error) {
		out, runErr := s.preprocessOne(ctx, path)
		if failed, ok := runErr.(*PreprocessFailed); ok {
			return fileOutcome{failed: failed}, nil
		}
		if runErr != nil {
			return fileOutcome{}, runErr
		}
		return fileOutcome{path: out}, nil
	})
	if err != nil {
		return err
	}

	rewritten, agg := splitOutcomes(outcomes)
	if len(agg.Failures) > 0 {
		return agg
	}

	scope.Store.Set(store.FortranBuildFiles, rewritten)
	scope.Store.Set(store.PreprocessedFortran, rewritten)
	return nil
}

func (s FortranStep) preprocessOne(ctx context.Context, path string) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)

	if ext == ".f90" || ext == ".f" {
		dest := filepath.Join(s.OutDir, filepath.Base(path))
		if err := copyUnchanged(path, dest); err != nil {
			return "", &PreprocessFailed{Path: path, Err: err}
		}
		return dest, nil
	}

	dest := filepath.Join(s.OutDir, stem+".f90")
	if err := File(ctx, s.Tool, s.ToolConfig, s.Cache, path, dest, "f90"); err != nil {
		return "", err
	}
	return dest, nil
}

// CStep preprocesses C_BUILD_FILES the same way, running cpp over the
// .prag files PragmaStep already wrapped (headers pass through untouched)
// and writing the expanded result back out as .c in build_output. cpp
// leaves PragmaStep's FAB pragma markers untouched, so they survive into
// this step's output.
type CStep struct {
	Tool       toolrun.Tool
	ToolConfig buildconfig.Tool
	Cache      *prebuild.Cache
	OutDir     string
}

func (s CStep) Name() string { return "preprocess-c" }

func (s CStep) Run(ctx context.Context, scope *runtime.Scope) error {
	files, err := store.Get[[]string](scope.Store, store.CBuildFiles)
	if err != nil {
		return err
	}

	outcomes, err := runtime.MapMP(ctx, files, func(ctx context.Context, path string) (fileOutcome, error) {
		if filepath.Ext(path) != ".prag" {
			return fileOutcome{path: path}, nil
		}
		stem := strings.TrimSuffix(filepath.Base(path), ".prag")
		dest := filepath.Join(s.OutDir, stem+".c")
		if err := File(ctx, s.Tool, s.ToolConfig, s.Cache, path, dest, "c"); err != nil {
			if failed, ok := err.(*PreprocessFailed); ok {
				return fileOutcome{failed: failed}, nil
			}
			return fileOutcome{}, err
		}
		return fileOutcome{path: dest}, nil
	})
	if err != nil {
		return err
	}

	rewritten, agg := splitOutcomes(outcomes)
	if len(agg.Failures) > 0 {
		return agg
	}

	scope.Store.Set(store.CBuildFiles, rewritten)
	scope.Store.Set(store.PreprocessedC, rewritten)
	return nil
}

func splitOutcomes(outcomes []fileOutcome) ([]string, *Aggregate) {
	agg := &Aggregate{}
	rewritten := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.failed != nil {
			agg.Failures = append(agg.Failures, o.failed)
			continue
		}
		rewritten = append(rewritten, o.path)
	}
	return rewritten, agg
}

func copyUnchanged(src, dest string) error {
	if filepath.Clean(src) == filepath.Clean(dest) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
