package analysis

import (
	"context"
	"strings"

	"github.com/scibuild/fab/internal/ctxlog"
	"github.com/scibuild/fab/internal/fingerprint"
	"github.com/scibuild/fab/internal/prebuild"
	"github.com/scibuild/fab/internal/runtime"
	"github.com/scibuild/fab/internal/store"
)

// Step runs the source analyser over FORTRAN_BUILD_FILES and
// C_BUILD_FILES and writes the assembled source graph to
// store.SourceGraph, per spec.md §4.6.
type Step struct {
	Cache *prebuild.Cache

	UnreferencedDeps  []string
	IntrinsicModules  []string
	ParserWorkarounds []ParserWorkaround
}

func (s Step) Name() string { return "analyse" }

func (s Step) Run(ctx context.Context, scope *runtime.Scope) error {
	fortranFiles := store.GetOr[[]string](scope.Store, store.FortranBuildFiles, nil)
	cFiles := store.GetOr[[]string](scope.Store, store.CBuildFiles, nil)

	intrinsic := make(map[string]bool, len(s.IntrinsicModules))
	for _, m := range s.IntrinsicModules {
		intrinsic[strings.ToLower(m)] = true
	}
	workarounds := make(map[string]ParserWorkaround, len(s.ParserWorkarounds))
	for _, w := range s.ParserWorkarounds {
		workarounds[w.Path] = w
	}

	fortranResults, err := runtime.MapMP(ctx, fortranFiles, func(ctx context.Context, path string) (AnalysedFile, error) {
		return s.analyseFortranFile(path, intrinsic, workarounds)
	})
	if err != nil {
		return err
	}

	cResults, err := runtime.MapMP(ctx, cFiles, func(ctx context.Context, path string) (AnalysedFile, error) {
		return s.analyseCFile(path)
	})
	if err != nil {
		return err
	}

	all := make([]AnalysedFile, 0, len(fortranResults)+len(cResults))
	all = append(all, fortranResults...)
	all = append(all, cResults...)

	graph, warnings, err := BuildGraph(all, s.UnreferencedDeps)
	if err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx)
	for _, w := range warnings {
		logger.Warn(w)
	}

	scope.Store.Set(store.SourceGraph, graph)
	return nil
}

func (s Step) analyseFortranFile(path string, intrinsic map[string]bool, workarounds map[string]ParserWorkaround) (AnalysedFile, error) {
	contentHash, err := fingerprint.File(path)
	if err != nil {
		return nil, err
	}

	if wa, ok := workarounds[path]; ok {
		return workaroundToAnalysedFortran(wa, contentHash), nil
	}

	key := analysisKey(stemOf(path), contentHash)
	if hit, ok, err := s.Cache.Lookup(key); err == nil && ok {
		var rec AnalysedFortran
		if err := loadRecord(hit, &rec); err == nil {
			return &rec, nil
		}
	}

	result, err := analyseFortran(path, contentHash, intrinsic)
	if err != nil {
		return nil, err
	}
	_, _ = storeRecord(s.Cache, key, s.Cache.Dir(), result)
	return result, nil
}

func (s Step) analyseCFile(path string) (AnalysedFile, error) {
	contentHash, err := fingerprint.File(path)
	if err != nil {
		return nil, err
	}

	key := analysisKey(stemOf(path), contentHash)
	if hit, ok, err := s.Cache.Lookup(key); err == nil && ok {
		var rec AnalysedC
		if err := loadRecord(hit, &rec); err == nil {
			return &rec, nil
		}
	}

	result, err := analyseC(path, contentHash)
	if err != nil {
		return nil, err
	}
	_, _ = storeRecord(s.Cache, key, s.Cache.Dir(), result)
	return result, nil
}
