package compile

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/scibuild/fab/internal/buildconfig"
	"github.com/scibuild/fab/internal/buildtree"
	"github.com/scibuild/fab/internal/prebuild"
	"github.com/scibuild/fab/internal/runtime"
	"github.com/scibuild/fab/internal/store"
	"github.com/scibuild/fab/internal/toolrun"
)

// CStep compiles every file in a C build tree in a single wave: C has no
// cross-file module artefact, so there is no dependency order to respect
// beyond what the build-tree extractor already pruned to, per spec.md
// §4.8's "C" paragraph.
type CStep struct {
	Tool          toolrun.Tool
	ToolCfg       buildconfig.Tool
	Identity      string
	PathFlags     []buildconfig.PathFlags
	Cache         *prebuild.Cache
	OutDir        string
	WaveObserver  WaveObserver
	CacheObserver CacheObserver
}

func (CStep) Name() string { return "compile-c" }

func (s CStep) Run(ctx context.Context, scope *runtime.Scope) error {
	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		return err
	}

	trees, err := store.Get[map[string]*buildtree.Tree](scope.Store, store.BuildTrees)
	if err != nil {
		return err
	}

	roots := make([]string, 0, len(trees))
	for root := range trees {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	existing := store.GetOr(scope.Store, store.ObjectFiles, map[string][]string{})
	objectFiles := make(map[string][]string, len(roots))
	for root, objs := range existing {
		objectFiles[root] = objs
	}

	for _, root := range roots {
		tree := trees[root]
		paths := cPaths(tree)
		if len(paths) == 0 {
			continue
		}

		if s.WaveObserver != nil {
			s.WaveObserver.ObserveWaveSize(root, len(paths))
		}
		outcomes, err := runtime.MapMP(ctx, paths, func(ctx context.Context, path string) (toolOutcome, error) {
			return s.compileOne(ctx, path, tree)
		})
		if err != nil {
			return err
		}

		var objs []string
		var failures []*ToolFailure
		for _, o := range outcomes {
			if o.failed != nil {
				failures = append(failures, o.failed)
				continue
			}
			objs = append(objs, o.objPath)
		}
		if len(failures) > 0 {
			return &RootFailed{Root: root, Failures: failures}
		}
		sort.Strings(objs)
		objectFiles[root] = append(objectFiles[root], objs...)
	}

	scope.Store.Set(store.ObjectFiles, objectFiles)
	return nil
}

func (s CStep) compileOne(ctx context.Context, path string, tree *buildtree.Tree) (toolOutcome, error) {
	f := tree.Files[path]
	baseFlags := resolvedFlags(s.ToolCfg, s.PathFlags, path)
	fp, err := computeFingerprint(f.ContentHash(), s.Identity, s.ToolCfg.Command, baseFlags, nil)
	if err != nil {
		return toolOutcome{}, err
	}

	stem := stemOf(path)
	objKey := prebuild.Key{Stem: stem, Hash: fp, Suffix: "o"}
	outcome := toolOutcome{path: path}

	dest := filepath.Join(s.OutDir, stem+".o")
	if _, ok, err := s.Cache.Lookup(objKey); err == nil && ok {
		if err := s.Cache.Recover(objKey, dest); err == nil {
			if s.CacheObserver != nil {
				s.CacheObserver.CacheHit()
			}
			outcome.objPath = dest
			return outcome, nil
		}
	}
	if s.CacheObserver != nil {
		s.CacheObserver.CacheMiss()
	}

	args := append(append([]string(nil), baseFlags...), path, "-o", dest)
	result, runErr := s.Tool.Run(ctx, s.ToolCfg.Command, args, s.OutDir)
	if runErr != nil {
		outcome.failed = &ToolFailure{Stage: "c", Path: path, Stderr: result.Stderr, Err: runErr}
		return outcome, nil
	}

	if _, err := s.Cache.Store(dest, objKey); err != nil {
		outcome.failed = &ToolFailure{Stage: "c", Path: path, Err: err}
		return outcome, nil
	}
	outcome.objPath = dest
	return outcome, nil
}

func cPaths(tree *buildtree.Tree) []string {
	var paths []string
	for p := range tree.Files {
		if filepath.Ext(p) == ".c" {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}
