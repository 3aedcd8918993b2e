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

// FortranStep runs the Fortran compile scheduler over every build tree in
// store.BuildTrees, single-stage or two-stage per toolCfg.TwoStage, and
// publishes store.ObjectFiles[root] on success, per spec.md §4.8.
type FortranStep struct {
	Tool          toolrun.Tool
	ToolCfg       buildconfig.Tool
	Identity      string
	PathFlags     []buildconfig.PathFlags
	Cache         *prebuild.Cache
	OutDir        string
	WaveObserver  WaveObserver
	CacheObserver CacheObserver
}

func (FortranStep) Name() string { return "compile-fortran" }

func (s FortranStep) Run(ctx context.Context, scope *runtime.Scope) error {
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

	discoveredByBase := extraObjectIndex(store.GetOr(scope.Store, store.InitialSource, []string(nil)))

	objectFiles := make(map[string][]string, len(roots))
	for _, root := range roots {
		tree := trees[root]
		objPaths, failures, blocked, err := s.compileTree(ctx, tree)
		if err != nil {
			return err
		}
		if len(failures) > 0 || len(blocked) > 0 {
			return &RootFailed{Root: root, Failures: failures, Blocked: blocked}
		}
		extra, err := resolveExtraObjects(discoveredByBase, tree)
		if err != nil {
			return err
		}
		objectFiles[root] = append(objPaths, extra...)
	}

	scope.Store.Set(store.ObjectFiles, objectFiles)
	return nil
}

func (s FortranStep) compileTree(ctx context.Context, tree *buildtree.Tree) ([]string, []*ToolFailure, []*BlockedBy, error) {
	if s.ToolCfg.TwoStage {
		return s.compileTwoStage(ctx, tree)
	}
	return s.compileSingleStage(ctx, tree)
}

func (s FortranStep) compileSingleStage(ctx context.Context, tree *buildtree.Tree) ([]string, []*ToolFailure, []*BlockedBy, error) {
	producers := moduleProducers(tree)
	paths := sortedFortranPaths(tree)
	deps := make(map[string][]string, len(paths))
	for _, p := range paths {
		deps[p] = moduleDepPaths(tree, producers, p)
	}

	waves, err := computeWaves(paths, deps)
	if err != nil {
		return nil, nil, nil, err
	}

	var objPaths []string
	var failures []*ToolFailure
	var blocked []*BlockedBy
	failedSet := map[string]bool{}
	modHashByModule := map[string]uint64{}

	for _, wave := range waves {
		runnable, newlyBlocked := splitBlocked(wave, deps, failedSet)
		blocked = append(blocked, newlyBlocked...)
		for _, b := range newlyBlocked {
			failedSet[b.Path] = true
		}
		if len(runnable) == 0 {
			continue
		}

		outcomes, err := compileBatch(ctx, s.Tool, s.ToolCfg, s.PathFlags, s.Cache, s.OutDir,
			"fortran", s.Identity, s.ToolCfg.Command,
			[]string{moduleFlag(s.ToolCfg.Command), s.OutDir},
			true, tree, runnable, modHashByModule, s.WaveObserver, s.CacheObserver)
		if err != nil {
			return nil, nil, nil, err
		}

		for _, o := range outcomes {
			if o.failed != nil {
				failures = append(failures, o.failed)
				failedSet[o.path] = true
				continue
			}
			objPaths = append(objPaths, o.objPath)
			recordModHashes(tree, o, modHashByModule)
		}
	}

	sort.Strings(objPaths)
	return objPaths, failures, blocked, nil
}

// compileTwoStage runs pass A (syntax-only, every file in one batch) then
// pass B (object emission, every file in one batch), per spec.md §4.8's
// "Fortran, two-stage": no wave computation at all, since pass A makes
// every module immediately available to every file, including itself and
// its own dependents.
func (s FortranStep) compileTwoStage(ctx context.Context, tree *buildtree.Tree) ([]string, []*ToolFailure, []*BlockedBy, error) {
	paths := sortedFortranPaths(tree)
	modHashByModule := map[string]uint64{}

	passA, err := compileBatch(ctx, s.Tool, s.ToolCfg, s.PathFlags, s.Cache, s.OutDir,
		"fortran-pass-a", s.Identity, s.ToolCfg.Command,
		[]string{moduleFlag(s.ToolCfg.Command), s.OutDir, syntaxOnlyFlag},
		false, tree, paths, modHashByModule, s.WaveObserver, s.CacheObserver)
	if err != nil {
		return nil, nil, nil, err
	}

	var failures []*ToolFailure
	failedSet := map[string]bool{}
	for _, o := range passA {
		if o.failed != nil {
			failures = append(failures, o.failed)
			failedSet[o.path] = true
			continue
		}
		recordModHashes(tree, o, modHashByModule)
	}

	var runnable []string
	var blocked []*BlockedBy
	producers := moduleProducers(tree)
	for _, p := range paths {
		if failedSet[p] {
			continue
		}
		if blocker := firstFailedDep(tree, producers, p, failedSet); blocker != "" {
			blocked = append(blocked, &BlockedBy{Path: p, Blocking: blocker})
			continue
		}
		runnable = append(runnable, p)
	}

	passB, err := compileBatch(ctx, s.Tool, s.ToolCfg, s.PathFlags, s.Cache, s.OutDir,
		"fortran-pass-b", s.Identity, s.ToolCfg.Command,
		[]string{moduleFlag(s.ToolCfg.Command), s.OutDir},
		true, tree, runnable, modHashByModule, s.WaveObserver, s.CacheObserver)
	if err != nil {
		return nil, nil, nil, err
	}

	var objPaths []string
	for _, o := range passB {
		if o.failed != nil {
			failures = append(failures, o.failed)
			continue
		}
		objPaths = append(objPaths, o.objPath)
	}
	sort.Strings(objPaths)
	return objPaths, failures, blocked, nil
}

func firstFailedDep(tree *buildtree.Tree, producers map[string]string, path string, failedSet map[string]bool) string {
	for _, name := range tree.Files[path].ModuleDeps() {
		if producer, ok := producers[name]; ok && failedSet[producer] {
			return producer
		}
	}
	return ""
}

func recordModHashes(tree *buildtree.Tree, o toolOutcome, modHashByModule map[string]uint64) {
	defs := tree.Files[o.path].ModuleDefs()
	for i, name := range defs {
		if i >= len(o.modPaths) {
			break
		}
		if h, err := hashModFile(o.modPaths[i]); err == nil {
			modHashByModule[name] = h
		}
	}
}

func splitBlocked(wave []string, deps map[string][]string, failedSet map[string]bool) (runnable []string, blocked []*BlockedBy) {
	for _, p := range wave {
		var blocker string
		for _, dep := range deps[p] {
			if failedSet[dep] {
				blocker = dep
				break
			}
		}
		if blocker != "" {
			blocked = append(blocked, &BlockedBy{Path: p, Blocking: blocker})
			continue
		}
		runnable = append(runnable, p)
	}
	return runnable, blocked
}

// extraObjectIndex maps every discovered file's base name to its full
// workspace path, so a `! DEPENDS ON: <obj>.o` pragma's bare object name
// can be resolved to wherever discovery actually copied it.
func extraObjectIndex(initialSource []string) map[string]string {
	byBase := make(map[string]string, len(initialSource))
	for _, p := range initialSource {
		byBase[filepath.Base(p)] = p
	}
	return byBase
}

// resolveExtraObjects resolves tree.ExtraObjects against discoveredByBase:
// a hand-maintained object a `! DEPENDS ON:` pragma names is never
// compiled, only folded into the root's object list for the linker to
// see, per spec.md §3's "OBJECT_FILES plus pragma DEPENDS ON objects"
// invariant.
func resolveExtraObjects(discoveredByBase map[string]string, tree *buildtree.Tree) ([]string, error) {
	if len(tree.ExtraObjects) == 0 {
		return nil, nil
	}
	paths := make([]string, 0, len(tree.ExtraObjects))
	for _, obj := range tree.ExtraObjects {
		p, ok := discoveredByBase[filepath.Base(obj)]
		if !ok {
			return nil, &MissingExtraObject{Path: obj}
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// fortranExts is the set of extensions a Fortran source can carry by the
// time it reaches the compile scheduler: preprocessing always rewrites
// .F90/.F to .f90, and leaves an already-lowercase .f90/.f alone.
var fortranExts = map[string]bool{".f90": true, ".f": true}

// sortedFortranPaths returns tree's Fortran members only: a mixed
// Fortran/C build tree (spec.md Full-3.x's C-Fortran interop) carries .c
// and .h members too, and those belong to CStep, never this scheduler.
func sortedFortranPaths(tree *buildtree.Tree) []string {
	paths := make([]string, 0, len(tree.Files))
	for p := range tree.Files {
		if fortranExts[filepath.Ext(p)] {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}
