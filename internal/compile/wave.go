package compile

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/scibuild/fab/internal/buildconfig"
	"github.com/scibuild/fab/internal/buildtree"
	"github.com/scibuild/fab/internal/fingerprint"
	"github.com/scibuild/fab/internal/prebuild"
	"github.com/scibuild/fab/internal/runtime"
	"github.com/scibuild/fab/internal/toolrun"
)

// moduleProducers maps every module name any file in tree defines to its
// defining path, so wave partitioning can resolve a file's module_deps
// without re-walking the whole source graph: a build tree only ever needs
// dependency edges among its own members.
func moduleProducers(tree *buildtree.Tree) map[string]string {
	producers := make(map[string]string)
	for _, path := range sortedFortranPaths(tree) {
		for _, m := range tree.Files[path].ModuleDefs() {
			producers[m] = path
		}
	}
	return producers
}

// moduleDepPaths resolves path's module_deps to producing paths within
// tree, skipping self-deps and anything that isn't itself a module this
// tree's files produce (an intrinsic, or a name the analyser already
// flagged as an implied/dropped dependency never appears here, since it
// never earned a module_defs entry in the first place).
func moduleDepPaths(tree *buildtree.Tree, producers map[string]string, path string) []string {
	f := tree.Files[path]
	var deps []string
	for _, name := range f.ModuleDeps() {
		if producer, ok := producers[name]; ok && producer != path {
			deps = append(deps, producer)
		}
	}
	sort.Strings(deps)
	return deps
}

// waves partitions the given file set into dependency waves: wave 0 is
// every file whose moduleDeps are all outside the set (already resolved),
// wave k+1 is every remaining file whose moduleDeps are covered by waves
// 0..k. Per spec.md §4.8 step 3.
func computeWaves(paths []string, deps map[string][]string) ([][]string, error) {
	remaining := make(map[string]bool, len(paths))
	for _, p := range paths {
		remaining[p] = true
	}

	var result [][]string
	for len(remaining) > 0 {
		var wave []string
		for p := range remaining {
			ready := true
			for _, dep := range deps[p] {
				if remaining[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, p)
			}
		}
		if len(wave) == 0 {
			leftover := make([]string, 0, len(remaining))
			for p := range remaining {
				leftover = append(leftover, p)
			}
			sort.Strings(leftover)
			return nil, &CompileStalled{Remaining: leftover}
		}
		sort.Strings(wave)
		for _, p := range wave {
			delete(remaining, p)
		}
		result = append(result, wave)
	}
	return result, nil
}

// toolOutcome is one file's single-invocation result, collected into an
// index-stable slice by runtime.RunMPLimit-driven fan-out, the same
// pattern preprocess.FortranStep uses to avoid a concurrent-append race.
type toolOutcome struct {
	path     string
	objPath  string
	modPaths []string
	failed   *ToolFailure
}

// compileBatch runs tool over every path in a wave with a fixed set of
// invocation-time flags layered on top of the fingerprint-stable resolved
// flags, recovering from the prebuild cache on a hit and storing a fresh
// result on a miss. stage labels the ToolFailure this batch might produce
// ("fortran-pass-a", "fortran-pass-b", "c").
func compileBatch(
	ctx context.Context,
	tool toolrun.Tool,
	toolCfg buildconfig.Tool,
	pathFlags []buildconfig.PathFlags,
	cache *prebuild.Cache,
	outDir string,
	stage string,
	identity, version string,
	invocationFlags []string,
	wantsObj bool,
	tree *buildtree.Tree,
	wave []string,
	modHashByModule map[string]uint64,
	waveObs WaveObserver,
	cacheObs CacheObserver,
) ([]toolOutcome, error) {
	if waveObs != nil {
		waveObs.ObserveWaveSize(tree.Root, len(wave))
	}
	return runtime.MapMP(ctx, wave, func(ctx context.Context, path string) (toolOutcome, error) {
		f := tree.Files[path]
		baseFlags := resolvedFlags(toolCfg, pathFlags, path)
		fp, err := computeFingerprint(f.ContentHash(), identity, version, baseFlags, moduleDepHashes(f.ModuleDeps(), modHashByModule))
		if err != nil {
			return toolOutcome{}, err
		}

		stem := stemOf(path)
		outcome := toolOutcome{path: path}

		modDefs := f.ModuleDefs()
		objKey := prebuild.Key{Stem: stem, Hash: fp, Suffix: "o"}
		modKeys := make([]prebuild.Key, len(modDefs))
		for i, m := range modDefs {
			modKeys[i] = prebuild.Key{Stem: m, Hash: fp, Suffix: "mod"}
		}

		if hit, objPath, modPaths := recoverIfCached(cache, objKey, modKeys, outDir, wantsObj); hit {
			if cacheObs != nil {
				cacheObs.CacheHit()
			}
			outcome.objPath = objPath
			outcome.modPaths = modPaths
			return outcome, nil
		}
		if cacheObs != nil {
			cacheObs.CacheMiss()
		}

		args := append(append([]string(nil), baseFlags...), invocationFlags...)
		args = append(args, path)
		objPath := filepath.Join(outDir, stem+".o")
		if wantsObj {
			args = append(args, "-o", objPath)
		}

		result, runErr := tool.Run(ctx, toolCfg.Command, args, outDir)
		if runErr != nil {
			outcome.failed = &ToolFailure{Stage: stage, Path: path, Stderr: result.Stderr, Err: runErr}
			return outcome, nil
		}

		if wantsObj {
			if _, err := cache.Store(objPath, objKey); err != nil {
				outcome.failed = &ToolFailure{Stage: stage, Path: path, Err: err}
				return outcome, nil
			}
			outcome.objPath = objPath
		}
		for i, m := range modDefs {
			modPath := filepath.Join(outDir, m+".mod")
			if _, err := cache.Store(modPath, modKeys[i]); err != nil {
				outcome.failed = &ToolFailure{Stage: stage, Path: path, Err: err}
				return outcome, nil
			}
			outcome.modPaths = append(outcome.modPaths, modPath)
		}
		return outcome, nil
	})
}

func recoverIfCached(cache *prebuild.Cache, objKey prebuild.Key, modKeys []prebuild.Key, outDir string, wantsObj bool) (hit bool, objPath string, modPaths []string) {
	if wantsObj {
		dest := filepath.Join(outDir, objKey.Stem+".o")
		if _, ok, err := cache.Lookup(objKey); err != nil || !ok {
			return false, "", nil
		} else if err := cache.Recover(objKey, dest); err != nil {
			return false, "", nil
		} else {
			objPath = dest
		}
	}
	for _, k := range modKeys {
		if _, ok, err := cache.Lookup(k); err != nil || !ok {
			return false, "", nil
		}
	}
	for _, k := range modKeys {
		dest := filepath.Join(outDir, k.Stem+".mod")
		if err := cache.Recover(k, dest); err != nil {
			return false, "", nil
		}
		modPaths = append(modPaths, dest)
	}
	return true, objPath, modPaths
}

// moduleDepHashes resolves moduleDeps against modHashByModule, defaulting
// a missing entry to 0: an intrinsic module, or an implied/unreferenced
// dependency, never gets a .mod hash recorded at all.
func moduleDepHashes(moduleDeps []string, modHashByModule map[string]uint64) []uint64 {
	hashes := make([]uint64, len(moduleDeps))
	for i, name := range moduleDeps {
		hashes[i] = modHashByModule[name]
	}
	return hashes
}

func stemOf(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// hashModFile fingerprints a just-produced or just-recovered .mod file so
// the next wave's consumers can fold it into their own compile
// fingerprint, per fingerprint.go's doc comment on the recursive,
// bottom-up composition.
func hashModFile(path string) (uint64, error) {
	return fingerprint.File(path)
}
