package compile

import (
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/scibuild/fab/internal/buildconfig"
)

// fingerprintInputs is hashed via hashstructure to form a compile
// fingerprint, per spec.md §4.8 step 1: content hash, compiler identity
// and version, the resolved flags for this path, and the sorted hashes of
// every module dependency's produced .mod file. The .mod hashes (not the
// producing file's own content hash) are what makes the composition
// recursive/bottom-up: a two-level-deep module change changes its .mod
// file's bytes, which changes the hash fed into every consumer's
// fingerprint, without the consumer needing to know the whole chain.
type fingerprintInputs struct {
	ContentHash      uint64
	CompilerIdentity string
	CompilerVersion  string
	Flags            []string
	ModuleDepHashes  []uint64
}

func computeFingerprint(contentHash uint64, identity, version string, flags []string, moduleDepHashes []uint64) (uint64, error) {
	sortedFlags := append([]string(nil), flags...)
	sort.Strings(sortedFlags)
	sortedHashes := append([]uint64(nil), moduleDepHashes...)
	sort.Slice(sortedHashes, func(i, j int) bool { return sortedHashes[i] < sortedHashes[j] })

	return hashstructure.Hash(fingerprintInputs{
		ContentHash:      contentHash,
		CompilerIdentity: identity,
		CompilerVersion:  version,
		Flags:            sortedFlags,
		ModuleDepHashes:  sortedHashes,
	}, hashstructure.FormatV2, nil)
}

// resolvedFlags returns toolCfg's common flags plus every path_flags entry
// whose glob matches path, in configuration order. It never includes the
// per-invocation managed flags (-fsyntax-only, -J/-module and the module
// folder): those are added at dispatch time only, so a two-stage pass A/B
// pair and a single-stage compile of the same source under the same
// common flags fold the same flags into their fingerprints. -c is not
// added at dispatch; it reaches here through the common flags, where
// buildconfig adds it for the fc tool.
func resolvedFlags(toolCfg buildconfig.Tool, pathFlags []buildconfig.PathFlags, path string) []string {
	flags := append([]string(nil), toolCfg.CommonFlags...)
	for _, pf := range pathFlags {
		if matchGlob(pf.Glob, path) {
			flags = append(flags, pf.Flags...)
		}
	}
	return flags
}

func matchGlob(glob, path string) bool {
	if glob == "" {
		return true
	}
	if gi, err := compileGlob(glob); err == nil {
		return gi.MatchesPath(path)
	}
	return strings.Contains(path, glob)
}
