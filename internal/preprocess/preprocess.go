// Package preprocess implements the preprocessor driver: per-file
// Fortran/C preprocessing with prebuild-key-based skip, plus the optional
// C-pragma injector that runs ahead of C preprocessing.
package preprocess

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/scibuild/fab/internal/buildconfig"
	"github.com/scibuild/fab/internal/fingerprint"
	"github.com/scibuild/fab/internal/prebuild"
	"github.com/scibuild/fab/internal/toolrun"
)

// PreprocessFailed is fatal for the one file it names; the driver
// continues with the remainder and aggregates every failure it hits.
type PreprocessFailed struct {
	Path   string
	Stderr string
	Err    error
}

func (e *PreprocessFailed) Error() string {
	return fmt.Sprintf("preprocess %s: %v: %s", e.Path, e.Err, e.Stderr)
}

func (e *PreprocessFailed) Unwrap() error { return e.Err }

// Aggregate collects every PreprocessFailed hit during one driver pass,
// so a single bad file never hides its siblings' failures.
type Aggregate struct {
	Failures []*PreprocessFailed
}

func (a *Aggregate) Error() string {
	msgs := make([]string, len(a.Failures))
	for i, f := range a.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("preprocess: %d file(s) failed:\n%s", len(a.Failures), strings.Join(msgs, "\n"))
}

// keyInputs is hashed via hashstructure to form a prebuild key that is
// sensitive to tool identity and flags but not to their order, matching
// spec.md §4.5's "hash(source_content || tool_identity || tool_flags)".
type keyInputs struct {
	ContentHash uint64
	ToolCommand string
	Flags       []string
}

func prebuildKey(contentHash uint64, tool buildconfig.Tool) (uint64, error) {
	flags := append([]string(nil), tool.CommonFlags...)
	sort.Strings(flags)
	h, err := hashstructure.Hash(keyInputs{
		ContentHash: contentHash,
		ToolCommand: tool.Command,
		Flags:       flags,
	}, hashstructure.FormatV2, nil)
	if err != nil {
		return 0, fmt.Errorf("preprocess: compose key: %w", err)
	}
	return h, nil
}

// File runs the configured tool over one source path, using the prebuild
// cache to skip the invocation entirely on a hit. outPath is where the
// caller wants the result to land in build_output; suffix is the
// prebuild entry's suffix ("f90" or "c").
func File(ctx context.Context, tool toolrun.Tool, toolCfg buildconfig.Tool, cache *prebuild.Cache, sourcePath, outPath, suffix string) error {
	contentHash, err := fingerprint.File(sourcePath)
	if err != nil {
		return &PreprocessFailed{Path: sourcePath, Err: err}
	}

	key, err := prebuildKey(contentHash, toolCfg)
	if err != nil {
		return &PreprocessFailed{Path: sourcePath, Err: err}
	}

	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	pbKey := prebuild.Key{Stem: stem, Hash: key, Suffix: suffix}

	if _, ok, err := cache.Lookup(pbKey); err == nil && ok {
		if err := cache.Recover(pbKey, outPath); err == nil {
			return nil
		}
	}

	args := append(append([]string(nil), toolCfg.CommonFlags...), sourcePath, "-o", outPath)
	result, err := tool.Run(ctx, toolCfg.Command, args, filepath.Dir(outPath))
	if err != nil {
		return &PreprocessFailed{Path: sourcePath, Stderr: result.Stderr, Err: err}
	}

	if _, err := cache.Store(outPath, pbKey); err != nil {
		return &PreprocessFailed{Path: sourcePath, Err: err}
	}
	return nil
}
