package archive

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/scibuild/fab/internal/buildconfig"
	"github.com/scibuild/fab/internal/runtime"
	"github.com/scibuild/fab/internal/store"
	"github.com/scibuild/fab/internal/toolrun"
)

// Step is the optional archiver stage: one static archive per root, built
// from that root's OBJECT_FILES. A run that omits this step leaves
// OBJECT_ARCHIVES unset, and the linker falls back to OBJECT_FILES
// directly, per spec.md §4.9.
type Step struct {
	Tool    toolrun.Tool
	ToolCfg buildconfig.Tool
	OutDir  string
}

func (Step) Name() string { return "archive" }

func (s Step) Run(ctx context.Context, scope *runtime.Scope) error {
	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		return err
	}

	objectFiles, err := store.Get[map[string][]string](scope.Store, store.ObjectFiles)
	if err != nil {
		return err
	}

	roots := make([]string, 0, len(objectFiles))
	for root := range objectFiles {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	archives := make(map[string]string, len(roots))
	for _, root := range roots {
		objs := append([]string(nil), objectFiles[root]...)
		sort.Strings(objs)
		archivePath := filepath.Join(s.OutDir, "lib"+root+".a")

		args := append(append([]string(nil), s.ToolCfg.CommonFlags...), "cr", archivePath)
		args = append(args, objs...)

		result, runErr := s.Tool.Run(ctx, s.ToolCfg.Command, args, s.OutDir)
		if runErr != nil {
			return &Failed{Root: root, Stderr: result.Stderr, Err: runErr}
		}
		archives[root] = archivePath
	}

	scope.Store.Set(store.ObjectArchives, archives)
	return nil
}
