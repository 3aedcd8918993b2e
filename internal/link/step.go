package link

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

// Step links one executable per root. The flags it passes the linker come
// last in the command line, after the object/archive list, mirroring the
// ordering link_exe's object-files-then-flags convention requires for a
// static linker to resolve symbols correctly.
type Step struct {
	Tool    toolrun.Tool
	ToolCfg buildconfig.Tool
	OutDir  string
}

func (Step) Name() string { return "link" }

func (s Step) Run(ctx context.Context, scope *runtime.Scope) error {
	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		return err
	}

	archives := store.GetOr(scope.Store, store.ObjectArchives, map[string]string{})
	objectFiles, err := store.Get[map[string][]string](scope.Store, store.ObjectFiles)
	if err != nil {
		return err
	}

	roots := make([]string, 0, len(objectFiles))
	for root := range objectFiles {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	var executables []string
	for _, root := range roots {
		var inputs []string
		if archive, ok := archives[root]; ok {
			inputs = []string{archive}
		} else {
			inputs = append([]string(nil), objectFiles[root]...)
			sort.Strings(inputs)
		}

		exePath := filepath.Join(s.OutDir, root)
		args := append([]string{"-o", exePath}, inputs...)
		args = append(args, s.ToolCfg.CommonFlags...)

		result, runErr := s.Tool.Run(ctx, s.ToolCfg.Command, args, s.OutDir)
		if runErr != nil {
			return &Failed{Root: root, Stderr: result.Stderr, Err: runErr}
		}
		executables = append(executables, exePath)
	}

	sort.Strings(executables)
	scope.Store.Set(store.Executables, executables)
	return nil
}
