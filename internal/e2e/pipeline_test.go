package e2e

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/scibuild/fab/internal/analysis"
	"github.com/scibuild/fab/internal/archive"
	"github.com/scibuild/fab/internal/buildconfig"
	"github.com/scibuild/fab/internal/buildtree"
	"github.com/scibuild/fab/internal/compile"
	"github.com/scibuild/fab/internal/ctxlog"
	"github.com/scibuild/fab/internal/discover"
	"github.com/scibuild/fab/internal/link"
	"github.com/scibuild/fab/internal/prebuild"
	"github.com/scibuild/fab/internal/preprocess"
	"github.com/scibuild/fab/internal/runtime"
	"github.com/scibuild/fab/internal/store"
	"github.com/scibuild/fab/internal/toolrun"
)

// pipelineConfig gathers the knobs a test wants to vary without having to
// re-derive the whole step wiring every time: roots, two-stage Fortran
// compilation, and the -D defines fed to the preprocessor tools.
type pipelineConfig struct {
	SourceDir string
	WorkDir   string
	Roots     []string
	TwoStage  bool
	Defines   []string
}

// buildPipeline wires discover through link exactly as internal/app does,
// against tool and cache, and returns the ready-to-run Scope.
func buildPipeline(tool toolrun.Tool, cache *prebuild.Cache, cfg pipelineConfig) *runtime.Scope {
	sourceOut := filepath.Join(cfg.WorkDir, "source")
	buildOut := filepath.Join(cfg.WorkDir, "build_output")

	fppTool := buildconfig.Tool{Command: FppCommand, CommonFlags: cfg.Defines}
	fcTool := buildconfig.Tool{Command: FcCommand, CommonFlags: nil, TwoStage: cfg.TwoStage}
	ccTool := buildconfig.Tool{Command: CcCommand, CommonFlags: cfg.Defines}
	arTool := buildconfig.Tool{Command: ArCommand}
	ldTool := buildconfig.Tool{Command: LdCommand}

	discoverStep := runtime.StepFunc{
		StepName: "discover",
		Fn: func(ctx context.Context, scope *runtime.Scope) error {
			res, err := discover.Run([]string{cfg.SourceDir}, sourceOut)
			if err != nil {
				return err
			}
			discover.Publish(scope.Store, res)
			return nil
		},
	}

	scope := runtime.NewScope()
	scope.Use(
		discoverStep,
		preprocess.FortranStep{Tool: tool, ToolConfig: fppTool, Cache: cache, OutDir: buildOut},
		preprocess.PragmaStep{OutDir: buildOut},
		preprocess.CStep{Tool: tool, ToolConfig: ccTool, Cache: cache, OutDir: buildOut},
		analysis.Step{Cache: cache, IntrinsicModules: []string{"iso_c_binding", "iso_fortran_env"}},
		buildtree.Step{Roots: cfg.Roots},
		compile.FortranStep{Tool: tool, ToolCfg: fcTool, Identity: FcCommand, Cache: cache, OutDir: buildOut},
		compile.CStep{Tool: tool, ToolCfg: ccTool, Identity: CcCommand, Cache: cache, OutDir: buildOut},
		archive.Step{Tool: tool, ToolCfg: arTool, OutDir: buildOut},
		link.Step{Tool: tool, ToolCfg: ldTool, OutDir: buildOut},
	)
	return scope
}

// runPipeline runs scope to completion with a logger that discards
// output, matching how a test wants a clean failure message rather than
// a stream of step-starting/finished lines.
func runPipeline(scope *runtime.Scope) error {
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	return scope.Run(ctx)
}

func executables(scope *runtime.Scope) []string {
	return store.GetOr[[]string](scope.Store, store.Executables, nil)
}

func buildTrees(scope *runtime.Scope) map[string]*buildtree.Tree {
	return store.GetOr[map[string]*buildtree.Tree](scope.Store, store.BuildTrees, nil)
}
