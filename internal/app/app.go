package app

import (
	"context"
	"fmt"
	"io"
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
	"github.com/scibuild/fab/internal/housekeep"
	"github.com/scibuild/fab/internal/link"
	"github.com/scibuild/fab/internal/metrics"
	"github.com/scibuild/fab/internal/prebuild"
	"github.com/scibuild/fab/internal/preprocess"
	"github.com/scibuild/fab/internal/runtime"
	"github.com/scibuild/fab/internal/toolrun"
)

// layout is the fixed set of directories and files this engine keeps
// inside one project's workspace, per spec.md §6.
type layout struct {
	source   string
	buildOut string
	prebuild string
	metrics  string
	log      string
}

func newLayout(cfg *buildconfig.Config) layout {
	projectDir := filepath.Join(cfg.WorkspaceRoot, cfg.ProjectLabel)
	return layout{
		source:   filepath.Join(projectDir, "source"),
		buildOut: filepath.Join(projectDir, "build_output"),
		prebuild: filepath.Join(projectDir, "_prebuild"),
		metrics:  filepath.Join(projectDir, "metrics", "metrics.prom"),
		log:      filepath.Join(projectDir, "log.txt"),
	}
}

// App encapsulates one build run's dependencies and the wired
// runtime.Scope it drives to completion.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	logFile *os.File
	scope   *runtime.Scope
}

// NewApp loads the build file at appConfig.ConfigPath, lays out the
// workspace directories it names, and wires every step of the pipeline
// (discover -> preprocess -> analyse -> buildtree -> compile -> archive
// -> link) into a runtime.Scope, with housekeeping and metrics flushed at
// scope exit.
func NewApp(outW io.Writer, appConfig *Config) (*App, error) {
	cfg, err := buildconfig.Load(appConfig.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("app: load config: %w", err)
	}
	if err := applyCLIOverrides(cfg, appConfig); err != nil {
		return nil, err
	}

	dirs := newLayout(cfg)
	for _, dir := range []string{dirs.source, dirs.buildOut, dirs.prebuild, filepath.Dir(dirs.metrics)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("app: create %s: %w", dir, err)
		}
	}

	logFile, err := os.OpenFile(dirs.log, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("app: open log file: %w", err)
	}
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, io.MultiWriter(outW, logFile))
	logger.Debug("logger configured", "workspace", cfg.WorkspaceRoot, "project", cfg.ProjectLabel)

	ldTool, ok := cfg.Tools["ld"]
	if !ok {
		logFile.Close()
		return nil, fmt.Errorf("app: tool %q is not configured", "ld")
	}

	cache, err := prebuild.Open(dirs.prebuild)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("app: open prebuild cache: %w", err)
	}

	tool := toolrun.Command{}
	collector := metrics.New()

	scope := runtime.NewScope()
	scope.Observer = collector

	scope.Use(
		runtime.StepFunc{
			StepName: "discover",
			Fn: func(ctx context.Context, s *runtime.Scope) error {
				result, err := discover.Run(cfg.SourceRoots, dirs.source)
				if err != nil {
					return err
				}
				discover.Publish(s.Store, result)
				return nil
			},
		},
		preprocess.FortranStep{
			Tool:       tool,
			ToolConfig: cfg.Tools["fpp"],
			Cache:      cache,
			OutDir:     dirs.buildOut,
		},
		preprocess.PragmaStep{OutDir: dirs.buildOut},
		preprocess.CStep{
			Tool:       tool,
			ToolConfig: cfg.Tools["cc"],
			Cache:      cache,
			OutDir:     dirs.buildOut,
		},
		analysis.Step{
			Cache:             cache,
			UnreferencedDeps:  cfg.UnreferencedDeps,
			IntrinsicModules:  cfg.IntrinsicModules,
			ParserWorkarounds: toAnalysisWorkarounds(cfg.SpecialMeasureAnalysisResults),
		},
		buildtree.Step{
			Roots:        cfg.Roots,
			FindPrograms: cfg.FindPrograms,
			Library:      cfg.Library,
		},
		compile.FortranStep{
			Tool:          tool,
			ToolCfg:       cfg.Tools["fc"],
			Identity:      "fc",
			PathFlags:     cfg.PathFlags["compile-fortran"],
			Cache:         cache,
			OutDir:        dirs.buildOut,
			WaveObserver:  collector,
			CacheObserver: collector,
		},
		compile.CStep{
			Tool:          tool,
			ToolCfg:       cfg.Tools["cc"],
			Identity:      "cc",
			PathFlags:     cfg.PathFlags["compile-c"],
			Cache:         cache,
			OutDir:        dirs.buildOut,
			WaveObserver:  collector,
			CacheObserver: collector,
		},
	)

	if arTool, ok := cfg.Tools["ar"]; ok {
		scope.Use(archive.Step{Tool: tool, ToolCfg: arTool, OutDir: dirs.buildOut})
	}

	scope.Use(link.Step{Tool: tool, ToolCfg: ldTool, OutDir: dirs.buildOut})

	scope.UseHousekeeper(housekeep.New(cache, cfg.HousekeepingOlderThan))
	scope.UseHousekeeper(metrics.NewHousekeeper(collector, dirs.metrics))

	return &App{outW: outW, logger: logger, logFile: logFile, scope: scope}, nil
}

// Run drives the wired pipeline to completion or to its first step
// failure, always running housekeeping and the metrics flush regardless.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	return a.scope.Run(ctx)
}

// Close releases resources NewApp opened that outlive one Run call.
func (a *App) Close() error {
	return a.logFile.Close()
}

func toAnalysisWorkarounds(src []buildconfig.ParserWorkaround) []analysis.ParserWorkaround {
	out := make([]analysis.ParserWorkaround, len(src))
	for i, w := range src {
		out[i] = analysis.ParserWorkaround{
			Path:       w.Path,
			ModuleDefs: w.ModuleDefs,
			SymbolDefs: w.SymbolDefs,
			ModuleDeps: w.ModuleDeps,
			SymbolDeps: w.SymbolDeps,
		}
	}
	return out
}
