package buildconfig

import "time"

// fileRoot is the top-level shape every `.hcl` build file decodes into.
// Every block it names is optional; resolving it fills in defaults, and
// validate checks the combinations spec.md §6 requires (exactly one of
// roots/find_programs/library).
type fileRoot struct {
	Workspace    *workspaceBlock `hcl:"workspace,block"`
	Roots        []string        `hcl:"roots,optional"`
	FindPrograms bool            `hcl:"find_programs,optional"`
	Library      bool            `hcl:"library,optional"`

	UnreferencedDeps  []string `hcl:"unreferenced_deps,optional"`
	IntrinsicModules  []string `hcl:"intrinsic_modules,optional"`

	Tools             []*toolBlock             `hcl:"tool,block"`
	PathFlags         []*pathFlagsBlock        `hcl:"path_flags,block"`
	Housekeeping      *housekeepingBlock       `hcl:"housekeeping,block"`
	ParserWorkarounds []*parserWorkaroundBlock `hcl:"parser_workaround,block"`
}

// parserWorkaroundBlock lets a project hand the analyser the five fields of
// an AnalysedFile directly for a source file its parser cannot handle
// (spec.md §4.6's ParserWorkaround escape hatch).
type parserWorkaroundBlock struct {
	Path       string   `hcl:"path,label"`
	ModuleDefs []string `hcl:"module_defs,optional"`
	SymbolDefs []string `hcl:"symbol_defs,optional"`
	ModuleDeps []string `hcl:"module_deps,optional"`
	SymbolDeps []string `hcl:"symbol_deps,optional"`
}

// ParserWorkaround is the resolved form of parserWorkaroundBlock.
type ParserWorkaround struct {
	Path       string
	ModuleDefs []string
	SymbolDefs []string
	ModuleDeps []string
	SymbolDeps []string
}

type workspaceBlock struct {
	Name        string   `hcl:"name,label"`
	SourceRoots []string `hcl:"source_roots,optional"`
}

// toolBlock configures one external tool identity: fpp, fc, cc, ld, ar.
type toolBlock struct {
	Identity    string   `hcl:"identity,label"`
	Command     string   `hcl:"command"`
	CommonFlags []string `hcl:"common_flags,optional"`
	TwoStage    bool     `hcl:"two_stage,optional"`
}

// pathFlagsBlock adds flags to every source file whose path matches Glob,
// scoped to the named step (spec.md §6: preprocessor and Fortran compile
// both accept path_flags independently).
type pathFlagsBlock struct {
	Step  string   `hcl:"step,label"`
	Glob  string   `hcl:"glob"`
	Flags []string `hcl:"flags"`
}

type housekeepingBlock struct {
	OlderThan string `hcl:"older_than,optional"`
}

// Tool is the resolved configuration for one external tool identity, after
// HCL decode and environment variable overrides have both been applied.
type Tool struct {
	Command     string
	CommonFlags []string
	TwoStage    bool
}

// PathFlags is the resolved form of pathFlagsBlock: its Glob and Flags,
// copied as written, with the step label used as the key in
// Config.PathFlags.
type PathFlags struct {
	Glob  string
	Flags []string
}

// Config is the immutable, fully resolved per-run configuration: the
// product of decoding the HCL file and applying environment overrides.
// It is built once at startup and passed explicitly to every step;
// nothing in this engine consults a process-wide singleton or re-reads
// the file mid-run.
type Config struct {
	WorkspaceRoot string
	ProjectLabel  string
	SourceRoots   []string

	Roots        []string
	FindPrograms bool
	Library      bool

	UnreferencedDeps []string
	IntrinsicModules []string

	SpecialMeasureAnalysisResults []ParserWorkaround

	Tools     map[string]Tool
	PathFlags map[string][]PathFlags

	HousekeepingOlderThan *time.Duration
}
