package buildconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ConfigError reports a malformed or contradictory build file: bad HCL
// syntax, an unparseable duration, or a root/find_programs/library
// combination the spec forbids.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// defaultWorkspaceRoot is spec.md §6's fallback when neither the
// FAB_WORKSPACE environment variable nor a configuration field supplies a
// workspace root.
func defaultWorkspaceRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fab-workspace"
	}
	return home + "/fab-workspace"
}

// Load decodes the HCL build file at path, applies environment variable
// overrides, validates the result, and returns an immutable Config.
func Load(path string) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, &ConfigError{Path: path, Err: diags}
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return nil, &ConfigError{Path: path, Err: diags}
	}

	cfg, err := resolve(&root)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// defaultIntrinsicModules names the Fortran intrinsic modules the analyser
// never treats as a module_deps edge, per spec.md §4.6. A project's
// intrinsic_modules attribute extends, rather than replaces, this set.
var defaultIntrinsicModules = []string{
	"iso_c_binding",
	"iso_fortran_env",
	"ieee_arithmetic",
	"ieee_exceptions",
	"ieee_features",
	"omp_lib",
}

func resolve(root *fileRoot) (*Config, error) {
	cfg := &Config{
		Roots:            root.Roots,
		FindPrograms:     root.FindPrograms,
		Library:          root.Library,
		UnreferencedDeps: root.UnreferencedDeps,
		IntrinsicModules: append(append([]string{}, defaultIntrinsicModules...), root.IntrinsicModules...),
		Tools:            make(map[string]Tool),
		PathFlags:        make(map[string][]PathFlags),
		WorkspaceRoot:    defaultWorkspaceRoot(),
	}

	for _, pw := range root.ParserWorkarounds {
		cfg.SpecialMeasureAnalysisResults = append(cfg.SpecialMeasureAnalysisResults, ParserWorkaround{
			Path:       pw.Path,
			ModuleDefs: pw.ModuleDefs,
			SymbolDefs: pw.SymbolDefs,
			ModuleDeps: pw.ModuleDeps,
			SymbolDeps: pw.SymbolDeps,
		})
	}

	if root.Workspace != nil {
		cfg.ProjectLabel = root.Workspace.Name
		cfg.SourceRoots = root.Workspace.SourceRoots
	}

	for _, t := range root.Tools {
		cfg.Tools[t.Identity] = Tool{
			Command:     t.Command,
			CommonFlags: t.CommonFlags,
			TwoStage:    t.TwoStage,
		}
	}

	for _, pf := range root.PathFlags {
		cfg.PathFlags[pf.Step] = append(cfg.PathFlags[pf.Step], PathFlags{
			Glob:  pf.Glob,
			Flags: pf.Flags,
		})
	}

	if root.Housekeeping != nil && root.Housekeeping.OlderThan != "" {
		d, err := time.ParseDuration(root.Housekeeping.OlderThan)
		if err != nil {
			return nil, fmt.Errorf("housekeeping.older_than: %w", err)
		}
		cfg.HousekeepingOlderThan = &d
	}

	return cfg, nil
}

// applyEnvOverrides merges spec.md §6's closed list of environment
// variables over whatever the HCL file set, then re-applies the managed
// flag fixups so an env override can't reintroduce a raw module-folder
// flag or drop -P/-c.
func applyEnvOverrides(cfg *Config) {
	if ws := os.Getenv("FAB_WORKSPACE"); ws != "" {
		cfg.WorkspaceRoot = ws
	}

	override := func(identity, command, flags string) {
		t := cfg.Tools[identity]
		if command != "" {
			t.Command = command
		}
		if flags != "" {
			t.CommonFlags = append(t.CommonFlags, flags)
		}
		cfg.Tools[identity] = t
	}

	if v := os.Getenv("FPP"); v != "" {
		override("fpp", v, "")
	}
	if v := os.Getenv("FFLAGS"); v != "" {
		override("fpp", "", v)
		override("fc", "", v)
	}
	if v := os.Getenv("FC"); v != "" {
		override("fc", v, "")
	}
	if v := os.Getenv("CC"); v != "" {
		override("cc", v, "")
	}
	if v := os.Getenv("CFLAGS"); v != "" {
		override("cc", "", v)
	}
	if v := os.Getenv("LD"); v != "" {
		override("ld", v, "")
	}
	if v := os.Getenv("LFLAGS"); v != "" {
		override("ld", "", v)
	}

	fixManagedFlags(cfg)
}

// fixManagedFlags enforces the managed flags spec.md §6 requires
// regardless of where the tool's flags came from: FPP always ends up with
// -P, FC always ends up with -c and never with a raw module-folder flag
// (the compile scheduler re-adds -J/-module pointed at build_output
// itself, per §4.8).
func fixManagedFlags(cfg *Config) {
	if t, ok := cfg.Tools["fpp"]; ok {
		if !hasFlag(t.CommonFlags, "-P") {
			t.CommonFlags = append(t.CommonFlags, "-P")
		}
		cfg.Tools["fpp"] = t
	}
	if t, ok := cfg.Tools["fc"]; ok {
		if !hasFlag(t.CommonFlags, "-c") {
			t.CommonFlags = append(t.CommonFlags, "-c")
		}
		t.CommonFlags = stripModuleFolderFlags(t.CommonFlags)
		cfg.Tools["fc"] = t
	}
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func stripModuleFolderFlags(flags []string) []string {
	out := flags[:0:0]
	for i := 0; i < len(flags); i++ {
		f := flags[i]
		if f == "-J" || f == "-module" {
			i++ // also drop the path argument that follows
			continue
		}
		out = append(out, f)
	}
	return out
}

func (c *Config) validate() error {
	modes := 0
	if len(c.Roots) > 0 {
		modes++
	}
	if c.FindPrograms {
		modes++
	}
	if c.Library {
		modes++
	}
	if modes != 1 {
		return fmt.Errorf("exactly one of roots, find_programs, or library must be set, got %d", modes)
	}
	return nil
}
