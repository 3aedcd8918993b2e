// Package analysis implements the source analyser: Fortran/C extraction,
// .an record serialisation, and source-graph assembly over
// FORTRAN_BUILD_FILES/C_BUILD_FILES.
package analysis

import "sort"

// AnalysedFile is the capability set spec.md §3 requires of both
// AnalysedFortran and AnalysedC: the shared view the build-tree extractor
// and compile scheduler operate over without branching on language.
type AnalysedFile interface {
	Path() string
	ContentHash() uint64
	ModuleDefs() []string
	ModuleDeps() []string
	SymbolDefs() []string
	SymbolDeps() []string
	FileDeps() []string
}

// base holds the five capability-set fields common to both AnalysedFortran
// and AnalysedC, plus path/content_hash. Exported fields so yaml.v2 can
// serialise it directly without custom (Un)MarshalYAML methods.
type base struct {
	PathField        string   `yaml:"path"`
	ContentHashField uint64   `yaml:"content_hash"`
	ModuleDefsField  []string `yaml:"module_defs"`
	ModuleDepsField  []string `yaml:"module_deps"`
	SymbolDefsField  []string `yaml:"symbol_defs"`
	SymbolDepsField  []string `yaml:"symbol_deps"`
	FileDepsField    []string `yaml:"file_deps"`
}

func (b *base) Path() string          { return b.PathField }
func (b *base) ContentHash() uint64   { return b.ContentHashField }
func (b *base) ModuleDefs() []string  { return b.ModuleDefsField }
func (b *base) ModuleDeps() []string  { return b.ModuleDepsField }
func (b *base) SymbolDefs() []string  { return b.SymbolDefsField }
func (b *base) SymbolDeps() []string  { return b.SymbolDepsField }
func (b *base) FileDeps() []string    { return b.FileDepsField }

func (b *base) sort() {
	sort.Strings(b.ModuleDefsField)
	sort.Strings(b.ModuleDepsField)
	sort.Strings(b.SymbolDefsField)
	sort.Strings(b.SymbolDepsField)
	sort.Strings(b.FileDepsField)
}

// PsycloneKernel is metadata for one derived-type definition extending
// kernel_type, carried on the analysed-file record so a future .x90 step
// can consume it without migrating the record format. Not read by any
// step this engine implements.
type PsycloneKernel struct {
	Name      string            `yaml:"name"`
	Metadata  map[string]string `yaml:"metadata,omitempty"`
}

// AnalysedFortran is the Fortran variant of AnalysedFile. ProgramDefs is a
// named subset of SymbolDefs: root-symbol resolution prefers it, falling
// back to SymbolDefs for BIND(C) library entry points (spec.md Full-3.1).
type AnalysedFortran struct {
	base `yaml:",inline"`

	ProgramDefsField []string                  `yaml:"program_defs"`
	PsycloneKernels  map[string]PsycloneKernel `yaml:"psyclone_kernels,omitempty"`
}

// ProgramDefs returns the subset of SymbolDefs contributed by PROGRAM
// statements, per spec.md Full-3.1.
func (f *AnalysedFortran) ProgramDefs() []string { return f.ProgramDefsField }

func (f *AnalysedFortran) sort() {
	f.base.sort()
	sort.Strings(f.ProgramDefsField)
}

// AnalysedC is the C variant of AnalysedFile. It adds no fields beyond the
// shared capability set; the type exists to let the analyser and the
// source graph keep "which language parsed this" as a type distinction
// rather than a string tag, per spec.md §4.6's "Polymorphism" note.
type AnalysedC struct {
	base `yaml:",inline"`
}

// ParserWorkaround is the five-field escape hatch spec.md §4.6 describes
// for files the parser cannot handle: the analyser inserts these fields
// verbatim instead of extracting them.
type ParserWorkaround struct {
	Path       string
	ModuleDefs []string
	SymbolDefs []string
	ModuleDeps []string
	SymbolDeps []string
}
