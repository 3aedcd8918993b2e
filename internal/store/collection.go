package store

// Name identifies one collection in the Store. The set of valid names is
// closed: spec.md §3 enumerates exactly these, and steps must not invent
// new ones, so a typo surfaces as MissingCollection rather than silently
// starting a new, unread collection.
type Name string

const (
	// InitialSource holds every source path source discovery found,
	// before any categorisation by suffix.
	InitialSource Name = "INITIAL_SOURCE"

	// FortranBuildFiles holds the current canonical Fortran sources to
	// analyse/compile. Preprocessing rewrites this collection in place:
	// a .F90 entry is replaced by the .f90 it produced.
	FortranBuildFiles Name = "FORTRAN_BUILD_FILES"

	// CBuildFiles holds the current canonical C sources to analyse/compile.
	CBuildFiles Name = "C_BUILD_FILES"

	// X90BuildFiles holds code-generation inputs awaiting expansion by the
	// (out of scope) .x90 -> .f90 pre-pass.
	X90BuildFiles Name = "X90_BUILD_FILES"

	// PreprocessedFortran is the historical/compatibility mirror of the
	// Fortran preprocessor's output, published alongside the rewritten
	// FortranBuildFiles entries.
	PreprocessedFortran Name = "PREPROCESSED_FORTRAN"

	// PreprocessedC is the C preprocessor's output paths.
	PreprocessedC Name = "PREPROCESSED_C"

	// PragmadC is the C-pragma injector's output: CBuildFiles filtered
	// through system/user include annotation.
	PragmadC Name = "PRAGMAD_C"

	// SourceGraph holds the full Path -> AnalysedFile mapping the source
	// analyser assembles. Not itself one of spec.md §3's named result
	// collections (it is an intermediate between the analyser and the
	// build-tree extractor), but spec.md §2 requires all inter-step data
	// flow to go through the store, so it gets a name like everything else.
	SourceGraph Name = "SOURCE_GRAPH"

	// BuildTrees maps root-symbol name to its analysed-file subgraph.
	BuildTrees Name = "BUILD_TREES"

	// ObjectFiles maps root-symbol name to the set of compiled object
	// paths for that build tree.
	ObjectFiles Name = "OBJECT_FILES"

	// ObjectArchives maps root-symbol name to its archive path.
	ObjectArchives Name = "OBJECT_ARCHIVES"

	// Executables holds the set of final linked executable paths.
	Executables Name = "EXECUTABLES"
)
