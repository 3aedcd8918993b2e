package buildtree

import (
	"fmt"

	"github.com/scibuild/fab/internal/analysis"
)

// LibraryRoot is the sentinel root name library mode publishes its single,
// whole-graph tree under, since library builds have no program root symbol
// to key the result by.
const LibraryRoot = "__library__"

// RootNotFound is returned when no analysed file defines a requested root
// symbol (a program name, or "main" for a C entry point).
type RootNotFound struct {
	Name string
}

func (e *RootNotFound) Error() string {
	return fmt.Sprintf("buildtree: no file defines root symbol %q", e.Name)
}

// CycleDetected is returned when a build tree's reachable subgraph contains
// a strongly connected component spanning more than one file. Self-edges
// from a file's own intra-file USE are never graph edges in the first
// place (analysis.BuildGraph skips them), so they can never trigger this.
type CycleDetected struct {
	Root  string
	Cycle []string
}

func (e *CycleDetected) Error() string {
	return fmt.Sprintf("buildtree: cycle detected building tree for root %q: %v", e.Root, e.Cycle)
}

// Tree is one root's extracted subgraph: the files reachable from the file
// defining Root, plus the edge set restricted to that file set.
type Tree struct {
	Root  string
	Files map[string]analysis.AnalysedFile
	Edges map[string][]string

	// ExtraObjects lists every file_deps target reachable from Root that
	// is not itself an analysed file — a literal object path named by a
	// `! DEPENDS ON: <obj>.o` pragma, per spec.md §4.6's "hand-maintained
	// C object reference". These never get compiled and are never a
	// dag/cycle-detection node; they are folded straight into the root's
	// object list so the linker sees them.
	ExtraObjects []string
}
