// Package compile implements the compile scheduler: wave-based parallel
// Fortran compilation (with an optional two-stage syntax-only/codegen
// pass) and single-wave C compilation, over the build trees the extractor
// publishes, per spec.md §4.8.
package compile

import (
	"fmt"
	"sort"
	"strings"
)

// ToolFailure reports a nonzero exit from the compiler for one file. It is
// item-level: the scheduler collects every ToolFailure for a root before
// reporting, rather than aborting on the first one.
type ToolFailure struct {
	Stage  string
	Path   string
	Stderr string
	Err    error
}

func (e *ToolFailure) Error() string {
	return fmt.Sprintf("compile %s %s: %v: %s", e.Stage, e.Path, e.Err, e.Stderr)
}

func (e *ToolFailure) Unwrap() error { return e.Err }

// BlockedBy is reported for every file whose module dependency failed to
// compile: the file itself never ran, so it carries no stderr of its own,
// only the path of the ToolFailure that stranded it.
type BlockedBy struct {
	Path     string
	Blocking string
}

func (e *BlockedBy) Error() string {
	return fmt.Sprintf("compile: %s blocked by failed dependency %s", e.Path, e.Blocking)
}

// CompileStalled is fatal: no file in the residual set advanced during a
// wave, which means a module dependency was missed during analysis or a
// cycle slipped past the build-tree extractor's own check.
type CompileStalled struct {
	Remaining []string
}

func (e *CompileStalled) Error() string {
	sorted := append([]string(nil), e.Remaining...)
	sort.Strings(sorted)
	return fmt.Sprintf("compile: stalled with %d file(s) unable to advance: %s", len(sorted), strings.Join(sorted, ", "))
}

// WaveObserver receives the size of each dispatched compile batch, so a
// metrics collector can track fab_compile_wave_size without this package
// importing anything about Prometheus.
type WaveObserver interface {
	ObserveWaveSize(root string, size int)
}

// CacheObserver receives a prebuild cache outcome for every file this
// package's batches consider, one call per file per batch.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// RootFailed aggregates every ToolFailure/BlockedBy hit compiling one
// root's tree. Returning it stops the step immediately; later roots in
// the same run are never attempted.
type RootFailed struct {
	Root     string
	Failures []*ToolFailure
	Blocked  []*BlockedBy
}

func (e *RootFailed) Error() string {
	msgs := make([]string, 0, len(e.Failures)+len(e.Blocked))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	for _, b := range e.Blocked {
		msgs = append(msgs, b.Error())
	}
	return fmt.Sprintf("compile: root %q failed (%d failure(s)):\n%s", e.Root, len(msgs), strings.Join(msgs, "\n"))
}

// MissingExtraObject is returned when a `! DEPENDS ON: <obj>.o` pragma
// names an object discovery never copied into the workspace: every other
// object this engine links either gets compiled or is a hand-maintained
// file sitting somewhere under the configured source roots, so an
// unresolved name here means the referenced object genuinely doesn't
// exist on disk.
type MissingExtraObject struct {
	Path string
}

func (e *MissingExtraObject) Error() string {
	return fmt.Sprintf("compile: DEPENDS ON object %q not found among discovered source files", e.Path)
}
