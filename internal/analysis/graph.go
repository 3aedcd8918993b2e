package analysis

import (
	"fmt"
	"sort"
)

// DuplicateDefinition is the fatal graph-assembly error spec.md §4.6
// names: two files defining the same module or externally-visible symbol.
type DuplicateDefinition struct {
	Name  string
	PathA string
	PathB string
}

func (e *DuplicateDefinition) Error() string {
	return fmt.Sprintf("analysis: %q defined in both %s and %s", e.Name, e.PathA, e.PathB)
}

// Graph is the source graph: Path -> AnalysedFile plus the edge set derived
// from module_deps/symbol_deps/file_deps, per spec.md §3's "Source graph".
type Graph struct {
	Files map[string]AnalysedFile
	Edges map[string][]string

	// Implied holds, for diagnostics, every unreferenced_deps name that
	// was used to resolve an otherwise-dangling dependency, keyed by the
	// file that declared the dependency.
	Implied map[string][]string

	// ImpliedRoots lists every file that defines an unreferenced_deps
	// name, sorted and deduplicated. buildtree.Extract seeds its
	// reachable set with these in addition to a root's own transitive
	// closure, so a routine called only from code the analyser can't
	// see (spec.md §280's one-line IF) still ends up in the build.
	ImpliedRoots []string
}

// BuildGraph assembles the source graph from every analysed file, in
// path-sorted order so DuplicateDefinition and the "dropped dependency"
// warnings it would otherwise log are deterministic, per spec.md §4.6's
// "Ordering and tie-breaks".
func BuildGraph(files []AnalysedFile, unreferencedDeps []string) (*Graph, []string, error) {
	sorted := append([]AnalysedFile(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path() < sorted[j].Path() })

	byName := make(map[string]string) // module/symbol name -> defining path
	byPath := make(map[string]AnalysedFile, len(sorted))

	for _, f := range sorted {
		byPath[f.Path()] = f
		for _, name := range f.ModuleDefs() {
			if prior, ok := byName[name]; ok && prior != f.Path() {
				return nil, nil, &DuplicateDefinition{Name: name, PathA: prior, PathB: f.Path()}
			}
			byName[name] = f.Path()
		}
		for _, name := range f.SymbolDefs() {
			if prior, ok := byName[name]; ok && prior != f.Path() {
				return nil, nil, &DuplicateDefinition{Name: name, PathA: prior, PathB: f.Path()}
			}
			byName[name] = f.Path()
		}
	}

	implied := map[string][]string{}
	impliedSet := make(map[string]bool, len(unreferencedDeps))
	for _, n := range unreferencedDeps {
		impliedSet[n] = true
	}

	var warnings []string
	edges := make(map[string][]string, len(sorted))

	resolve := func(f AnalysedFile, name string) {
		target, ok := byName[name]
		if !ok {
			if impliedSet[name] {
				implied[f.Path()] = append(implied[f.Path()], name)
				return
			}
			warnings = append(warnings, fmt.Sprintf("analysis: %s: unresolved dependency %q dropped", f.Path(), name))
			return
		}
		if target == f.Path() {
			return
		}
		edges[f.Path()] = append(edges[f.Path()], target)
	}

	for _, f := range sorted {
		for _, name := range f.ModuleDeps() {
			resolve(f, name)
		}
		for _, name := range f.SymbolDeps() {
			resolve(f, name)
		}
		for _, dep := range f.FileDeps() {
			edges[f.Path()] = append(edges[f.Path()], dep)
		}
	}

	for path := range edges {
		sort.Strings(edges[path])
	}

	rootSet := map[string]bool{}
	for _, n := range unreferencedDeps {
		if target, ok := byName[n]; ok {
			rootSet[target] = true
		}
	}
	impliedRoots := make([]string, 0, len(rootSet))
	for path := range rootSet {
		impliedRoots = append(impliedRoots, path)
	}
	sort.Strings(impliedRoots)

	return &Graph{Files: byPath, Edges: edges, Implied: implied, ImpliedRoots: impliedRoots}, warnings, nil
}
