package buildtree

import (
	"sort"

	"github.com/scibuild/fab/internal/analysis"
	"github.com/scibuild/fab/internal/dag"
)

// Extract builds the Tree for one root symbol: the file that defines it,
// plus every file reachable from there by breadth-first traversal of the
// source graph's edge set, per spec.md §4.7.
func Extract(source *analysis.Graph, root string) (*Tree, error) {
	definedBy := locateRoot(source, root)
	if definedBy == "" {
		return nil, &RootNotFound{Name: root}
	}

	reachable := map[string]bool{definedBy: true}
	queue := []string{definedBy}
	for _, forced := range source.ImpliedRoots {
		if !reachable[forced] {
			reachable[forced] = true
			queue = append(queue, forced)
		}
	}
	extraObjects := map[string]bool{}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		for _, dep := range source.Edges[path] {
			if _, ok := source.Files[dep]; !ok {
				extraObjects[dep] = true
				continue
			}
			if !reachable[dep] {
				reachable[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	tree := &Tree{
		Root:  root,
		Files: make(map[string]analysis.AnalysedFile, len(reachable)),
		Edges: make(map[string][]string, len(reachable)),
	}
	g := dag.New()
	for path := range reachable {
		tree.Files[path] = source.Files[path]
		g.AddNode(path)
	}
	for path := range reachable {
		for _, dep := range source.Edges[path] {
			if !reachable[dep] {
				continue
			}
			tree.Edges[path] = append(tree.Edges[path], dep)
			// dag.AddEdge(fromID, toID) records toID depends on fromID.
			if err := g.AddEdge(dep, path); err != nil {
				continue // self-edges are already excluded by analysis.BuildGraph
			}
		}
		sort.Strings(tree.Edges[path])
	}

	if cycle := findCycle(g); cycle != nil {
		return nil, &CycleDetected{Root: root, Cycle: cycle}
	}

	tree.ExtraObjects = make([]string, 0, len(extraObjects))
	for obj := range extraObjects {
		tree.ExtraObjects = append(tree.ExtraObjects, obj)
	}
	sort.Strings(tree.ExtraObjects)

	return tree, nil
}

// ExtractAll builds one Tree per root, matching the keying order callers
// request (FindPrograms discovery order, or the configured roots list).
func ExtractAll(source *analysis.Graph, roots []string) (map[string]*Tree, error) {
	trees := make(map[string]*Tree, len(roots))
	for _, root := range roots {
		tree, err := Extract(source, root)
		if err != nil {
			return nil, err
		}
		trees[root] = tree
	}
	return trees, nil
}

// ExtractLibrary builds the single, whole-graph Tree library mode publishes
// under LibraryRoot: every analysed file belongs to the one tree, so there
// is no reachability prune to perform, only the cycle check.
func ExtractLibrary(source *analysis.Graph) (*Tree, error) {
	tree := &Tree{
		Root:  LibraryRoot,
		Files: make(map[string]analysis.AnalysedFile, len(source.Files)),
		Edges: make(map[string][]string, len(source.Edges)),
	}
	g := dag.New()
	for path, f := range source.Files {
		tree.Files[path] = f
		g.AddNode(path)
	}
	extraObjects := map[string]bool{}
	for path, deps := range source.Edges {
		var kept []string
		for _, dep := range deps {
			if _, ok := source.Files[dep]; !ok {
				extraObjects[dep] = true
				continue
			}
			kept = append(kept, dep)
		}
		sort.Strings(kept)
		tree.Edges[path] = kept
		for _, dep := range kept {
			if err := g.AddEdge(dep, path); err != nil {
				continue
			}
		}
	}
	tree.ExtraObjects = make([]string, 0, len(extraObjects))
	for obj := range extraObjects {
		tree.ExtraObjects = append(tree.ExtraObjects, obj)
	}
	sort.Strings(tree.ExtraObjects)

	if cycle := findCycle(g); cycle != nil {
		return nil, &CycleDetected{Root: LibraryRoot, Cycle: cycle}
	}
	return tree, nil
}

// FindProgramRoots collects every program name any analysed Fortran file
// declares (via ProgramDefs), plus "main" if any C file defines it, for
// find_programs mode. Returned sorted so ExtractAll's map keys are
// deterministic across runs.
func FindProgramRoots(source *analysis.Graph) []string {
	names := map[string]bool{}
	for _, f := range source.Files {
		if fortran, ok := f.(*analysis.AnalysedFortran); ok {
			for _, p := range fortran.ProgramDefs() {
				names[p] = true
			}
		}
		for _, s := range f.SymbolDefs() {
			if s == "main" {
				names["main"] = true
			}
		}
	}
	roots := make([]string, 0, len(names))
	for n := range names {
		roots = append(roots, n)
	}
	sort.Strings(roots)
	return roots
}

func locateRoot(source *analysis.Graph, root string) string {
	paths := make([]string, 0, len(source.Files))
	for p := range source.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if fortran, ok := source.Files[p].(*analysis.AnalysedFortran); ok {
			for _, prog := range fortran.ProgramDefs() {
				if prog == root {
					return p
				}
			}
		}
	}
	for _, p := range paths {
		for _, s := range source.Files[p].SymbolDefs() {
			if s == root {
				return p
			}
		}
	}
	return ""
}

// findCycle runs a DFS over g looking for a back-edge into the current
// recursion stack, returning the cycle's node path if one exists. Mirrors
// dag.Graph.DetectCycles' three-colour walk, but keeps the recursion stack
// around so the caller gets the actual cycle, not just its existence.
func findCycle(g *dag.Graph) []string {
	permanent := map[string]bool{}
	onStack := map[string]bool{}
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		if permanent[id] {
			return false
		}
		if onStack[id] {
			start := 0
			for i, v := range stack {
				if v == id {
					start = i
					break
				}
			}
			cycle = append([]string{}, stack[start:]...)
			return true
		}

		onStack[id] = true
		stack = append(stack, id)

		deps, _ := g.Dependencies(id)
		sort.Strings(deps)
		for _, dep := range deps {
			if visit(dep) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
		permanent[id] = true
		return false
	}

	ids := g.NodeIDs()
	for _, id := range ids {
		if !permanent[id] {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}
