// Package buildtree implements spec.md §4.7's build-tree extractor: the
// reachability prune from a root symbol's defining file over the source
// graph, or the whole-graph tree library mode keeps under LibraryRoot.
package buildtree
