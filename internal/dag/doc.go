// Package dag provides a generic, concurrency-safe directed graph over
// string node IDs, with cycle detection. It carries no knowledge of files,
// modules, or compilers: callers key nodes however suits them and use
// Graph only for dependency bookkeeping and cycle checks.
//
// The build-tree extractor reuses Graph to confirm a root's dependency
// closure is acyclic before handing the result to the compile scheduler.
package dag
