// Package buildconfig decodes the project's fab.hcl build file and layers
// environment variable overrides on top of it into one immutable Config,
// collected once at startup and threaded explicitly through every step.
// There is no process-wide configuration singleton and nothing re-reads
// the file mid-run. See spec.md §6 for the closed configuration surface;
// this package implements exactly that surface, nothing more.
package buildconfig
