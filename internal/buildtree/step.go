package buildtree

import (
	"context"
	"fmt"

	"github.com/scibuild/fab/internal/analysis"
	"github.com/scibuild/fab/internal/runtime"
	"github.com/scibuild/fab/internal/store"
)

// Step is the build-tree extractor's runtime.Step: it reads the source
// graph and publishes one Tree per configured root (or a single Tree under
// LibraryRoot in library mode) to store.BuildTrees.
type Step struct {
	Roots        []string
	FindPrograms bool
	Library      bool
}

func (Step) Name() string { return "buildtree" }

func (s Step) Run(ctx context.Context, scope *runtime.Scope) error {
	source, err := store.Get[*analysis.Graph](scope.Store, store.SourceGraph)
	if err != nil {
		return fmt.Errorf("buildtree: %w", err)
	}

	if s.Library {
		tree, err := ExtractLibrary(source)
		if err != nil {
			return err
		}
		scope.Store.Set(store.BuildTrees, map[string]*Tree{LibraryRoot: tree})
		return nil
	}

	roots := s.Roots
	if s.FindPrograms {
		roots = FindProgramRoots(source)
	}

	trees, err := ExtractAll(source, roots)
	if err != nil {
		return err
	}
	scope.Store.Set(store.BuildTrees, trees)
	return nil
}
