package runtime

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RunMP runs fn once per item in items, capped at a concurrency limit
// sized to the host's CPU count, mirroring the original build system's
// multiprocessing pool steps (compile, preprocess, analyse are all
// "apply fn to every file, limited by worker count" shapes). The first
// error from any invocation cancels ctx for the rest and is returned;
// spec.md never asks for partial results from these fan-outs, only an
// all-or-nothing outcome per wave.
func RunMP[T any](ctx context.Context, items []T, fn func(ctx context.Context, item T) error) error {
	return RunMPLimit(ctx, items, runtime.NumCPU(), fn)
}

// RunMPLimit is RunMP with an explicit concurrency cap, for callers that
// need a smaller pool than NumCPU. RunMP and MapMP both call it with
// runtime.NumCPU().
func RunMPLimit[T any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) error) error {
	if limit < 1 {
		limit = 1
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, item := range items {
		item := item
		g.Go(func() error {
			return fn(gCtx, item)
		})
	}
	return g.Wait()
}

// MapMP runs fn once per item, capped at NumCPU, and collects results into
// a slice indexed by input position — so ordering survives unordered
// completion, per spec.md §4.4. The first error cancels the rest and is
// returned; callers that need partial results on per-item failure should
// have fn encode failure in R instead of returning an error.
func MapMP[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	err := RunMPLimit(ctx, indices(len(items)), runtime.NumCPU(), func(ctx context.Context, i int) error {
		r, err := fn(ctx, items[i])
		if err != nil {
			return err
		}
		results[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
