// Package runtime implements the step runtime: the per-invocation scope
// that owns the artefact store, runs steps in declared order, and flushes
// housekeeping and metrics when the run ends.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/scibuild/fab/internal/ctxlog"
	"github.com/scibuild/fab/internal/store"
)

// Step is one unit of a build: given the current scope, read whatever
// collections it needs from the store and write whatever it produces.
// Steps never call each other directly — the store is the only channel.
type Step interface {
	Name() string
	Run(ctx context.Context, s *Scope) error
}

// StepFunc adapts a plain function to Step, for steps with no state of
// their own beyond their closure.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context, s *Scope) error
}

func (f StepFunc) Name() string { return f.StepName }

func (f StepFunc) Run(ctx context.Context, s *Scope) error { return f.Fn(ctx, s) }

// StepFailed wraps the error returned by a named step, so a caller can
// tell which step in a sequence failed without string-matching a message.
type StepFailed struct {
	Step string
	Err  error
}

func (e *StepFailed) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

func (e *StepFailed) Unwrap() error { return e.Err }

// Housekeeper is run once after every step has completed, win or lose, so
// that cache sweeps and metrics flushes happen even on a failed build.
type Housekeeper interface {
	Housekeep(ctx context.Context, s *Scope) error
}

// StepObserver is notified after every step finishes, win or lose. It
// exists so a metrics collector can sit outside this package entirely —
// Scope never imports anything that knows what a Prometheus histogram is.
type StepObserver interface {
	ObserveStep(name string, elapsed time.Duration, err error)
}

// Scope is a single build run: its artefact store and the steps to run
// against it. It is created fresh per invocation and discarded at exit;
// nothing about it is expected to outlive the process that built it.
type Scope struct {
	Store        *store.Store
	Steps        []Step
	Housekeepers []Housekeeper
	Observer     StepObserver
	StartedAt    time.Time
}

// NewScope returns an empty Scope ready to accumulate steps.
func NewScope() *Scope {
	return &Scope{Store: store.New()}
}

// Use appends steps to run, in the order given. Step order is significant:
// spec.md's collections are produced by earlier steps and consumed by
// later ones, and there is no dependency solver between steps themselves.
func (s *Scope) Use(steps ...Step) *Scope {
	s.Steps = append(s.Steps, steps...)
	return s
}

// UseHousekeeper registers h to run at scope exit regardless of outcome.
func (s *Scope) UseHousekeeper(h Housekeeper) *Scope {
	s.Housekeepers = append(s.Housekeepers, h)
	return s
}

// Run executes every registered step in order, stopping at the first
// failure, then always runs housekeeping before returning. The first step
// error and the first housekeeping error (if any) are both reported; a
// housekeeping failure never masks an earlier step failure.
func (s *Scope) Run(ctx context.Context) error {
	s.StartedAt = time.Now()
	logger := ctxlog.FromContext(ctx)

	var runErr error
	for _, step := range s.Steps {
		logger.Info("step starting", "step", step.Name())
		start := time.Now()
		stepErr := step.Run(ctx, s)
		elapsed := time.Since(start)
		if s.Observer != nil {
			s.Observer.ObserveStep(step.Name(), elapsed, stepErr)
		}
		if stepErr != nil {
			runErr = &StepFailed{Step: step.Name(), Err: stepErr}
			logger.Error("step failed", "step", step.Name(), "elapsed", elapsed, "err", stepErr)
			break
		}
		logger.Info("step finished", "step", step.Name(), "elapsed", elapsed)
	}

	for _, h := range s.Housekeepers {
		if err := h.Housekeep(ctx, s); err != nil {
			logger.Error("housekeeping failed", "err", err)
			if runErr == nil {
				runErr = fmt.Errorf("runtime: housekeeping: %w", err)
			}
		}
	}

	return runErr
}
