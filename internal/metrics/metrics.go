// Package metrics implements Full-4.11's text-only metrics collection:
// Prometheus counters and histograms updated by the step runtime and the
// compile scheduler, dumped as plain text at scope exit. Nothing in this
// package plots or serves anything — spec.md's plotting non-goal rules
// out a dashboard, not the counters themselves.
package metrics

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/scibuild/fab/internal/runtime"
)

// Registry owns one run's metrics and the registry they live in. It is
// constructed once per run and passed to both Scope.Observer (for step
// timings) and the compile scheduler (for wave sizes and cache hits).
type Registry struct {
	reg *prometheus.Registry

	StepDuration    *prometheus.HistogramVec
	PrebuildHits    prometheus.Counter
	PrebuildMisses  prometheus.Counter
	CompileWaveSize *prometheus.GaugeVec
}

// New returns a Registry with every metric registered against its own
// prometheus.Registry, not the global DefaultRegisterer — a run's
// metrics belong to that run alone, and two concurrent runs in the same
// process must never share counters.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "fab_step_duration_seconds",
			Help: "Wall-clock duration of each step runtime invocation.",
		}, []string{"step"}),
		PrebuildHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fab_prebuild_hits_total",
			Help: "Prebuild cache lookups that found an existing entry.",
		}),
		PrebuildMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fab_prebuild_misses_total",
			Help: "Prebuild cache lookups that found nothing.",
		}),
		CompileWaveSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fab_compile_wave_size",
			Help: "Number of files dispatched in the most recent compile wave, by root.",
		}, []string{"root"}),
	}

	reg.MustRegister(m.StepDuration, m.PrebuildHits, m.PrebuildMisses, m.CompileWaveSize)
	return m
}

// ObserveStep implements runtime.StepObserver: every step's duration lands
// in StepDuration regardless of outcome, since a failed step's time is
// still time spent.
func (m *Registry) ObserveStep(name string, elapsed time.Duration, err error) {
	m.StepDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// ObserveWaveSize implements compile.WaveObserver.
func (m *Registry) ObserveWaveSize(root string, size int) {
	m.CompileWaveSize.WithLabelValues(root).Set(float64(size))
}

// CacheHit implements compile.CacheObserver.
func (m *Registry) CacheHit() { m.PrebuildHits.Inc() }

// CacheMiss implements compile.CacheObserver.
func (m *Registry) CacheMiss() { m.PrebuildMisses.Inc() }

var _ runtime.StepObserver = (*Registry)(nil)

// Flush writes every registered metric family to path in the Prometheus
// text exposition format, creating path's directory if needed.
func (m *Registry) Flush(path string) error {
	families, err := m.reg.Gather()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(f, family); err != nil {
			return err
		}
	}
	return nil
}

// Housekeeper flushes m.Flush(path) at scope exit, alongside the prebuild
// sweep — both are "runs once regardless of outcome" concerns, so both
// register the same way against runtime.Scope.
type housekeeper struct {
	m    *Registry
	path string
}

// NewHousekeeper returns a runtime.Housekeeper that flushes m to path
// when the scope exits.
func NewHousekeeper(m *Registry, path string) runtime.Housekeeper {
	return &housekeeper{m: m, path: path}
}

func (h *housekeeper) Housekeep(ctx context.Context, s *runtime.Scope) error {
	return h.m.Flush(h.path)
}
