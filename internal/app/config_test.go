package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scibuild/fab/internal/buildconfig"
)

func TestApplyCLIOverrides_LeavesConfigUntouchedWhenNothingSet(t *testing.T) {
	cfg := &buildconfig.Config{
		ProjectLabel: "demo",
		SourceRoots:  []string{"src"},
		Roots:        []string{"main_prog"},
		Tools:        map[string]buildconfig.Tool{"fc": {Command: "gfortran"}},
	}
	require.NoError(t, applyCLIOverrides(cfg, &Config{}))

	assert.Equal(t, "demo", cfg.ProjectLabel)
	assert.Equal(t, []string{"src"}, cfg.SourceRoots)
	assert.Equal(t, []string{"main_prog"}, cfg.Roots)
	assert.False(t, cfg.Tools["fc"].TwoStage)
	assert.Nil(t, cfg.HousekeepingOlderThan)
}

func TestApplyCLIOverrides_OverridesProjectSourceRootsAndTwoStage(t *testing.T) {
	cfg := &buildconfig.Config{
		ProjectLabel: "demo",
		SourceRoots:  []string{"src"},
		FindPrograms: true,
		Tools:        map[string]buildconfig.Tool{"fc": {Command: "gfortran"}},
	}
	err := applyCLIOverrides(cfg, &Config{
		ProjectLabel: "override",
		SourceRoots:  []string{"src/um", "src/jules"},
		Roots:        []string{"main_prog"},
		TwoStage:     true,
		TwoStageSet:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "override", cfg.ProjectLabel)
	assert.Equal(t, []string{"src/um", "src/jules"}, cfg.SourceRoots)
	assert.Equal(t, []string{"main_prog"}, cfg.Roots)
	assert.False(t, cfg.FindPrograms, "--root must switch the build out of find_programs mode")
	assert.True(t, cfg.Tools["fc"].TwoStage)
}

func TestApplyCLIOverrides_ParsesHousekeepingOlderThan(t *testing.T) {
	cfg := &buildconfig.Config{Tools: map[string]buildconfig.Tool{}}
	require.NoError(t, applyCLIOverrides(cfg, &Config{HousekeepingOlderThan: "720h"}))

	require.NotNil(t, cfg.HousekeepingOlderThan)
	assert.Equal(t, 720*time.Hour, *cfg.HousekeepingOlderThan)
}

func TestApplyCLIOverrides_RejectsUnparsableHousekeepingOlderThan(t *testing.T) {
	cfg := &buildconfig.Config{Tools: map[string]buildconfig.Tool{}}
	err := applyCLIOverrides(cfg, &Config{HousekeepingOlderThan: "not-a-duration"})
	assert.Error(t, err)
}
