package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/scibuild/fab/internal/buildconfig"
)

// Config holds the process-level options the CLI layer gathers before
// handing control to the engine: where the build file lives, how to log,
// and the handful of build-file fields the CLI is allowed to override
// for a single run (workspace root, project label, source roots, root
// symbols, two-stage compilation, housekeeping policy). A zero-valued
// override field means "leave whatever the build file says alone".
type Config struct {
	ConfigPath string // path to the project's fab.hcl

	LogFormat string
	LogLevel  string

	ProjectLabel          string
	SourceRoots           []string
	Roots                 []string
	TwoStage              bool
	TwoStageSet           bool
	HousekeepingOlderThan string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return &cfg, nil
}

// applyCLIOverrides layers appCfg's CLI-supplied fields onto a loaded
// build-file Config, the same "flag wins over file" sugar the --workspace
// flag already applies via FAB_WORKSPACE. Supplying --root switches the
// build to roots mode regardless of what the build file chose, since a
// root-symbols list and find_programs/library are mutually exclusive.
func applyCLIOverrides(cfg *buildconfig.Config, appCfg *Config) error {
	if appCfg.ProjectLabel != "" {
		cfg.ProjectLabel = appCfg.ProjectLabel
	}
	if len(appCfg.SourceRoots) > 0 {
		cfg.SourceRoots = appCfg.SourceRoots
	}
	if len(appCfg.Roots) > 0 {
		cfg.Roots = appCfg.Roots
		cfg.FindPrograms = false
		cfg.Library = false
	}
	if appCfg.TwoStageSet {
		if t, ok := cfg.Tools["fc"]; ok {
			t.TwoStage = appCfg.TwoStage
			cfg.Tools["fc"] = t
		}
	}
	if appCfg.HousekeepingOlderThan != "" {
		d, err := time.ParseDuration(appCfg.HousekeepingOlderThan)
		if err != nil {
			return fmt.Errorf("app: --housekeeping-older-than: %w", err)
		}
		cfg.HousekeepingOlderThan = &d
	}
	return nil
}
