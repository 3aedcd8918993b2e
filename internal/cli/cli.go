package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/scibuild/fab/internal/app"
)

// ExitError carries a process exit code alongside its message, so main
// can translate a command failure into the right os.Exit call without
// string-matching anything.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// NewRootCommand builds the "fab" cobra command: load the build file
// named by its single positional argument (default "fab.hcl"), construct
// the App, and run the pipeline to completion.
func NewRootCommand(outW io.Writer) *cobra.Command {
	var (
		workspace             string
		logLevel              string
		logFormat             string
		project               string
		sourceRoots           []string
		roots                 []string
		twoStage              bool
		housekeepingOlderThan string
	)

	cmd := &cobra.Command{
		Use:           "fab [config-file]",
		Short:         "Orchestrate a Fortran/C build from a declarative build file",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := "fab.hcl"
			if len(args) > 0 {
				configPath = args[0]
			}

			// spec.md §6's workspace root already has an environment
			// override (FAB_WORKSPACE); the CLI flag is sugar over the
			// same mechanism rather than a second code path.
			if workspace != "" {
				if err := os.Setenv("FAB_WORKSPACE", workspace); err != nil {
					return err
				}
			}

			cfg, err := app.NewConfig(app.Config{
				ConfigPath:            configPath,
				LogLevel:              logLevel,
				LogFormat:             logFormat,
				ProjectLabel:          project,
				SourceRoots:           sourceRoots,
				Roots:                 roots,
				TwoStage:              twoStage,
				TwoStageSet:           cmd.Flags().Changed("two-stage"),
				HousekeepingOlderThan: housekeepingOlderThan,
			})
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}

			a, err := app.NewApp(outW, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "Override the workspace root (sets FAB_WORKSPACE).")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error.")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log output format: text or json.")
	cmd.Flags().StringVar(&project, "project", "", "Override the build file's workspace project label.")
	cmd.Flags().StringArrayVar(&sourceRoots, "source-root", nil, "Override the build file's source_roots (repeatable).")
	cmd.Flags().StringArrayVar(&roots, "root", nil, "Override the build file's root symbols, switching to roots mode (repeatable).")
	cmd.Flags().BoolVar(&twoStage, "two-stage", false, "Override the fc tool's two_stage setting.")
	cmd.Flags().StringVar(&housekeepingOlderThan, "housekeeping-older-than", "", "Override housekeeping.older_than (e.g. \"720h\").")

	return cmd
}
