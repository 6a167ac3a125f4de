// Package commands implements the dbt-contracts subcommands.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbtcontracts/internal/cli/config"
	"github.com/leapstack-labs/dbtcontracts/internal/cli/output"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds the shared command dependencies from the
// configuration loaded by the root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, falling back to defaults
// when the root command has not loaded one (as in direct command
// tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		ProjectDir:   ".",
		ProjectRoot:  ".",
		TargetDir:    config.DefaultTargetDir,
		TargetPath:   config.DefaultTargetDir,
		ResultsPath:  config.DefaultTargetDir,
		Severity:     config.DefaultSeverity,
		OutputFormat: config.DefaultOutput,
	}
}
