package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbtcontracts/internal/adapter"
	"github.com/leapstack-labs/dbtcontracts/internal/cli/config"
	"github.com/leapstack-labs/dbtcontracts/internal/cli/output"
	"github.com/leapstack-labs/dbtcontracts/internal/runner"
	"github.com/leapstack-labs/dbtcontracts/internal/watch"
	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
	"github.com/leapstack-labs/dbtcontracts/pkg/contract"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Contract string   // Contract key to run, e.g. "models" or "models.columns"
	Enforce  []string // Term names to run and record as errors
	Format   string   // Results file format: text, json, jsonl, github-annotations
	NoFail   bool     // Keep the exit code zero on violations
	Watch    bool     // Re-validate when project files change
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [contract]",
		Short: "Validate dbt metadata against the configured contracts",
		Long: `Check the dbt manifest and catalog against the contracts declared in
.dbtcontracts.yml and report every violation.

Contracts cover models, sources, macros and their columns or arguments.
When no catalog.json exists and a target is configured, the catalog is
introspected live from the warehouse.`,
		Example: `  # Validate every configured contract
  dbt-contracts validate

  # Validate a single contract
  dbt-contracts validate models

  # Validate only the column contracts of models
  dbt-contracts validate models.columns

  # Run selected terms and record them as errors
  dbt-contracts validate --enforce has_description

  # Write results for CI annotations
  dbt-contracts validate --format github-annotations

  # Re-validate on file changes
  dbt-contracts validate --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Contract = args[0]
			}
			return runValidate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Contract, "contract", "c", "", "Contract key to validate (e.g. models, sources.columns)")
	cmd.Flags().StringSliceVar(&opts.Enforce, "enforce", nil, "Term names to run and record as errors")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Results file format: text, json, jsonl, github-annotations")
	cmd.Flags().BoolVar(&opts.NoFail, "no-fail", false, "Exit zero even when violations are found")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-validate when project files change")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "jsonl", "github-annotations"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	if len(cfg.Contracts) == 0 {
		return fmt.Errorf("no contracts configured; add a contracts block to %s", config.GetConfigFileUsed())
	}
	if opts.NoFail {
		cfg.NoFail = true
	}
	format := cfg.Format
	if opts.Format != "" {
		format = opts.Format
	}

	if opts.Watch {
		return watchValidate(cmd, cmdCtx, opts)
	}

	run, err := validatePass(cmd.Context(), cmdCtx, opts)
	if err != nil {
		return err
	}
	renderRun(r, run)

	if format != "" {
		path, err := runner.WriteResults(run.Results, format, cfg.ResultsPath)
		if err != nil {
			return err
		}
		if r.EffectiveMode() != output.ModeJSON {
			r.Printf("Results written to %s\n", path)
		}
	}

	if len(run.Results) > 0 && !cfg.NoFail {
		return fmt.Errorf("%d contract violations found", len(run.Results))
	}
	return nil
}

// validatePass loads fresh artifacts and runs every selected contract
// once.
func validatePass(ctx context.Context, cmdCtx *CommandContext, opts *ValidateOptions) (*runner.Run, error) {
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	manifest, catalog, err := runner.LoadArtifacts(cfg.TargetPath, logger)
	if err != nil {
		return nil, err
	}
	if catalog == nil && cfg.Target != nil {
		catalog, err = introspectCatalog(ctx, cmdCtx, manifest)
		if err != nil {
			return nil, err
		}
	}

	copts := contract.ContextOptions{
		ProjectDir: cfg.ProjectRoot,
		Enforced:   opts.Enforce,
		Logger:     logger,
	}
	if severity, ok := contract.ParseSeverity(cfg.Severity); ok {
		copts.Severity = &severity
	}
	cctx := contract.NewContext(manifest, catalog, copts)

	eng, err := runner.New(cfg.Contracts, logger)
	if err != nil {
		return nil, err
	}
	return eng.Validate(ctx, cctx, runner.Options{
		Contract: opts.Contract,
		Terms:    opts.Enforce,
	})
}

// introspectCatalog builds a live catalog from the configured
// warehouse target.
func introspectCatalog(ctx context.Context, cmdCtx *CommandContext, manifest *artifact.Manifest) (*artifact.Catalog, error) {
	cfg := cmdCtx.Cfg
	acfg := adapter.Config{
		Type:     cfg.Target.Type,
		Path:     cfg.Target.Path,
		Host:     cfg.Target.Host,
		Port:     cfg.Target.Port,
		Database: cfg.Target.Database,
		Username: cfg.Target.User,
		Password: cfg.Target.Password,
		Schema:   cfg.Target.Schema,
		Options:  cfg.Target.Options,
	}

	a, err := adapter.Open(acfg, cmdCtx.Logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, acfg); err != nil {
		return nil, fmt.Errorf("connect to %s target: %w", a.Name(), err)
	}
	defer func() { _ = a.Close() }()

	return adapter.BuildCatalog(ctx, a, manifest, cmdCtx.Logger)
}

// watchValidate loops validation on project file changes. Violations
// never fail the process in watch mode, and no results file is written
// since that would retrigger the watcher.
func watchValidate(cmd *cobra.Command, cmdCtx *CommandContext, opts *ValidateOptions) error {
	r := cmdCtx.Renderer

	pass := func(ctx context.Context) error {
		run, err := validatePass(ctx, cmdCtx, opts)
		if err != nil {
			r.Error(fmt.Sprintf("Validation failed: %v", err))
			return err
		}
		renderRun(r, run)
		return nil
	}

	_ = pass(cmd.Context())

	w := watch.New([]string{cmdCtx.Cfg.ProjectRoot}, cmdCtx.Logger)
	return w.Run(cmd.Context(), pass)
}

// renderRun prints a validation run in the renderer's mode.
func renderRun(r *output.Renderer, run *runner.Run) {
	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(run)
		return
	}
	if len(run.Results) == 0 {
		r.Success("All contracts passed")
		return
	}

	r.Println(runner.ResultsTable(run.Results))

	errors, warnings := 0, 0
	for _, result := range run.Results {
		if result.Level == contract.SeverityError.String() {
			errors++
		} else {
			warnings++
		}
	}
	summary := fmt.Sprintf("%d violations", len(run.Results))
	if errors > 0 {
		summary += " " + r.Styles().Error.Render(fmt.Sprintf("(%d errors)", errors))
	}
	if warnings > 0 {
		summary += " " + r.Styles().Warning.Render(fmt.Sprintf("(%d warnings)", warnings))
	}
	r.Println(summary)
}
