package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbtcontracts/internal/cli/config"
	"github.com/leapstack-labs/dbtcontracts/internal/cli/output"
	"github.com/leapstack-labs/dbtcontracts/internal/runner"
	"github.com/leapstack-labs/dbtcontracts/pkg/generate"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	Resource  string // models, sources, or empty for both
	Overwrite bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [models|sources]",
		Short: "Fill properties files from catalog metadata",
		Long: `Pull descriptions, columns and data types from the dbt catalog into the
project's properties files.

Existing values are kept unless --overwrite is set. The generators
block in .dbtcontracts.yml controls what is generated per resource
kind.`,
		Example: `  # Generate properties for models and sources
  dbt-contracts generate

  # Only models
  dbt-contracts generate models

  # Replace stale descriptions
  dbt-contracts generate --overwrite`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"models", "sources"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Resource = args[0]
			}
			return runGenerate(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "Replace values that are already set")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *GenerateOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	manifest, catalog, err := runner.LoadArtifacts(cfg.TargetPath, cmdCtx.Logger)
	if err != nil {
		return err
	}
	if catalog == nil {
		return fmt.Errorf("no catalog found in %s; run `dbt docs generate` first", cfg.TargetPath)
	}

	var written []string
	if opts.Resource == "" || opts.Resource == "models" {
		gen := generate.NewModelGenerator(
			generatorConfig(cfg, "models", opts), cfg.ProjectRoot, cmdCtx.Logger)
		paths, err := gen.Generate(manifest, catalog)
		if err != nil {
			return fmt.Errorf("generate model properties: %w", err)
		}
		written = append(written, paths...)
	}
	if opts.Resource == "" || opts.Resource == "sources" {
		gen := generate.NewSourceGenerator(
			generatorConfig(cfg, "sources", opts), cfg.ProjectRoot, cmdCtx.Logger)
		paths, err := gen.Generate(manifest, catalog)
		if err != nil {
			return fmt.Errorf("generate source properties: %w", err)
		}
		written = append(written, paths...)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"written": written})
	}
	if len(written) == 0 {
		r.Success("Properties files already up to date")
		return nil
	}
	for _, path := range written {
		r.Println(r.Styles().Path.Render(path))
	}
	r.Success(fmt.Sprintf("Updated %d properties files", len(written)))
	return nil
}

// generatorConfig merges the generators block for one resource kind
// with the command flags.
func generatorConfig(cfg *config.Config, kind string, opts *GenerateOptions) generate.Config {
	gcfg := generate.DefaultConfig()
	if block, ok := cfg.Generators[kind]; ok && block != nil {
		gcfg = generate.Config{
			Description: block.Description,
			Columns:     block.Columns,
			Overwrite:   block.Overwrite,
			Exclude:     block.Exclude,
		}
	}
	if opts.Overwrite {
		gcfg.Overwrite = true
	}
	return gcfg
}
