package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbtcontracts/internal/cli/output"
	"github.com/leapstack-labs/dbtcontracts/internal/runner"
	"github.com/leapstack-labs/dbtcontracts/pkg/contract"
)

// contractKeys are the keys a contract block can use, including the
// nested child forms.
var contractKeys = []string{
	contract.KeyModels,
	contract.KeyModels + "." + contract.KeyColumns,
	contract.KeySources,
	contract.KeySources + "." + contract.KeyColumns,
	contract.KeyMacros,
	contract.KeyMacros + "." + contract.KeyArguments,
}

// ruleListing is the JSON shape of one contract key's supported rules.
type ruleListing struct {
	Key        string   `json:"key"`
	Conditions []string `json:"conditions,omitempty"`
	Terms      []string `json:"terms"`
	Configured []string `json:"configured,omitempty"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules [contract-key]",
		Short: "List the terms and conditions contracts can use",
		Long: `List every term and condition available per contract key, marking the
ones the current project configures.

Terms are the checks a contract runs; conditions filter which resources
a contract applies to.`,
		Example: `  # List rules for every contract key
  dbt-contracts rules

  # List rules for source columns
  dbt-contracts rules sources.columns

  # Output as JSON
  dbt-contracts rules --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) > 0 {
				key = args[0]
			}
			return runRules(cmd, key)
		},
	}
	cmd.Flags().StringP("format", "f", "", "Output format: text, json")
	return cmd
}

func runRules(cmd *cobra.Command, key string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	if format, _ := cmd.Flags().GetString("format"); format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(format))
	}

	keys := contractKeys
	if key != "" {
		keys = []string{key}
	}

	configured := configuredRules(cmdCtx)

	listings := make([]ruleListing, 0, len(keys))
	for _, k := range keys {
		conditions, terms, err := contract.SupportedRules(k)
		if err != nil {
			return err
		}
		listings = append(listings, ruleListing{
			Key:        k,
			Conditions: conditions,
			Terms:      terms,
			Configured: configured[normalizedKey(k)],
		})
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(listings)
	}

	for i, listing := range listings {
		if i > 0 {
			r.Println("")
		}
		renderListing(r, listing)
	}
	return nil
}

// configuredRules maps normalized contract keys to the rule names the
// project's contracts block configures.
func configuredRules(cmdCtx *CommandContext) map[string][]string {
	configured := map[string][]string{}
	if len(cmdCtx.Cfg.Contracts) == 0 {
		return configured
	}
	eng, err := runner.New(cmdCtx.Cfg.Contracts, cmdCtx.Logger)
	if err != nil {
		cmdCtx.Logger.Warn("skipping configured contracts", "error", err)
		return configured
	}

	for _, parent := range eng.Contracts() {
		var names []string
		for _, cond := range parent.Conditions() {
			names = append(names, cond.Name())
		}
		for _, term := range parent.Terms() {
			names = append(names, term.Name())
		}
		configured[parent.Key()] = names

		if child := parent.Child(); child != nil {
			var childNames []string
			for _, term := range child.Terms() {
				childNames = append(childNames, term.Name())
			}
			configured[parent.Key()+"."+child.Key()] = childNames
		}
	}
	return configured
}

func normalizedKey(key string) string {
	parent, child, found := strings.Cut(key, ".")
	if !found {
		return contract.NormalizeKey(parent)
	}
	return contract.NormalizeKey(parent) + "." + contract.NormalizeKey(child)
}

func renderListing(r *output.Renderer, listing ruleListing) {
	styles := r.Styles()
	r.Println(styles.Bold.Render(listing.Key))

	active := map[string]bool{}
	for _, name := range listing.Configured {
		active[name] = true
	}
	mark := func(name string) string {
		if active[name] {
			return styles.Success.Render("*") + " " + name
		}
		return "  " + name
	}

	if len(listing.Conditions) > 0 {
		r.Println(styles.Muted.Render("  conditions:"))
		for _, name := range listing.Conditions {
			r.Printf("  %s\n", mark(name))
		}
	}
	r.Println(styles.Muted.Render("  terms:"))
	for _, name := range listing.Terms {
		r.Printf("  %s\n", mark(name))
	}
	if len(listing.Configured) > 0 {
		r.Println(styles.Muted.Render(fmt.Sprintf("  %d configured (*)", len(listing.Configured))))
	}
}
