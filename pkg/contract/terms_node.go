package contract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

func init() {
	RegisterTerm(TermDef{
		Name:        TermExists,
		Description: "Resource must exist in the warehouse catalog.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return exists{}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasTests,
		Description: "Number of attached tests must fall within the configured range.",
		Build: func(options map[string]any) (Term, error) {
			term := &hasTests{}
			if err := decodeOptions(options, &term.RangeMatcher); err != nil {
				return nil, err
			}
			if err := term.RangeMatcher.Validate(); err != nil {
				return nil, err
			}
			return term, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasAllColumns,
		Description: "Every column of the warehouse relation must be declared.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasAllColumns{}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasExpectedColumns,
		Description: "Configured columns (and optionally their types) must be declared.",
		Build:       buildHasExpectedColumns,
	})
	RegisterTerm(TermDef{
		Name:        TermHasMatchingDescription,
		Description: "Declared description must match the warehouse comment.",
		Build: func(options map[string]any) (Term, error) {
			term := &hasMatchingDescription{}
			if err := decodeOptions(options, &term.matcher); err != nil {
				return nil, err
			}
			return term, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasContract,
		Description: "Model must enforce a contract with all columns and data types declared.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasContract{}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasConstraints,
		Description: "Number of declared constraints must fall within the configured range.",
		Build: func(options map[string]any) (Term, error) {
			term := &hasConstraints{}
			if err := decodeOptions(options, &term.RangeMatcher); err != nil {
				return nil, err
			}
			if err := term.RangeMatcher.Validate(); err != nil {
				return nil, err
			}
			return term, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasValidRefDependencies,
		Description: "Every model dependency must resolve in the manifest.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasValidDependencies{kind: "ref"}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasValidSourceDependencies,
		Description: "Every source dependency must resolve in the manifest.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasValidDependencies{kind: "source"}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasValidMacroDependencies,
		Description: "Every macro dependency must resolve in the manifest.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasValidDependencies{kind: "macro"}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasNoFinalSemiColon,
		Description: "Model SQL must not end with a semicolon.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasNoFinalSemiColon{}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasNoHardcodedRefs,
		Description: "Model SQL must reference relations via ref/source, not directly.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasNoHardcodedRefs{}, nil
		},
	})
}

// exists checks a resource against the catalog. For columns it runs the
// staged protocol: column declared on the parent, parent present in the
// catalog, column present in the relation.
type exists struct{ catalogTerm }

func (exists) Name() string { return TermExists }

func (exists) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	switch v := item.(type) {
	case *artifact.Column:
		if !columnInNode(v, parent, TermExists, ctx) {
			return false
		}
		table, ok := parentTable(v, parent, TermExists, ctx)
		if !ok {
			return false
		}
		return columnInTable(v, parent, table, TermExists, ctx)
	case artifact.Node:
		if _, ok := ctx.Catalog.Table(v); !ok {
			message := fmt.Sprintf("The %s cannot be found in the database", v.GetType())
			ctx.AddResult(TermExists, message, item, parent)
			return false
		}
		return true
	}
	return true
}

// hasTests counts the tests attached to a node, or to one column when
// run against a column.
type hasTests struct {
	manifestTerm
	RangeMatcher
}

func (hasTests) Name() string { return TermHasTests }

func (t *hasTests) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	var count int
	switch v := item.(type) {
	case *artifact.Column:
		if parent == nil {
			return true
		}
		count = len(ctx.Manifest.TestsForColumn(parent.GetUniqueID(), v.Name))
	case artifact.Node:
		count = len(ctx.Manifest.TestsFor(v.GetUniqueID()))
	default:
		return true
	}

	if message := t.Match(count, "tests"); message != "" {
		ctx.AddResult(TermHasTests, message, item, parent)
		return false
	}
	return true
}

type hasAllColumns struct{ catalogTerm }

func (hasAllColumns) Name() string { return TermHasAllColumns }

// Run fails only on columns the relation has but the node does not
// declare. Extra declared columns are reported without failing the term;
// catalog drift tooling handles those separately.
func (hasAllColumns) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	node, ok := item.(artifact.TableNode)
	if !ok {
		return true
	}
	table, ok := ctx.Catalog.Table(node)
	if !ok {
		return false
	}

	declared := make(map[string]bool, len(node.GetColumns()))
	for _, col := range node.GetColumns() {
		declared[col.Name] = true
	}

	var missing, extra []string
	for name := range table.Columns {
		if !declared[name] {
			missing = append(missing, name)
		}
	}
	for name := range declared {
		if _, ok := table.Columns[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	if len(missing) > 0 {
		message := fmt.Sprintf(
			"%s config does not contain all columns. Missing %s",
			node.GetType().Title(), strings.Join(missing, ", "),
		)
		ctx.AddResult(TermHasAllColumns, message, item, parent)
	}
	if len(extra) > 0 {
		message := fmt.Sprintf(
			"%s config contains too many columns. Extra %s",
			node.GetType().Title(), strings.Join(extra, ", "),
		)
		ctx.AddResult(TermHasAllColumns, message, item, parent)
	}

	return len(missing) == 0
}

type hasExpectedColumns struct {
	metadataTerm
	names []string
	types map[string]string
}

func buildHasExpectedColumns(options map[string]any) (Term, error) {
	var opts struct {
		Columns any `mapstructure:"columns"`
	}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}

	term := &hasExpectedColumns{types: map[string]string{}}
	switch v := opts.Columns.(type) {
	case nil:
	case string:
		term.names = []string{v}
	case []any:
		for _, name := range v {
			term.names = append(term.names, fmt.Sprint(name))
		}
	case map[string]any:
		for name, dataType := range v {
			term.names = append(term.names, name)
			term.types[name] = fmt.Sprint(dataType)
		}
		sort.Strings(term.names)
	default:
		return nil, fmt.Errorf("columns must be a list of names or a name to type mapping, got %T", v)
	}
	return term, nil
}

func (hasExpectedColumns) Name() string { return TermHasExpectedColumns }

func (t *hasExpectedColumns) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	node, ok := item.(artifact.TableNode)
	if !ok {
		return true
	}
	declared := node.GetColumns()

	var missing []string
	for _, name := range t.names {
		if _, ok := declared.Get(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		message := fmt.Sprintf(
			"%s does not have all expected columns. Missing: %s",
			node.GetType().Title(), strings.Join(missing, ", "),
		)
		ctx.AddResult(TermHasExpectedColumns, message, item, parent)
	}

	var mismatched []string
	for _, name := range t.names {
		expected, ok := t.types[name]
		if !ok {
			continue
		}
		if col, ok := declared.Get(name); ok && col.DataType != expected {
			mismatched = append(mismatched, fmt.Sprintf("\n- %q should be %q", col.DataType, expected))
		}
	}
	if len(mismatched) > 0 {
		message := fmt.Sprintf("%s has unexpected column types.%s",
			node.GetType().Title(), strings.Join(mismatched, ""))
		ctx.AddResult(TermHasExpectedColumns, message, item, parent)
	}

	return len(missing) == 0 && len(mismatched) == 0
}

// hasMatchingDescription compares a node's description against the
// catalogued comment, or a column's description against its column
// comment when run against a column.
type hasMatchingDescription struct {
	catalogTerm
	matcher StringMatcher
}

func (hasMatchingDescription) Name() string { return TermHasMatchingDescription }

func (t *hasMatchingDescription) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	switch v := item.(type) {
	case *artifact.Column:
		if !columnInNode(v, parent, TermHasMatchingDescription, ctx) {
			return false
		}
		table, ok := parentTable(v, parent, TermHasMatchingDescription, ctx)
		if !ok {
			return false
		}
		if !columnInTable(v, parent, table, TermHasMatchingDescription, ctx) {
			return false
		}

		comment := table.Columns[v.Name].Comment
		if !t.matcher.Match(v.Description, comment) {
			message := fmt.Sprintf("Description does not match remote entity: %q != %q", v.Description, comment)
			ctx.AddResult(TermHasMatchingDescription, message, item, parent)
			return false
		}
		return true
	case artifact.Node:
		table, ok := ctx.Catalog.Table(v)
		if !ok {
			return false
		}
		if !t.matcher.Match(v.GetDescription(), table.Metadata.Comment) {
			message := fmt.Sprintf(
				"Description does not match remote entity: %q != %q",
				v.GetDescription(), table.Metadata.Comment,
			)
			ctx.AddResult(TermHasMatchingDescription, message, item, parent)
			return false
		}
		return true
	}
	return true
}

type hasContract struct{ catalogTerm }

func (hasContract) Name() string { return TermHasContract }

func (hasContract) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	model, ok := item.(*artifact.Model)
	if !ok {
		return true
	}

	missingContract := !model.Contract.Enforced
	if missingContract {
		ctx.AddResult(TermHasContract, "Contract not enforced", item, parent)
	}

	// the contract is only valid with all columns declared
	missingColumns := !(hasAllColumns{}).Run(item, parent, ctx)

	missingDataTypes := false
	for _, col := range model.Columns {
		if col.DataType == "" {
			missingDataTypes = true
			break
		}
	}
	if missingDataTypes {
		ctx.AddResult(TermHasContract, "To enforce a contract, all data types must be declared", item, parent)
	}

	return !missingContract && !missingColumns && !missingDataTypes
}

type hasConstraints struct {
	metadataTerm
	RangeMatcher
}

func (hasConstraints) Name() string { return TermHasConstraints }

func (t *hasConstraints) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	model, ok := item.(*artifact.Model)
	if !ok {
		return true
	}

	if message := t.Match(len(model.Constraints), "constraints"); message != "" {
		ctx.AddResult(TermHasConstraints, message, item, parent)
		return false
	}
	return true
}

// hasValidDependencies verifies that a model's upstream dependencies of
// one kind all resolve in the manifest.
type hasValidDependencies struct {
	manifestTerm
	kind string // "ref", "source" or "macro"
}

func (t hasValidDependencies) Name() string {
	return "has_valid_" + t.kind + "_dependencies"
}

func (t hasValidDependencies) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	model, ok := item.(*artifact.Model)
	if !ok {
		return true
	}

	var missing []string
	switch t.kind {
	case "ref":
		for _, dep := range model.DependsOn.Nodes {
			if strings.HasPrefix(dep, "model") {
				if _, ok := ctx.Manifest.Models[dep]; !ok {
					missing = append(missing, dep)
				}
			}
		}
	case "source":
		for _, dep := range model.DependsOn.Nodes {
			if strings.HasPrefix(dep, "source") {
				if _, ok := ctx.Manifest.Sources[dep]; !ok {
					missing = append(missing, dep)
				}
			}
		}
	case "macro":
		for _, dep := range model.DependsOn.Macros {
			if _, ok := ctx.Manifest.Macros[dep]; !ok {
				missing = append(missing, dep)
			}
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		message := fmt.Sprintf(
			"%s has missing upstream %s dependencies declared: %s",
			model.GetType().Title(), t.kind, strings.Join(missing, ", "),
		)
		ctx.AddResult(t.Name(), message, item, nil)
		return false
	}
	return true
}

type hasNoFinalSemiColon struct{ metadataTerm }

func (hasNoFinalSemiColon) Name() string { return TermHasNoFinalSemiColon }

func (hasNoFinalSemiColon) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	model, ok := item.(*artifact.Model)
	if !ok || !isSQLFile(model.Path) {
		return true
	}

	if strings.HasSuffix(strings.TrimSpace(model.RawCode), ";") {
		ctx.AddResult(TermHasNoFinalSemiColon, "Script has a final semicolon", item, parent)
		return false
	}
	return true
}

type hasNoHardcodedRefs struct{ metadataTerm }

func (hasNoHardcodedRefs) Name() string { return TermHasNoHardcodedRefs }

func (hasNoHardcodedRefs) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	model, ok := item.(*artifact.Model)
	if !ok || !isSQLFile(model.Path) {
		return true
	}

	hardcoded := findHardcodedRefs(model.RawCode)
	if len(hardcoded) > 0 {
		message := fmt.Sprintf("Script has hardcoded refs: %s", strings.Join(hardcoded, ", "))
		ctx.AddResult(TermHasNoHardcodedRefs, message, item, parent)
		return false
	}
	return true
}

func isSQLFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".sql")
}
