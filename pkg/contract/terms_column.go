package contract

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

func init() {
	RegisterTerm(TermDef{
		Name:        TermHasExpectedName,
		Description: "Column name must match the pattern configured for its data type.",
		Build:       buildHasExpectedName,
	})
	RegisterTerm(TermDef{
		Name:        TermHasDataType,
		Description: "Column must declare a data type.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasDataType{}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasMatchingDataType,
		Description: "Declared data type must match the warehouse column type.",
		Build: func(options map[string]any) (Term, error) {
			term := &hasMatchingDataType{}
			var opts struct {
				Exact bool `mapstructure:"exact"`
			}
			if err := decodeOptions(options, &opts); err != nil {
				return nil, err
			}
			term.exact = opts.Exact
			return term, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasMatchingIndex,
		Description: "Declared column order must match the warehouse column order.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasMatchingIndex{}, nil
		},
	})
}

// columnInNode checks that the column is one the parent declares. A miss
// is recorded as a violation so later stages can assume the column is
// real.
func columnInNode(col *artifact.Column, parent artifact.Node, rule string, ctx *Context) bool {
	table, ok := parent.(artifact.TableNode)
	if !ok {
		return false
	}
	if _, ok := table.GetColumns().Get(col.Name); !ok {
		message := fmt.Sprintf("The column cannot be found in the %s", parent.GetType())
		ctx.AddResult(rule, message, col, parent)
		return false
	}
	return true
}

// parentTable resolves the parent node in the catalog, recording a
// violation against the column when the relation is missing.
func parentTable(col *artifact.Column, parent artifact.Node, rule string, ctx *Context) (*artifact.CatalogTable, bool) {
	table, ok := ctx.Catalog.Table(parent)
	if !ok {
		message := fmt.Sprintf("The %s cannot be found in the database", parent.GetType())
		ctx.AddResult(rule, message, col, parent)
		return nil, false
	}
	return table, true
}

// columnInTable checks that the catalogued relation carries the column.
func columnInTable(col *artifact.Column, parent artifact.Node, table *artifact.CatalogTable, rule string, ctx *Context) bool {
	if _, ok := table.Column(col.Name); !ok {
		message := fmt.Sprintf(
			"The column cannot be found in the %s '%s'",
			table.Metadata.Type, table.UniqueID,
		)
		ctx.AddResult(rule, message, col, parent)
		return false
	}
	return true
}

// hasExpectedName matches column names against per-data-type pattern
// sets. The empty key holds the fallback patterns for types without a
// dedicated entry. The data type comes from the declaration, or from
// the catalog when the declaration omits it and a catalog is loaded.
type hasExpectedName struct {
	metadataTerm
	patterns map[string]*PatternMatcher
}

func buildHasExpectedName(options map[string]any) (Term, error) {
	var opts struct {
		Patterns map[string]any `mapstructure:"patterns"`
	}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}

	term := &hasExpectedName{patterns: map[string]*PatternMatcher{}}
	for dataType, raw := range stringValues(opts.Patterns) {
		matcher := &PatternMatcher{Include: raw, MatchAll: true}
		if err := matcher.Compile(); err != nil {
			return nil, fmt.Errorf("patterns for %q: %w", dataType, err)
		}
		term.patterns[strings.ToLower(dataType)] = matcher
	}
	return term, nil
}

func (hasExpectedName) Name() string { return TermHasExpectedName }

func (t *hasExpectedName) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	col, ok := item.(*artifact.Column)
	if !ok {
		return true
	}
	if !columnInNode(col, parent, TermHasExpectedName, ctx) {
		return false
	}

	dataType := col.DataType
	if dataType == "" && ctx.Catalog != nil {
		table, ok := parentTable(col, parent, TermHasExpectedName, ctx)
		if !ok {
			return false
		}
		if !columnInTable(col, parent, table, TermHasExpectedName, ctx) {
			return false
		}
		catalogCol, _ := table.Column(col.Name)
		dataType = catalogCol.Type
	}

	matcher, ok := t.patterns[strings.ToLower(dataType)]
	if !ok {
		matcher, ok = t.patterns[""]
		if !ok {
			return true
		}
		if !matcher.Match(col.Name) {
			message := fmt.Sprintf(
				"Column name does not match expected patterns: %s",
				strings.Join(matcher.Include, ", "),
			)
			ctx.AddResult(TermHasExpectedName, message, item, parent)
			return false
		}
		return true
	}

	if !matcher.Match(col.Name) {
		message := fmt.Sprintf(
			"Column name does not match expected pattern for type %s: %s",
			dataType, strings.Join(matcher.Include, ", "),
		)
		ctx.AddResult(TermHasExpectedName, message, item, parent)
		return false
	}
	return true
}

type hasDataType struct{ metadataTerm }

func (hasDataType) Name() string { return TermHasDataType }

func (hasDataType) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	col, ok := item.(*artifact.Column)
	if !ok {
		return true
	}
	if col.DataType == "" {
		ctx.AddResult(TermHasDataType, "Data type not configured for this column", item, parent)
		return false
	}
	return true
}

// hasMatchingDataType compares the declared type against the catalogued
// one. The default comparison ignores case and internal spaces so
// "timestamp with time zone" passes against "TIMESTAMP WITH TIME ZONE";
// exact turns that normalisation off.
type hasMatchingDataType struct {
	catalogTerm
	exact bool
}

func (hasMatchingDataType) Name() string { return TermHasMatchingDataType }

func (t *hasMatchingDataType) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	col, ok := item.(*artifact.Column)
	if !ok {
		return true
	}
	if !columnInNode(col, parent, TermHasMatchingDataType, ctx) {
		return false
	}
	table, ok := parentTable(col, parent, TermHasMatchingDataType, ctx)
	if !ok {
		return false
	}
	if !columnInTable(col, parent, table, TermHasMatchingDataType, ctx) {
		return false
	}

	catalogCol, _ := table.Column(col.Name)
	matcher := StringMatcher{IgnoreWhitespace: !t.exact, CaseInsensitive: !t.exact}
	if !matcher.Match(col.DataType, catalogCol.Type) {
		message := fmt.Sprintf(
			"Data type does not match remote entity: %s != %s",
			col.DataType, catalogCol.Type,
		)
		ctx.AddResult(TermHasMatchingDataType, message, item, parent)
		return false
	}
	return true
}

type hasMatchingIndex struct{ catalogTerm }

func (hasMatchingIndex) Name() string { return TermHasMatchingIndex }

func (hasMatchingIndex) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	col, ok := item.(*artifact.Column)
	if !ok {
		return true
	}
	if !columnInNode(col, parent, TermHasMatchingIndex, ctx) {
		return false
	}
	table, ok := parentTable(col, parent, TermHasMatchingIndex, ctx)
	if !ok {
		return false
	}
	if !columnInTable(col, parent, table, TermHasMatchingIndex, ctx) {
		return false
	}

	node, ok := parent.(artifact.TableNode)
	if !ok {
		return false
	}
	declaredIndex := node.GetColumns().Index(col.Name)
	catalogCol, _ := table.Column(col.Name)
	if declaredIndex != catalogCol.Index {
		message := fmt.Sprintf(
			"Column index does not match remote entity: %d != %d",
			declaredIndex, catalogCol.Index,
		)
		ctx.AddResult(TermHasMatchingIndex, message, item, parent)
		return false
	}
	return true
}
