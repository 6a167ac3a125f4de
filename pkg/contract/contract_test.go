package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
	"github.com/leapstack-labs/dbtcontracts/pkg/contract"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"models", "models"},
		{"model", "models"},
		{"Model", "models"},
		{"MACRO S", "macro_s"},
		{"sources", "sources"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, contract.NormalizeKey(tt.key), tt.key)
	}
}

func TestParseRuleList(t *testing.T) {
	rules, err := contract.ParseRuleList([]any{
		"has_description",
		map[string]any{"has_tests": map[string]any{"min_count": 2}},
	})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "has_description", rules[0].Name)
	assert.Nil(t, rules[0].Options)
	assert.Equal(t, "has_tests", rules[1].Name)
	assert.Equal(t, map[string]any{"min_count": 2}, rules[1].Options)
}

func TestParseRuleListRejectsMultiKeyMaps(t *testing.T) {
	_, err := contract.ParseRuleList([]any{
		map[string]any{"a": nil, "b": nil},
	})
	require.Error(t, err)
}

func TestNewContractNormalizesKey(t *testing.T) {
	c, err := contract.NewContract("Model", map[string]any{
		"terms": []any{"has_description"},
	})
	require.NoError(t, err)
	assert.Equal(t, contract.KeyModels, c.Key())
	assert.Equal(t, artifact.TypeModel, c.Resource())
	require.Len(t, c.Terms(), 1)
}

func TestNewContractUnknownKey(t *testing.T) {
	_, err := contract.NewContract("exposures", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exposures")
}

func TestNewContractUnsupportedTerm(t *testing.T) {
	// has_loader is a source term; models must reject it
	_, err := contract.NewContract("models", map[string]any{
		"terms": []any{"has_loader"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has_loader")
	assert.Contains(t, err.Error(), "Choose from")
}

func TestNewContractUnsupportedCondition(t *testing.T) {
	_, err := contract.NewContract("macros", map[string]any{
		"filter": []any{"tag"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported condition "tag"`)
}

func TestNewContractChild(t *testing.T) {
	c, err := contract.NewContract("models", map[string]any{
		"filter": []any{map[string]any{"path": map[string]any{"include": []any{"models/marts/.*"}}}},
		"terms":  []any{"has_description"},
		"columns": map[string]any{
			"terms": []any{"has_data_type"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, c.Child())
	assert.Equal(t, contract.KeyColumns, c.Child().Key())
	require.Len(t, c.Child().Terms(), 1)
}

func TestNewContractChildUnsupportedTerm(t *testing.T) {
	_, err := contract.NewContract("macros", map[string]any{
		"arguments": map[string]any{
			"terms": []any{"has_tests"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "macros.arguments")
}

func TestNewContractEnforceAlias(t *testing.T) {
	c, err := contract.NewContract("sources", map[string]any{
		"enforce": []any{"has_loader"},
	})
	require.NoError(t, err)
	require.Len(t, c.Terms(), 1)
	assert.Equal(t, contract.TermHasLoader, c.Terms()[0].Name())
}

func TestContractItemsFiltersMacrosByPackage(t *testing.T) {
	manifest := ordersManifest()
	manifest.Macros["macro.dbt_utils.surrogate_key"] = &artifact.Macro{
		UniqueID:    "macro.dbt_utils.surrogate_key",
		Name:        "surrogate_key",
		PackageName: "dbt_utils",
	}

	c, err := contract.NewContract("macros", nil)
	require.NoError(t, err)

	items := c.Items(manifest)
	require.Len(t, items, 1)
	assert.Equal(t, "cents_to_dollars", items[0].GetName())
}

func TestContractFilteredItems(t *testing.T) {
	c, err := contract.NewContract("models", map[string]any{
		"filter": []any{map[string]any{"name": map[string]any{"include": []any{"stg_.*"}}}},
	})
	require.NoError(t, err)

	filtered := c.FilteredItems(ordersManifest())
	require.Len(t, filtered, 1)
	assert.Equal(t, "stg_orders", filtered[0].GetName())
}

func TestContractValidatePassThroughWithoutTerms(t *testing.T) {
	c, err := contract.NewContract("models", nil)
	require.NoError(t, err)

	ctx := testContext(t, ordersManifest(), nil)
	valid, err := c.Validate(ctx)
	require.NoError(t, err)
	assert.Len(t, valid, 2)
	assert.Empty(t, ctx.Results())
}

func TestContractValidateCollectsFailures(t *testing.T) {
	c, err := contract.NewContract("models", map[string]any{
		"terms": []any{"has_description"},
	})
	require.NoError(t, err)

	ctx := testContext(t, ordersManifest(), nil)
	valid, err := c.Validate(ctx)
	require.NoError(t, err)

	// only orders carries a description
	require.Len(t, valid, 1)
	assert.Equal(t, "orders", valid[0].GetName())
	require.Len(t, ctx.Results(), 1)
	assert.Equal(t, "stg_orders", ctx.Results()[0].Name)
}

func TestContractValidateFailsFastWithoutCatalog(t *testing.T) {
	c, err := contract.NewContract("models", map[string]any{
		"terms": []any{"exists"},
	})
	require.NoError(t, err)

	ctx := testContext(t, ordersManifest(), nil)
	_, err = c.Validate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a catalog")
	assert.Empty(t, ctx.Results())
}

func TestContractValidateFailsFastWithoutManifest(t *testing.T) {
	c, err := contract.NewContract("sources", map[string]any{
		"terms": []any{"has_downstream_dependencies"},
	})
	require.NoError(t, err)

	ctx := testContext(t, nil, nil)
	_, err = c.Validate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a manifest")
}

func TestContractValidateRunsChildOverFilteredParents(t *testing.T) {
	c, err := contract.NewContract("models", map[string]any{
		"filter": []any{map[string]any{"name": map[string]any{"include": []any{"orders"}}}},
		"columns": map[string]any{
			"terms": []any{"has_description"},
		},
	})
	require.NoError(t, err)

	ctx := testContext(t, ordersManifest(), nil)
	_, err = c.Validate(ctx)
	require.NoError(t, err)

	// orders has two columns, only order_id is described; stg_orders is
	// filtered out so its columns never run
	results := ctx.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "status", results[0].Name)
	assert.Equal(t, "orders", results[0].ParentName)
}

func TestChildContractConditionsFilterChildren(t *testing.T) {
	c, err := contract.NewContract("models", map[string]any{
		"columns": map[string]any{
			"filter": []any{map[string]any{"name": map[string]any{"exclude": []any{"status"}}}},
			"terms":  []any{"has_description"},
		},
	})
	require.NoError(t, err)

	manifest := ordersManifest()
	ctx := testContext(t, manifest, nil)

	parents := c.FilteredItems(manifest)
	valid, err := c.Child().Validate(parents, ctx)
	require.NoError(t, err)

	for _, pair := range valid {
		assert.NotEqual(t, "status", pair.Item.GetName())
	}
	for _, result := range ctx.Results() {
		assert.NotEqual(t, "status", result.Name)
	}
}

func TestSupportedRules(t *testing.T) {
	conditions, terms, err := contract.SupportedRules("models")
	require.NoError(t, err)
	assert.Contains(t, conditions, contract.ConditionTag)
	assert.Contains(t, terms, contract.TermHasDescription)

	conditions, terms, err = contract.SupportedRules("sources.columns")
	require.NoError(t, err)
	assert.Contains(t, conditions, contract.ConditionName)
	assert.Contains(t, terms, contract.TermHasDataType)

	_, terms, err = contract.SupportedRules("macros.arguments")
	require.NoError(t, err)
	assert.Contains(t, terms, contract.TermHasType)

	_, _, err = contract.SupportedRules("seeds")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown contract key")

	_, _, err = contract.SupportedRules("macros.columns")
	require.Error(t, err)
}
