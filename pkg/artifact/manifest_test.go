package artifact_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

const manifestJSON = `{
  "metadata": {
    "project_name": "jaffle_shop",
    "dbt_version": "1.8.0",
    "adapter_type": "postgres"
  },
  "nodes": {
    "model.jaffle_shop.customers": {
      "unique_id": "model.jaffle_shop.customers",
      "name": "customers",
      "resource_type": "model",
      "package_name": "jaffle_shop",
      "path": "marts/customers.sql",
      "original_file_path": "models/marts/customers.sql",
      "patch_path": "jaffle_shop://models/marts/schema.yml",
      "description": "One row per customer.",
      "tags": ["marts"],
      "meta": {"owner": "analytics"},
      "raw_code": "select * from {{ ref('stg_customers') }}",
      "config": {"materialized": "table", "enabled": true},
      "contract": {"enforced": false},
      "columns": {
        "customer_id": {"name": "customer_id", "description": "PK", "data_type": "integer"},
        "first_name": {"name": "first_name", "data_type": "varchar"},
        "last_name": {"name": "last_name"}
      },
      "depends_on": {
        "nodes": ["model.jaffle_shop.stg_customers"],
        "macros": ["macro.jaffle_shop.cents_to_dollars"]
      }
    },
    "test.jaffle_shop.unique_customers_customer_id": {
      "unique_id": "test.jaffle_shop.unique_customers_customer_id",
      "name": "unique_customers_customer_id",
      "resource_type": "test",
      "attached_node": "model.jaffle_shop.customers",
      "column_name": "customer_id",
      "depends_on": {"nodes": ["model.jaffle_shop.customers"]}
    },
    "test.jaffle_shop.assert_positive_total": {
      "unique_id": "test.jaffle_shop.assert_positive_total",
      "name": "assert_positive_total",
      "resource_type": "test",
      "attached_node": "model.jaffle_shop.customers",
      "depends_on": {"nodes": ["model.jaffle_shop.customers"]}
    }
  },
  "sources": {
    "source.jaffle_shop.raw.orders": {
      "unique_id": "source.jaffle_shop.raw.orders",
      "name": "orders",
      "resource_type": "source",
      "source_name": "raw",
      "path": "models/staging/sources.yml",
      "original_file_path": "models/staging/sources.yml",
      "loader": "fivetran",
      "loaded_at_field": "_loaded_at",
      "freshness": {"warn_after": {"count": 12, "period": "hour"}, "error_after": {"count": null, "period": ""}},
      "columns": {}
    }
  },
  "macros": {
    "macro.jaffle_shop.cents_to_dollars": {
      "unique_id": "macro.jaffle_shop.cents_to_dollars",
      "name": "cents_to_dollars",
      "resource_type": "macro",
      "path": "macros/cents_to_dollars.sql",
      "original_file_path": "macros/cents_to_dollars.sql",
      "patch_path": "jaffle_shop://macros/macros.yml",
      "arguments": [
        {"name": "column_name", "type": "column", "description": "The column to convert."},
        {"name": "scale", "description": ""}
      ]
    }
  }
}`

func TestParseManifest(t *testing.T) {
	m, err := artifact.ParseManifest(strings.NewReader(manifestJSON))
	require.NoError(t, err)

	assert.Equal(t, "jaffle_shop", m.Metadata.ProjectName)
	require.Len(t, m.Models, 1)
	require.Len(t, m.Tests, 2)
	require.Len(t, m.Sources, 1)
	require.Len(t, m.Macros, 1)

	model := m.Models["model.jaffle_shop.customers"]
	require.NotNil(t, model)
	assert.Equal(t, artifact.TypeModel, model.GetType())
	assert.Equal(t, "customers", model.GetName())
	assert.Equal(t, "jaffle_shop://models/marts/schema.yml", model.GetPatchPath())
	assert.True(t, model.Config.IsEnabled())

	source := m.Sources["source.jaffle_shop.raw.orders"]
	require.NotNil(t, source)
	assert.Equal(t, "raw", source.SourceName)
	assert.True(t, source.HasFreshness())
	assert.True(t, source.Config.IsEnabled())

	macro := m.Macros["macro.jaffle_shop.cents_to_dollars"]
	require.NotNil(t, macro)
	require.Len(t, macro.Arguments, 2)
	assert.Equal(t, "column", macro.Arguments[0].Type)
}

func TestColumnsPreserveDeclarationOrder(t *testing.T) {
	m, err := artifact.ParseManifest(strings.NewReader(manifestJSON))
	require.NoError(t, err)

	cols := m.Models["model.jaffle_shop.customers"].Columns
	assert.Equal(t, []string{"customer_id", "first_name", "last_name"}, cols.Names())
	assert.Equal(t, 1, cols.Index("first_name"))
	assert.Equal(t, -1, cols.Index("missing"))

	col, ok := cols.Get("customer_id")
	require.True(t, ok)
	assert.Equal(t, "integer", col.DataType)
}

func TestTestsForNodeAndColumn(t *testing.T) {
	m, err := artifact.ParseManifest(strings.NewReader(manifestJSON))
	require.NoError(t, err)

	nodeTests := m.TestsFor("model.jaffle_shop.customers")
	require.Len(t, nodeTests, 1)
	assert.Equal(t, "assert_positive_total", nodeTests[0].Name)

	colTests := m.TestsForColumn("model.jaffle_shop.customers", "customer_id")
	require.Len(t, colTests, 1)
	assert.Equal(t, "unique_customers_customer_id", colTests[0].Name)

	assert.Empty(t, m.TestsForColumn("model.jaffle_shop.customers", "first_name"))
}

func TestLoadManifestFromTarget(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, artifact.ManifestFileName), []byte(manifestJSON), 0o644))

	m, err := artifact.LoadManifestFromTarget(dir)
	require.NoError(t, err)
	assert.Len(t, m.Models, 1)

	_, err = artifact.LoadManifestFromTarget(filepath.Join(dir, "missing"))
	require.Error(t, err)
}
