package artifact_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

const catalogJSON = `{
  "nodes": {
    "model.jaffle_shop.customers": {
      "unique_id": "model.jaffle_shop.customers",
      "metadata": {"type": "BASE TABLE", "schema": "analytics", "name": "customers", "comment": "One row per customer."},
      "columns": {
        "customer_id": {"type": "integer", "index": 1, "name": "customer_id", "comment": "PK"},
        "first_name": {"type": "character varying", "index": 2, "name": "first_name", "comment": ""}
      }
    }
  },
  "sources": {
    "source.jaffle_shop.raw.orders": {
      "unique_id": "source.jaffle_shop.raw.orders",
      "metadata": {"type": "VIEW", "schema": "raw", "name": "orders", "comment": ""},
      "columns": {
        "order_id": {"type": "integer", "index": 1, "name": "order_id", "comment": ""}
      }
    }
  }
}`

func TestParseCatalog(t *testing.T) {
	c, err := artifact.ParseCatalog(strings.NewReader(catalogJSON))
	require.NoError(t, err)

	table := c.Nodes["model.jaffle_shop.customers"]
	require.NotNil(t, table)
	assert.Equal(t, "BASE TABLE", table.Metadata.Type)
	assert.Equal(t, []string{"customer_id", "first_name"}, table.ColumnNames())

	col, ok := table.Column("customer_id")
	require.True(t, ok)
	assert.Equal(t, 1, col.Index)

	_, ok = table.Column("missing")
	assert.False(t, ok)
}

func TestCatalogTableLookup(t *testing.T) {
	c, err := artifact.ParseCatalog(strings.NewReader(catalogJSON))
	require.NoError(t, err)

	model := &artifact.Model{UniqueID: "model.jaffle_shop.customers"}
	table, ok := c.Table(model)
	require.True(t, ok)
	assert.Equal(t, "customers", table.Metadata.Name)

	source := &artifact.Source{UniqueID: "source.jaffle_shop.raw.orders"}
	table, ok = c.Table(source)
	require.True(t, ok)
	assert.Equal(t, "VIEW", table.Metadata.Type)

	_, ok = c.Table(&artifact.Model{UniqueID: "model.other"})
	assert.False(t, ok)
}
