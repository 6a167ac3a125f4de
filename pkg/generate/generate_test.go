package generate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/dbtcontracts/internal/testutil"
	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
	"github.com/leapstack-labs/dbtcontracts/pkg/generate"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readYAML(t *testing.T, dir, rel string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, rel))
	require.NoError(t, err)
	props := map[string]any{}
	require.NoError(t, yaml.Unmarshal(data, &props))
	return props
}

func modelEntry(t *testing.T, props map[string]any, name string) map[string]any {
	t.Helper()
	return namedEntry(t, props["models"], name)
}

func namedEntry(t *testing.T, list any, name string) map[string]any {
	t.Helper()
	items, ok := list.([]any)
	require.True(t, ok, "expected a list, got %T", list)
	for _, item := range items {
		entry, ok := item.(map[string]any)
		require.True(t, ok)
		if entry["name"] == name {
			return entry
		}
	}
	t.Fatalf("no entry named %q", name)
	return nil
}

func ordersModel() *artifact.Model {
	return &artifact.Model{
		UniqueID:         "model.jaffle_shop.orders",
		Name:             "orders",
		PackageName:      "jaffle_shop",
		Path:             "marts/orders.sql",
		OriginalFilePath: "models/marts/orders.sql",
		PatchPath:        "jaffle_shop://models/marts/orders.yml",
		Columns: artifact.Columns{
			{Name: "order_id", Description: "Primary key"},
		},
	}
}

func ordersCatalog() *artifact.Catalog {
	return &artifact.Catalog{
		Nodes: map[string]*artifact.CatalogTable{
			"model.jaffle_shop.orders": {
				UniqueID: "model.jaffle_shop.orders",
				Metadata: artifact.TableMetadata{
					Type: "BASE TABLE", Schema: "analytics", Name: "orders",
					Comment: "One row per order.",
				},
				Columns: map[string]*artifact.CatalogColumn{
					"order_id": {Name: "order_id", Type: "integer", Index: 1},
					"status":   {Name: "status", Type: "varchar", Index: 2, Comment: "Order status."},
				},
			},
		},
	}
}

func TestModelGeneratorFillsProperties(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "models/marts/orders.yml", `version: 2
models:
  - name: orders
    columns:
      - name: order_id
        description: Primary key
`)

	manifest := &artifact.Manifest{
		Models: map[string]*artifact.Model{"model.jaffle_shop.orders": ordersModel()},
	}
	g := generate.NewModelGenerator(generate.DefaultConfig(), dir, testutil.NewTestLogger(t))
	written, err := g.Generate(manifest, ordersCatalog())
	require.NoError(t, err)
	assert.Equal(t, []string{"models/marts/orders.yml"}, written)

	props := readYAML(t, dir, "models/marts/orders.yml")
	entry := modelEntry(t, props, "orders")
	assert.Equal(t, "One row per order.", entry["description"])

	orderID := namedEntry(t, entry["columns"], "order_id")
	assert.Equal(t, "Primary key", orderID["description"], "existing description kept")
	assert.Equal(t, "integer", orderID["data_type"])

	status := namedEntry(t, entry["columns"], "status")
	assert.Equal(t, "Order status.", status["description"])
	assert.Equal(t, "varchar", status["data_type"])
}

func TestModelGeneratorCreatesMissingPropertiesFile(t *testing.T) {
	dir := t.TempDir()

	model := ordersModel()
	model.PatchPath = ""
	manifest := &artifact.Manifest{
		Models: map[string]*artifact.Model{model.UniqueID: model},
	}
	g := generate.NewModelGenerator(generate.DefaultConfig(), dir, testutil.NewTestLogger(t))
	written, err := g.Generate(manifest, ordersCatalog())
	require.NoError(t, err)
	require.Equal(t, []string{"models/marts/orders.yml"}, written)

	props := readYAML(t, dir, "models/marts/orders.yml")
	assert.Equal(t, 2, props["version"])
	entry := modelEntry(t, props, "orders")
	assert.Equal(t, "One row per order.", entry["description"])
}

func TestModelGeneratorOverwrite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "models/marts/orders.yml", `version: 2
models:
  - name: orders
    description: Stale.
`)

	manifest := &artifact.Manifest{
		Models: map[string]*artifact.Model{"model.jaffle_shop.orders": ordersModel()},
	}

	cfg := generate.DefaultConfig()
	g := generate.NewModelGenerator(cfg, dir, testutil.NewTestLogger(t))
	_, err := g.Generate(manifest, ordersCatalog())
	require.NoError(t, err)
	entry := modelEntry(t, readYAML(t, dir, "models/marts/orders.yml"), "orders")
	assert.Equal(t, "Stale.", entry["description"])

	cfg.Overwrite = true
	manifest.Models["model.jaffle_shop.orders"] = ordersModel()
	g = generate.NewModelGenerator(cfg, dir, testutil.NewTestLogger(t))
	_, err = g.Generate(manifest, ordersCatalog())
	require.NoError(t, err)
	entry = modelEntry(t, readYAML(t, dir, "models/marts/orders.yml"), "orders")
	assert.Equal(t, "One row per order.", entry["description"])
}

func TestModelGeneratorSkipsExcludedAndUncatalogued(t *testing.T) {
	dir := t.TempDir()

	stale := ordersModel()
	manifest := &artifact.Manifest{
		Models: map[string]*artifact.Model{
			stale.UniqueID: stale,
			"model.jaffle_shop.drafts": {
				UniqueID: "model.jaffle_shop.drafts", Name: "drafts",
				OriginalFilePath: "models/drafts.sql",
			},
		},
	}

	cfg := generate.DefaultConfig()
	cfg.Exclude = []string{"orders"}
	g := generate.NewModelGenerator(cfg, dir, testutil.NewTestLogger(t))
	written, err := g.Generate(manifest, ordersCatalog())
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestSourceGeneratorFillsProperties(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "models/staging/sources.yml", `version: 2
sources:
  - name: raw
    tables:
      - name: orders
`)

	manifest := &artifact.Manifest{
		Sources: map[string]*artifact.Source{
			"source.jaffle_shop.raw.orders": {
				UniqueID:         "source.jaffle_shop.raw.orders",
				Name:             "orders",
				SourceName:       "raw",
				Schema:           "raw",
				Database:         "warehouse",
				Identifier:       "raw_orders",
				OriginalFilePath: "models/staging/sources.yml",
				PatchPath:        "jaffle_shop://models/staging/sources.yml",
			},
		},
	}
	catalog := &artifact.Catalog{
		Sources: map[string]*artifact.CatalogTable{
			"source.jaffle_shop.raw.orders": {
				UniqueID: "source.jaffle_shop.raw.orders",
				Metadata: artifact.TableMetadata{
					Type: "BASE TABLE", Schema: "raw", Name: "raw_orders",
					Comment: "Raw order feed.",
				},
				Columns: map[string]*artifact.CatalogColumn{
					"order_id": {Name: "order_id", Type: "integer", Index: 1},
				},
			},
		},
	}

	g := generate.NewSourceGenerator(generate.DefaultConfig(), dir, testutil.NewTestLogger(t))
	written, err := g.Generate(manifest, catalog)
	require.NoError(t, err)
	assert.Equal(t, []string{"models/staging/sources.yml"}, written)

	props := readYAML(t, dir, "models/staging/sources.yml")
	source := namedEntry(t, props["sources"], "raw")
	assert.Equal(t, "warehouse", source["database"])
	assert.Equal(t, "raw", source["schema"])

	table := namedEntry(t, source["tables"], "orders")
	assert.Equal(t, "Raw order feed.", table["description"])
	assert.Equal(t, "raw_orders", table["identifier"])

	orderID := namedEntry(t, table["columns"], "order_id")
	assert.Equal(t, "integer", orderID["data_type"])
}

func TestGeneratorNoChangesWritesNothing(t *testing.T) {
	dir := t.TempDir()

	model := ordersModel()
	model.Description = "One row per order."
	model.Columns = artifact.Columns{
		{Name: "order_id", Description: "Primary key", DataType: "integer"},
		{Name: "status", Description: "Order status.", DataType: "varchar"},
	}
	manifest := &artifact.Manifest{
		Models: map[string]*artifact.Model{model.UniqueID: model},
	}

	g := generate.NewModelGenerator(generate.DefaultConfig(), dir, testutil.NewTestLogger(t))
	written, err := g.Generate(manifest, ordersCatalog())
	require.NoError(t, err)
	assert.Empty(t, written)
	assert.NoFileExists(t, filepath.Join(dir, "models/marts/orders.yml"))
}
