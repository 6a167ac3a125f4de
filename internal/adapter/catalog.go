package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

// BuildCatalog introspects every model and source in the manifest and
// assembles the equivalent of dbt's catalog.json. Relations missing
// from the warehouse are skipped so existence terms can report them.
func BuildCatalog(ctx context.Context, a Adapter, m *artifact.Manifest, logger *slog.Logger) (*artifact.Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	catalog := &artifact.Catalog{
		Nodes:   make(map[string]*artifact.CatalogTable),
		Sources: make(map[string]*artifact.CatalogTable),
	}

	for _, model := range m.SortedModels() {
		name := model.Alias
		if name == "" {
			name = model.Name
		}
		table, err := catalogTable(ctx, a, model.UniqueID, model.Database, model.Schema, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				logger.Debug("model not found in warehouse", "unique_id", model.UniqueID)
				continue
			}
			return nil, fmt.Errorf("introspect %s: %w", model.UniqueID, err)
		}
		catalog.Nodes[model.UniqueID] = table
	}

	for _, source := range m.SortedSources() {
		name := source.Identifier
		if name == "" {
			name = source.Name
		}
		table, err := catalogTable(ctx, a, source.UniqueID, source.Database, source.Schema, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				logger.Debug("source not found in warehouse", "unique_id", source.UniqueID)
				continue
			}
			return nil, fmt.Errorf("introspect %s: %w", source.UniqueID, err)
		}
		catalog.Sources[source.UniqueID] = table
	}

	logger.Info("built live catalog",
		"adapter", a.Name(), "nodes", len(catalog.Nodes), "sources", len(catalog.Sources))
	return catalog, nil
}

func catalogTable(ctx context.Context, a Adapter, uniqueID, database, schema, name string) (*artifact.CatalogTable, error) {
	rel, err := a.Relation(ctx, schema, name)
	if err != nil {
		return nil, err
	}

	table := &artifact.CatalogTable{
		UniqueID: uniqueID,
		Metadata: artifact.TableMetadata{
			Type:     rel.Type,
			Database: database,
			Schema:   schema,
			Name:     name,
		},
		Columns: make(map[string]*artifact.CatalogColumn, len(rel.Columns)),
	}
	for _, col := range rel.Columns {
		table.Columns[col.Name] = &artifact.CatalogColumn{
			Name:  col.Name,
			Type:  col.Type,
			Index: col.Position,
		}
	}
	return table, nil
}
