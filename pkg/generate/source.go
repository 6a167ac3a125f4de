package generate

import (
	"log/slog"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

// SourceGenerator merges catalog metadata into source properties
// files. Source tables nest under their source entry, so the merge
// walks one level deeper than the model generator.
type SourceGenerator struct {
	generator
}

func NewSourceGenerator(cfg Config, projectDir string, logger *slog.Logger) *SourceGenerator {
	return &SourceGenerator{generator: newGenerator(cfg, projectDir, logger)}
}

// Generate fills descriptions and columns for every catalogued source
// table and writes the affected properties files. It returns the paths
// written, relative to the project directory.
func (g *SourceGenerator) Generate(manifest *artifact.Manifest, catalog *artifact.Catalog) ([]string, error) {
	written := map[string]bool{}

	for _, source := range manifest.SortedSources() {
		if g.excluded(source.Name) || g.excluded(source.SourceName) {
			continue
		}
		table, ok := catalog.Table(source)
		if !ok {
			g.log.Debug("source not in catalog, skipping",
				"source", source.SourceName, "table", source.Name)
			continue
		}
		if !g.mergeInto(source, table) {
			continue
		}

		path := propertiesPath(source)
		if path == "" {
			g.log.Warn("source has no properties path, skipping",
				"source", source.SourceName, "table", source.Name)
			continue
		}
		if err := g.writeSource(path, source); err != nil {
			return nil, err
		}
		written[path] = true
		g.log.Info("updated source properties",
			"source", source.SourceName, "table", source.Name, "path", path)
	}
	return sortedPaths(written), nil
}

func (g *SourceGenerator) writeSource(path string, source *artifact.Source) error {
	props, err := g.loadProperties(path)
	if err != nil {
		return err
	}

	sources := sectionList(props, "sources")
	entry, ok := findNamed(sources, source.SourceName)
	if !ok {
		entry = map[string]any{"name": source.SourceName}
		sources = append(sources, entry)
	}
	g.mergeSourceEntry(entry, source)

	tables := sectionListOf(entry, "tables")
	tableEntry, ok := findNamed(tables, source.Name)
	if !ok {
		tableEntry = map[string]any{"name": source.Name}
		tables = append(tables, tableEntry)
	}
	g.mergeEntry(tableEntry, g.tableProperties(source))
	entry["tables"] = tables
	props["sources"] = sources

	return g.writeProperties(path, props)
}

// mergeSourceEntry fills the source-level keys without touching the
// tables list, which mergeEntry would clobber.
func (g *SourceGenerator) mergeSourceEntry(entry map[string]any, source *artifact.Source) {
	generated := map[string]any{}
	if source.Database != "" {
		generated["database"] = source.Database
	}
	if source.Schema != "" {
		generated["schema"] = source.Schema
	}
	for key, val := range generated {
		if cur, ok := entry[key]; !ok || isEmptyValue(cur) || g.cfg.Overwrite {
			entry[key] = val
		}
	}
}

func (g *SourceGenerator) tableProperties(source *artifact.Source) map[string]any {
	props := map[string]any{"name": source.Name}
	if source.Description != "" {
		props["description"] = source.Description
	}
	if source.Identifier != "" && source.Identifier != source.Name {
		props["identifier"] = source.Identifier
	}
	if len(source.Columns) > 0 {
		props["columns"] = columnsProperties(source.Columns)
	}
	return props
}
