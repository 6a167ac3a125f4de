package generate

import (
	"log/slog"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

// ModelGenerator merges catalog metadata into model properties files.
type ModelGenerator struct {
	generator
}

func NewModelGenerator(cfg Config, projectDir string, logger *slog.Logger) *ModelGenerator {
	return &ModelGenerator{generator: newGenerator(cfg, projectDir, logger)}
}

// Generate fills descriptions and columns for every catalogued model
// and writes the affected properties files. It returns the paths
// written, relative to the project directory.
func (g *ModelGenerator) Generate(manifest *artifact.Manifest, catalog *artifact.Catalog) ([]string, error) {
	written := map[string]bool{}

	for _, model := range manifest.SortedModels() {
		if g.excluded(model.Name) {
			continue
		}
		table, ok := catalog.Table(model)
		if !ok {
			g.log.Debug("model not in catalog, skipping", "model", model.Name)
			continue
		}
		if !g.mergeInto(model, table) {
			continue
		}

		path := propertiesPath(model)
		if path == "" {
			g.log.Warn("model has no properties path, skipping", "model", model.Name)
			continue
		}
		if err := g.writeModel(path, model); err != nil {
			return nil, err
		}
		written[path] = true
		g.log.Info("updated model properties", "model", model.Name, "path", path)
	}
	return sortedPaths(written), nil
}

func (g *ModelGenerator) writeModel(path string, model *artifact.Model) error {
	props, err := g.loadProperties(path)
	if err != nil {
		return err
	}

	models := sectionList(props, "models")
	entry, ok := findNamed(models, model.Name)
	if !ok {
		entry = map[string]any{"name": model.Name}
		models = append(models, entry)
	}
	g.mergeEntry(entry, g.modelProperties(model))
	props["models"] = models

	return g.writeProperties(path, props)
}

func (g *ModelGenerator) modelProperties(model *artifact.Model) map[string]any {
	props := map[string]any{"name": model.Name}
	if model.Description != "" {
		props["description"] = model.Description
	}
	if len(model.Columns) > 0 {
		props["columns"] = columnsProperties(model.Columns)
	}
	return props
}
