// Package generate fills dbt properties files from catalog metadata:
// descriptions from relation comments, columns and data types from the
// introspected schema.
package generate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
	"github.com/leapstack-labs/dbtcontracts/pkg/contract/patch"
)

// Config controls what a generator writes.
type Config struct {
	// Description pulls relation and column comments into descriptions.
	Description bool

	// Columns adds catalogued columns missing from the properties and
	// records their data types.
	Columns bool

	// Overwrite replaces values that are already set instead of only
	// filling gaps.
	Overwrite bool

	// Exclude lists resource names the generator skips.
	Exclude []string
}

// DefaultConfig enables description and column generation without
// touching values already set by hand.
func DefaultConfig() Config {
	return Config{Description: true, Columns: true}
}

// generator carries the state shared by the model and source
// generators.
type generator struct {
	cfg        Config
	projectDir string
	log        *slog.Logger
}

func newGenerator(cfg Config, projectDir string, logger *slog.Logger) generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return generator{cfg: cfg, projectDir: projectDir, log: logger}
}

func (g *generator) excluded(name string) bool {
	for _, excluded := range g.cfg.Exclude {
		if excluded == name {
			return true
		}
	}
	return false
}

// mergeInto merges catalog metadata into the node's in-memory columns
// and description. It reports whether anything changed.
func (g *generator) mergeInto(node artifact.TableNode, table *artifact.CatalogTable) bool {
	changed := false

	columns := node.GetColumns()
	if g.cfg.Columns {
		for _, name := range table.ColumnNames() {
			catalogCol, _ := table.Column(name)
			col, ok := columns.Get(name)
			if !ok {
				col = &artifact.Column{Name: name}
				columns = append(columns, col)
				changed = true
			}
			if catalogCol.Type != "" && (col.DataType == "" || g.cfg.Overwrite) && col.DataType != catalogCol.Type {
				col.DataType = catalogCol.Type
				changed = true
			}
			if g.cfg.Description && catalogCol.Comment != "" &&
				(col.Description == "" || g.cfg.Overwrite) && col.Description != catalogCol.Comment {
				col.Description = catalogCol.Comment
				changed = true
			}
		}
	}
	setColumns(node, columns)

	if g.cfg.Description && table.Metadata.Comment != "" {
		changed = setDescription(node, table.Metadata.Comment, g.cfg.Overwrite) || changed
	}
	return changed
}

func setColumns(node artifact.TableNode, columns artifact.Columns) {
	switch v := node.(type) {
	case *artifact.Model:
		v.Columns = columns
	case *artifact.Source:
		v.Columns = columns
	}
}

func setDescription(node artifact.Node, description string, overwrite bool) bool {
	switch v := node.(type) {
	case *artifact.Model:
		if v.Description != "" && !overwrite || v.Description == description {
			return false
		}
		v.Description = description
	case *artifact.Source:
		if v.Description != "" && !overwrite || v.Description == description {
			return false
		}
		v.Description = description
	}
	return true
}

// propertiesPath resolves where a node's properties live, deriving a
// sibling .yml path for nodes that have none yet.
func propertiesPath(node artifact.Node) string {
	if path := patch.PathFor(node); path != "" {
		return path
	}
	original := node.GetOriginalFilePath()
	if original == "" {
		return ""
	}
	return strings.TrimSuffix(original, filepath.Ext(original)) + ".yml"
}

// loadProperties reads a properties file into a mapping, returning a
// fresh skeleton when the file does not exist yet.
func (g *generator) loadProperties(path string) (map[string]any, error) {
	abs := path
	if !filepath.IsAbs(abs) && g.projectDir != "" {
		abs = filepath.Join(g.projectDir, path)
	}

	data, err := os.ReadFile(abs)
	if os.IsNotExist(err) {
		return map[string]any{"version": 2}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read properties file %s: %w", path, err)
	}

	props := map[string]any{}
	if err := yaml.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("parse properties file %s: %w", path, err)
	}
	if _, ok := props["version"]; !ok {
		props["version"] = 2
	}
	return props, nil
}

// writeProperties writes the properties mapping back to disk.
func (g *generator) writeProperties(path string, props map[string]any) error {
	abs := path
	if !filepath.IsAbs(abs) && g.projectDir != "" {
		abs = filepath.Join(g.projectDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create properties directory: %w", err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return fmt.Errorf("write properties file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(props); err != nil {
		return fmt.Errorf("encode properties file %s: %w", path, err)
	}
	return enc.Close()
}

// sectionList returns the named top-level list of a properties mapping,
// creating it when absent.
func sectionList(props map[string]any, key string) []any {
	if list, ok := props[key].([]any); ok {
		return list
	}
	return nil
}

// findNamed locates the entry with the given name in a list of
// mappings.
func findNamed(list []any, name string) (map[string]any, bool) {
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if entryName, _ := entry["name"].(string); entryName == name {
			return entry, true
		}
	}
	return nil, false
}

// mergeEntry merges generated values into an existing properties
// entry. Columns merge by name; scalar values follow the overwrite
// setting.
func (g *generator) mergeEntry(entry, generated map[string]any) {
	for key, val := range generated {
		if key == "columns" {
			cols, _ := val.([]any)
			entry["columns"] = g.mergeColumns(sectionListOf(entry, "columns"), cols)
			continue
		}
		if key == "name" {
			entry["name"] = val
			continue
		}
		if cur, ok := entry[key]; !ok || isEmptyValue(cur) || g.cfg.Overwrite {
			entry[key] = val
		}
	}
}

func sectionListOf(entry map[string]any, key string) []any {
	list, _ := entry[key].([]any)
	return list
}

func (g *generator) mergeColumns(existing, generated []any) []any {
	for _, item := range generated {
		genCol, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := genCol["name"].(string)
		if col, ok := findNamed(existing, name); ok {
			g.mergeEntry(col, genCol)
			continue
		}
		existing = append(existing, genCol)
	}
	return existing
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// columnProperties renders a column as a properties mapping, dropping
// empty fields.
func columnProperties(col *artifact.Column) map[string]any {
	props := map[string]any{"name": col.Name}
	if col.Description != "" {
		props["description"] = col.Description
	}
	if col.DataType != "" {
		props["data_type"] = col.DataType
	}
	return props
}

func columnsProperties(columns artifact.Columns) []any {
	list := make([]any, 0, len(columns))
	for _, col := range columns {
		list = append(list, columnProperties(col))
	}
	return list
}

func sortedPaths(written map[string]bool) []string {
	paths := make([]string, 0, len(written))
	for path := range written {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
