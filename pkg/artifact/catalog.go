package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// CatalogFileName is the artifact dbt writes after `dbt docs generate`.
const CatalogFileName = "catalog.json"

// Catalog holds the relations dbt observed in the warehouse.
type Catalog struct {
	Nodes   map[string]*CatalogTable `json:"nodes"`
	Sources map[string]*CatalogTable `json:"sources"`
}

// TableMetadata identifies a catalogued relation.
type TableMetadata struct {
	Type     string `json:"type"`
	Database string `json:"database"`
	Schema   string `json:"schema"`
	Name     string `json:"name"`
	Comment  string `json:"comment"`
	Owner    string `json:"owner"`
}

// CatalogColumn is one column of a catalogued relation. Index is the
// 1-based ordinal position reported by the warehouse.
type CatalogColumn struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Comment string `json:"comment"`
}

// CatalogTable is one relation observed in the warehouse.
type CatalogTable struct {
	UniqueID string                    `json:"unique_id"`
	Metadata TableMetadata             `json:"metadata"`
	Columns  map[string]*CatalogColumn `json:"columns"`
}

// Column returns the catalogued column with the given name.
func (t *CatalogTable) Column(name string) (*CatalogColumn, bool) {
	col, ok := t.Columns[name]
	return col, ok
}

// ColumnNames returns the catalogued column names sorted by ordinal.
func (t *CatalogTable) ColumnNames() []string {
	cols := make([]*CatalogColumn, 0, len(t.Columns))
	for _, col := range t.Columns {
		cols = append(cols, col)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Index < cols[j].Index })

	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return names
}

// ParseCatalog decodes a catalog.json document.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	c := &Catalog{}
	if err := json.NewDecoder(r).Decode(c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if c.Nodes == nil {
		c.Nodes = make(map[string]*CatalogTable)
	}
	if c.Sources == nil {
		c.Sources = make(map[string]*CatalogTable)
	}
	return c, nil
}

// LoadCatalog reads and parses a catalog.json file.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return ParseCatalog(f)
}

// LoadCatalogFromTarget reads catalog.json from a dbt target directory.
func LoadCatalogFromTarget(targetDir string) (*Catalog, error) {
	return LoadCatalog(filepath.Join(targetDir, CatalogFileName))
}

// Table looks up the catalogue entry matching a manifest node. Models
// live under nodes, sources under sources.
func (c *Catalog) Table(node Node) (*CatalogTable, bool) {
	var table *CatalogTable
	var ok bool
	switch node.GetType() {
	case TypeSource:
		table, ok = c.Sources[node.GetUniqueID()]
	default:
		table, ok = c.Nodes[node.GetUniqueID()]
	}
	return table, ok
}
