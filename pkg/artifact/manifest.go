package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ManifestFileName is the artifact dbt writes after parsing a project.
const ManifestFileName = "manifest.json"

// ManifestMetadata is the subset of manifest metadata the tool reports.
type ManifestMetadata struct {
	ProjectName   string `json:"project_name"`
	DbtVersion    string `json:"dbt_version"`
	AdapterType   string `json:"adapter_type"`
	GeneratedAt   string `json:"generated_at"`
	SchemaVersion string `json:"dbt_schema_version"`
}

// Manifest holds the parsed project resources, split by resource type.
// The manifest's nodes object mixes models and tests; LoadManifest
// separates them so callers never type-switch on raw nodes.
type Manifest struct {
	Metadata ManifestMetadata
	Models   map[string]*Model
	Sources  map[string]*Source
	Macros   map[string]*Macro
	Tests    map[string]*Test
}

type rawManifest struct {
	Metadata ManifestMetadata           `json:"metadata"`
	Nodes    map[string]json.RawMessage `json:"nodes"`
	Sources  map[string]*Source         `json:"sources"`
	Macros   map[string]*Macro          `json:"macros"`
}

type nodeHeader struct {
	ResourceType ResourceType `json:"resource_type"`
}

// ParseManifest decodes a manifest.json document.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var raw rawManifest
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	m := &Manifest{
		Metadata: raw.Metadata,
		Models:   make(map[string]*Model),
		Sources:  raw.Sources,
		Macros:   raw.Macros,
		Tests:    make(map[string]*Test),
	}
	if m.Sources == nil {
		m.Sources = make(map[string]*Source)
	}
	if m.Macros == nil {
		m.Macros = make(map[string]*Macro)
	}

	for id, data := range raw.Nodes {
		var header nodeHeader
		if err := json.Unmarshal(data, &header); err != nil {
			return nil, fmt.Errorf("decode manifest node %q: %w", id, err)
		}

		switch header.ResourceType {
		case TypeModel:
			model := &Model{}
			if err := json.Unmarshal(data, model); err != nil {
				return nil, fmt.Errorf("decode model %q: %w", id, err)
			}
			m.Models[id] = model
		case TypeTest:
			test := &Test{}
			if err := json.Unmarshal(data, test); err != nil {
				return nil, fmt.Errorf("decode test %q: %w", id, err)
			}
			m.Tests[id] = test
		default:
			// seeds, snapshots and analyses are out of scope
		}
	}

	return m, nil
}

// LoadManifest reads and parses a manifest.json file.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f)
}

// LoadManifestFromTarget reads manifest.json from a dbt target directory.
func LoadManifestFromTarget(targetDir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(targetDir, ManifestFileName))
}

// SortedModels returns the models ordered by unique ID.
func (m *Manifest) SortedModels() []*Model {
	ids := make([]string, 0, len(m.Models))
	for id := range m.Models {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	models := make([]*Model, len(ids))
	for i, id := range ids {
		models[i] = m.Models[id]
	}
	return models
}

// SortedSources returns the sources ordered by unique ID.
func (m *Manifest) SortedSources() []*Source {
	ids := make([]string, 0, len(m.Sources))
	for id := range m.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sources := make([]*Source, len(ids))
	for i, id := range ids {
		sources[i] = m.Sources[id]
	}
	return sources
}

// SortedMacros returns the macros ordered by unique ID.
func (m *Manifest) SortedMacros() []*Macro {
	ids := make([]string, 0, len(m.Macros))
	for id := range m.Macros {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	macros := make([]*Macro, len(ids))
	for i, id := range ids {
		macros[i] = m.Macros[id]
	}
	return macros
}

// TestsFor returns the tests attached to a node itself, excluding
// column-level tests.
func (m *Manifest) TestsFor(uniqueID string) []*Test {
	var tests []*Test
	for _, test := range m.Tests {
		if test.AttachedTo() == uniqueID && test.ColumnName == "" {
			tests = append(tests, test)
		}
	}
	return tests
}

// TestsForColumn returns the tests attached to one column of a node.
func (m *Manifest) TestsForColumn(uniqueID, column string) []*Test {
	var tests []*Test
	for _, test := range m.Tests {
		if test.AttachedTo() == uniqueID && test.ColumnName == column {
			tests = append(tests, test)
		}
	}
	return tests
}
