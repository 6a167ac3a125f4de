// Package artifact models the dbt build artifacts consumed by contract
// evaluation: manifest.json (project resources) and catalog.json (the
// relations and columns that actually exist in the warehouse).
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ResourceType discriminates manifest resources.
type ResourceType string

// Resource types found in manifest.json that this tool evaluates.
const (
	TypeModel  ResourceType = "model"
	TypeSource ResourceType = "source"
	TypeMacro  ResourceType = "macro"
	TypeTest   ResourceType = "test"
)

// Title returns the capitalised display form, e.g. "model" -> "Model".
func (t ResourceType) Title() string {
	s := string(t)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Resource is anything a contract can evaluate, top-level or nested.
type Resource interface {
	GetName() string
}

// Node is a top-level manifest resource (model, source or macro).
type Node interface {
	Resource
	GetUniqueID() string
	GetType() ResourceType
	GetPath() string
	GetOriginalFilePath() string
	// GetPatchPath returns the raw manifest patch path, usually in the
	// form "project://models/schema.yml". Empty when the resource has no
	// properties file.
	GetPatchPath() string
	GetDescription() string
}

// TableNode is a node backed by a relation in the warehouse (model or
// source), so it carries declared columns alongside tags and meta.
type TableNode interface {
	Node
	GetColumns() Columns
	GetTags() []string
	GetMeta() map[string]any
}

// DependsOn lists the upstream resources a node was compiled against.
type DependsOn struct {
	Nodes  []string `json:"nodes"`
	Macros []string `json:"macros"`
}

// Column is a column declared on a model or source in its properties file.
type Column struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	DataType    string         `json:"data_type"`
	Tags        []string       `json:"tags"`
	Meta        map[string]any `json:"meta"`
	Quote       bool           `json:"quote"`
}

func (c *Column) GetName() string         { return c.Name }
func (c *Column) GetDescription() string  { return c.Description }
func (c *Column) GetTags() []string       { return c.Tags }
func (c *Column) GetMeta() map[string]any { return c.Meta }

// Columns preserves the declaration order of the manifest's columns
// object, which encoding/json maps would lose. Order matters when
// comparing declared positions against catalog ordinals.
type Columns []*Column

// UnmarshalJSON decodes the manifest's columns object keeping key order.
func (c *Columns) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("columns: expected object, got %v", tok)
	}

	cols := Columns{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		col := &Column{}
		if err := dec.Decode(col); err != nil {
			return fmt.Errorf("columns: decode %q: %w", key, err)
		}
		if col.Name == "" {
			col.Name = key
		}
		cols = append(cols, col)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = cols
	return nil
}

// MarshalJSON writes the columns back as an object keyed by name.
func (c Columns) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the column with the given name.
func (c Columns) Get(name string) (*Column, bool) {
	for _, col := range c {
		if col.Name == name {
			return col, true
		}
	}
	return nil, false
}

// Index returns the zero-based declaration position of the named column,
// or -1 when absent.
func (c Columns) Index(name string) int {
	for i, col := range c {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in declaration order.
func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}
	return names
}

// ModelConfig is the subset of a model's resolved config the contracts
// inspect.
type ModelConfig struct {
	Enabled      *bool          `json:"enabled"`
	Materialized string         `json:"materialized"`
	Tags         []string       `json:"tags"`
	Meta         map[string]any `json:"meta"`
}

// IsEnabled reports the resolved enabled flag; dbt defaults it to true.
func (c ModelConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ContractConfig mirrors a model's contract block.
type ContractConfig struct {
	Enforced bool `json:"enforced"`
}

// Constraint is a model-level or column-level constraint declaration.
type Constraint struct {
	Type       string   `json:"type"`
	Name       string   `json:"name"`
	Expression string   `json:"expression"`
	Columns    []string `json:"columns"`
}

// Model is a dbt model node from the manifest.
type Model struct {
	UniqueID         string         `json:"unique_id"`
	Name             string         `json:"name"`
	ResourceType     ResourceType   `json:"resource_type"`
	PackageName      string         `json:"package_name"`
	Path             string         `json:"path"`
	OriginalFilePath string         `json:"original_file_path"`
	PatchPath        string         `json:"patch_path"`
	Database         string         `json:"database"`
	Schema           string         `json:"schema"`
	Alias            string         `json:"alias"`
	Description      string         `json:"description"`
	Tags             []string       `json:"tags"`
	Meta             map[string]any `json:"meta"`
	Columns          Columns        `json:"columns"`
	RawCode          string         `json:"raw_code"`
	Config           ModelConfig    `json:"config"`
	Contract         ContractConfig `json:"contract"`
	Constraints      []Constraint   `json:"constraints"`
	DependsOn        DependsOn      `json:"depends_on"`
}

func (m *Model) GetName() string             { return m.Name }
func (m *Model) GetUniqueID() string         { return m.UniqueID }
func (m *Model) GetType() ResourceType       { return TypeModel }
func (m *Model) GetPath() string             { return m.Path }
func (m *Model) GetOriginalFilePath() string { return m.OriginalFilePath }
func (m *Model) GetPatchPath() string        { return m.PatchPath }
func (m *Model) GetDescription() string      { return m.Description }
func (m *Model) GetColumns() Columns         { return m.Columns }
func (m *Model) GetTags() []string           { return m.Tags }
func (m *Model) GetMeta() map[string]any     { return m.Meta }

// SourceFreshness mirrors a source's freshness block. A block counts as
// configured when either threshold carries a period.
type SourceFreshness struct {
	WarnAfter  FreshnessThreshold `json:"warn_after"`
	ErrorAfter FreshnessThreshold `json:"error_after"`
}

// FreshnessThreshold is one bound of a freshness block.
type FreshnessThreshold struct {
	Count  *int   `json:"count"`
	Period string `json:"period"`
}

// IsSet reports whether the threshold was declared.
func (t FreshnessThreshold) IsSet() bool {
	return t.Count != nil && t.Period != ""
}

// SourceConfig is the subset of a source's resolved config the contracts
// inspect.
type SourceConfig struct {
	Enabled *bool `json:"enabled"`
}

// IsEnabled reports the resolved enabled flag; dbt defaults it to true.
func (c SourceConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Source is a dbt source table definition from the manifest.
type Source struct {
	UniqueID         string           `json:"unique_id"`
	Name             string           `json:"name"`
	ResourceType     ResourceType     `json:"resource_type"`
	PackageName      string           `json:"package_name"`
	Path             string           `json:"path"`
	OriginalFilePath string           `json:"original_file_path"`
	PatchPath        string           `json:"patch_path"`
	SourceName       string           `json:"source_name"`
	Database         string           `json:"database"`
	Schema           string           `json:"schema"`
	Identifier       string           `json:"identifier"`
	Loader           string           `json:"loader"`
	LoadedAtField    string           `json:"loaded_at_field"`
	Freshness        *SourceFreshness `json:"freshness"`
	Description      string           `json:"description"`
	Tags             []string         `json:"tags"`
	Meta             map[string]any   `json:"meta"`
	Columns          Columns          `json:"columns"`
	Config           SourceConfig     `json:"config"`
}

func (s *Source) GetName() string             { return s.Name }
func (s *Source) GetUniqueID() string         { return s.UniqueID }
func (s *Source) GetType() ResourceType       { return TypeSource }
func (s *Source) GetPath() string             { return s.Path }
func (s *Source) GetOriginalFilePath() string { return s.OriginalFilePath }
func (s *Source) GetPatchPath() string        { return s.PatchPath }
func (s *Source) GetDescription() string      { return s.Description }
func (s *Source) GetColumns() Columns         { return s.Columns }
func (s *Source) GetTags() []string           { return s.Tags }
func (s *Source) GetMeta() map[string]any     { return s.Meta }

// HasFreshness reports whether any freshness threshold was declared.
func (s *Source) HasFreshness() bool {
	if s.Freshness == nil {
		return false
	}
	return s.Freshness.WarnAfter.IsSet() || s.Freshness.ErrorAfter.IsSet()
}

// MacroArgument is one declared argument of a macro.
type MacroArgument struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (a *MacroArgument) GetName() string        { return a.Name }
func (a *MacroArgument) GetDescription() string { return a.Description }

// Macro is a dbt macro from the manifest.
type Macro struct {
	UniqueID         string           `json:"unique_id"`
	Name             string           `json:"name"`
	ResourceType     ResourceType     `json:"resource_type"`
	PackageName      string           `json:"package_name"`
	Path             string           `json:"path"`
	OriginalFilePath string           `json:"original_file_path"`
	PatchPath        string           `json:"patch_path"`
	Description      string           `json:"description"`
	Arguments        []*MacroArgument `json:"arguments"`
	DependsOn        struct {
		Macros []string `json:"macros"`
	} `json:"depends_on"`
}

func (m *Macro) GetName() string             { return m.Name }
func (m *Macro) GetUniqueID() string         { return m.UniqueID }
func (m *Macro) GetType() ResourceType       { return TypeMacro }
func (m *Macro) GetPath() string             { return m.Path }
func (m *Macro) GetOriginalFilePath() string { return m.OriginalFilePath }
func (m *Macro) GetPatchPath() string        { return m.PatchPath }
func (m *Macro) GetDescription() string      { return m.Description }

// Test is a dbt test node. Tests are never evaluated directly; they are
// counted against the node or column they attach to.
type Test struct {
	UniqueID     string       `json:"unique_id"`
	Name         string       `json:"name"`
	ResourceType ResourceType `json:"resource_type"`
	AttachedNode string       `json:"attached_node"`
	ColumnName   string       `json:"column_name"`
	DependsOn    DependsOn    `json:"depends_on"`
}

// AttachedTo resolves the unique ID of the resource this test covers,
// falling back to the first node dependency when attached_node is absent
// (older manifest schemas).
func (t *Test) AttachedTo() string {
	if t.AttachedNode != "" {
		return t.AttachedNode
	}
	if len(t.DependsOn.Nodes) > 0 {
		return t.DependsOn.Nodes[0]
	}
	return ""
}
