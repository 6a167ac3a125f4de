// Package patch locates resources inside dbt properties files (the YAML
// files a manifest entry's patch_path points at) and reports the line
// and column span of their mappings. Spans feed result provenance, so
// lookups parse with position tracking and are cached per file.
package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

// Span is a 1-indexed line/column range inside a properties file.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Cache parses properties files on demand and memoizes them. Safe for
// concurrent use.
type Cache struct {
	projectDir string

	mu    sync.Mutex
	files map[string]*File
}

// NewCache creates a cache resolving relative patch paths against the
// given project directory.
func NewCache(projectDir string) *Cache {
	return &Cache{
		projectDir: projectDir,
		files:      make(map[string]*File),
	}
}

// PathFor resolves the properties file path of a node, relative to the
// project directory. Models and macros carry an explicit patch_path of
// the form "project://models/schema.yml"; sources and any resource
// defined directly in YAML fall back to their own file path. Returns ""
// when the node has no properties file.
func PathFor(node artifact.Node) string {
	if raw := node.GetPatchPath(); raw != "" {
		if _, path, found := strings.Cut(raw, "://"); found {
			return path
		}
		return raw
	}
	switch strings.ToLower(filepath.Ext(node.GetOriginalFilePath())) {
	case ".yml", ".yaml":
		return node.GetOriginalFilePath()
	}
	return ""
}

// ForNode returns the parsed properties file of a node, or nil when the
// node has no properties file or the file cannot be read.
func (c *Cache) ForNode(node artifact.Node) *File {
	path := PathFor(node)
	if path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.files[path]; ok {
		return f
	}

	abs := path
	if !filepath.IsAbs(abs) && c.projectDir != "" {
		abs = filepath.Join(c.projectDir, path)
	}
	f, err := LoadFile(abs)
	if err != nil {
		f = nil
	}
	c.files[path] = f
	return f
}

// File is a parsed properties file with position information intact.
type File struct {
	root *yaml.Node
}

// LoadFile reads and parses one properties file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read properties file: %w", err)
	}
	return Parse(data)
}

// Parse parses properties file contents.
func Parse(data []byte) (*File, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse properties file: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	return &File{root: root}, nil
}

// Entry is one named mapping inside a properties file, e.g. a model
// block or a column block.
type Entry struct {
	node *yaml.Node
}

// Resource finds the entry with the given name in a top-level section
// such as "models" or "macros".
func (f *File) Resource(section, name string) (*Entry, bool) {
	if f == nil || f.root == nil {
		return nil, false
	}
	seq := mapValue(f.root, section)
	return findNamed(seq, name)
}

// SourceTable finds a source table entry: the named table nested under
// the named entry of the top-level "sources" section.
func (f *File) SourceTable(sourceName, tableName string) (*Entry, bool) {
	source, ok := f.Resource("sources", sourceName)
	if !ok {
		return nil, false
	}
	return source.Child("tables", tableName)
}

// Child finds a named entry in a nested section of this entry, such as
// "columns" or "arguments".
func (e *Entry) Child(section, name string) (*Entry, bool) {
	if e == nil {
		return nil, false
	}
	return findNamed(mapValue(e.node, section), name)
}

// Span returns the line/column range of this entry's mapping. Start is
// the position of the first key; end is the end of the last scalar in
// the mapping, including nested blocks.
func (e *Entry) Span() Span {
	endLine, endCol := endOf(e.node)
	return Span{
		StartLine: e.node.Line,
		StartCol:  e.node.Column,
		EndLine:   endLine,
		EndCol:    endCol,
	}
}

// mapValue returns the value node for a key of a mapping node.
func mapValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// findNamed scans a sequence of mappings for the one whose "name" key
// matches.
func findNamed(seq *yaml.Node, name string) (*Entry, bool) {
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nil, false
	}
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		if v := mapValue(item, "name"); v != nil && v.Value == name {
			return &Entry{node: item}, true
		}
	}
	return nil, false
}

// endOf computes the end position of a node by descending to its last
// scalar. yaml.v3 only records start positions, so the end column of a
// scalar is derived from its value length.
func endOf(n *yaml.Node) (line, col int) {
	for n.Kind != yaml.ScalarNode && n.Kind != yaml.AliasNode && len(n.Content) > 0 {
		n = n.Content[len(n.Content)-1]
	}

	line = n.Line
	col = n.Column
	if !strings.Contains(n.Value, "\n") {
		return line, col + len(n.Value)
	}

	lines := strings.Split(n.Value, "\n")
	line += len(lines) - 1
	return line, len(lines[len(lines)-1]) + 1
}
