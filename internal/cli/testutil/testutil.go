// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/dbtcontracts/internal/cli/output"
)

// SetupTestProject creates a temporary dbt project with manifest and
// catalog artifacts plus a contracts config, and returns its root.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	dirs := []string{
		filepath.Join(tmpDir, "models", "staging"),
		filepath.Join(tmpDir, "target"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	files := map[string]string{
		".dbtcontracts.yml": `severity: warning
contracts:
  models:
    terms:
      - has_description
`,
		"models/staging/stg_orders.sql": "SELECT * FROM {{ source('raw', 'orders') }}",
		"models/staging/schema.yml": `version: 2
models:
  - name: stg_orders
`,
		"target/manifest.json": `{
  "metadata": {"project_name": "jaffle_shop"},
  "nodes": {
    "model.jaffle_shop.stg_orders": {
      "unique_id": "model.jaffle_shop.stg_orders",
      "resource_type": "model",
      "name": "stg_orders",
      "package_name": "jaffle_shop",
      "path": "staging/stg_orders.sql",
      "original_file_path": "models/staging/stg_orders.sql",
      "patch_path": "jaffle_shop://models/staging/schema.yml",
      "columns": {
        "order_id": {"name": "order_id"}
      }
    }
  },
  "sources": {},
  "macros": {}
}`,
		"target/catalog.json": `{
  "nodes": {
    "model.jaffle_shop.stg_orders": {
      "unique_id": "model.jaffle_shop.stg_orders",
      "metadata": {"type": "VIEW", "schema": "staging", "name": "stg_orders"},
      "columns": {
        "order_id": {"type": "integer", "index": 1, "name": "order_id"}
      }
    }
  },
  "sources": {}
}`,
	}
	for rel, content := range files {
		path := filepath.Join(tmpDir, rel)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", rel, err)
		}
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer in the given mode with output
// captured in buffers. Buffers are never TTYs, so text output is
// unstyled.
func NewTestRenderer(mode output.Mode) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRenderer(out, errOut, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a test renderer in text mode.
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText)
}

// NewTestRendererJSON creates a test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON)
}

// Output returns the captured stdout output.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the captured stderr output.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
