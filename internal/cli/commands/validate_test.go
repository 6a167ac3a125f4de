package commands_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbtcontracts/internal/cli/testutil"
)

func TestValidateReportsViolations(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	stdout, _, err := executeCommand(t, "validate", "--project-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract violations found")
	assert.Contains(t, stdout, "stg_orders")
	assert.Contains(t, stdout, "has_description")
}

func TestValidateNoFail(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	stdout, _, err := executeCommand(t, "validate", "--project-dir", dir, "--no-fail")
	require.NoError(t, err)
	assert.Contains(t, stdout, "has_description")
}

func TestValidateJSONOutput(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	stdout, _, err := executeCommand(t, "validate", "--project-dir", dir, "-o", "json")
	require.Error(t, err)

	var run struct {
		ID      string `json:"run_id"`
		Results []struct {
			Name string `json:"name"`
			Rule string `json:"result_name"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &run))
	assert.NotEmpty(t, run.ID)
	require.Len(t, run.Results, 1)
	assert.Equal(t, "stg_orders", run.Results[0].Name)
	assert.Equal(t, "has_description", run.Results[0].Rule)
}

func TestValidateWritesResultsFile(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	_, _, err := executeCommand(t, "validate",
		"--project-dir", dir, "--format", "json", "--no-fail")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "target", "contracts_results.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "has_description")
}

func TestValidateSelectsContract(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	stdout, _, err := executeCommand(t, "validate", "models",
		"--project-dir", dir, "--no-fail")
	require.NoError(t, err)
	assert.Contains(t, stdout, "stg_orders")

	_, _, err = executeCommand(t, "validate", "seeds", "--project-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configured contract")
}

func TestValidateEnforceEscalatesSeverity(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	stdout, _, err := executeCommand(t, "validate",
		"--project-dir", dir, "--enforce", "has_description", "-o", "json")
	require.Error(t, err)

	var run struct {
		Results []struct {
			Level string `json:"result_level"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &run))
	require.Len(t, run.Results, 1)
	assert.Equal(t, "error", run.Results[0].Level)
}

func TestValidatePassing(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	schema := filepath.Join(dir, "models", "staging", "schema.yml")
	require.NoError(t, os.WriteFile(schema, []byte(`version: 2
models:
  - name: stg_orders
    description: Staged orders.
`), 0o644))

	// The manifest, not the properties file, carries the description.
	manifest := filepath.Join(dir, "target", "manifest.json")
	patched := []byte(
		`{"metadata": {"project_name": "jaffle_shop"}, "nodes": {
  "model.jaffle_shop.stg_orders": {
    "unique_id": "model.jaffle_shop.stg_orders",
    "resource_type": "model",
    "name": "stg_orders",
    "package_name": "jaffle_shop",
    "path": "staging/stg_orders.sql",
    "original_file_path": "models/staging/stg_orders.sql",
    "patch_path": "jaffle_shop://models/staging/schema.yml",
    "description": "Staged orders.",
    "columns": {}
  }
}, "sources": {}, "macros": {}}`)
	require.NoError(t, os.WriteFile(manifest, patched, 0o644))

	stdout, _, err := executeCommand(t, "validate", "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "All contracts passed")
}

func TestValidateWithoutContracts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ".dbtcontracts.yml"), []byte("severity: warning\n"), 0o644))

	_, _, err := executeCommand(t, "validate", "--project-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no contracts configured")
}
