package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("project-dir", "", "project directory")
	require.NoError(t, flags.Set("project-dir", tmpDir))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, tmpDir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(tmpDir, "target"), cfg.TargetPath)
	assert.Equal(t, "warning", cfg.Severity)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.False(t, cfg.NoFail)
	assert.Empty(t, cfg.Contracts)
}

func TestLoadConfigFromFile(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, ".dbtcontracts.yml")
	cfgContent := `severity: error
target_dir: build
format: json
contracts:
  models:
    terms:
      - has_description
target:
  type: duckdb
  path: dev.duckdb
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgContent), 0o600))

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	// The config file directory anchors the project root.
	assert.Equal(t, tmpDir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(tmpDir, "build"), cfg.TargetPath)
	assert.Equal(t, "error", cfg.Severity)
	assert.Equal(t, "json", cfg.Format)
	require.Contains(t, cfg.Contracts, "models")
	require.NotNil(t, cfg.Target)
	assert.Equal(t, "duckdb", cfg.Target.Type)
	assert.Equal(t, cfgPath, GetConfigFileUsed())
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, ".dbtcontracts.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("severity: warning\n"), 0o600))

	t.Setenv("DBT_CONTRACTS_SEVERITY", "error")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Severity)
}

func TestLoadConfigFlagOverridesEnv(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, ".dbtcontracts.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output: text\n"), 0o600))

	t.Setenv("DBT_CONTRACTS_OUTPUT", "json")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "", "output mode")
	require.NoError(t, flags.Set("output", "auto"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.OutputFormat)
}

func TestLoadConfigUnchangedFlagUsesEnv(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, ".dbtcontracts.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output: text\n"), 0o600))

	t.Setenv("DBT_CONTRACTS_OUTPUT", "json")

	// Flag declared but never set: Changed is false.
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "", "output mode")

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadConfigRejectsBadSeverity(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, ".dbtcontracts.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("severity: fatal\n"), 0o600))

	_, err := LoadConfig(cfgPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown severity")
}

func TestConfigValidateFormat(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		wantErr bool
	}{
		{name: "empty format", format: ""},
		{name: "json", format: "json"},
		{name: "jsonl", format: "jsonl"},
		{name: "github annotations", format: "github-annotations"},
		{name: "unknown", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Severity: DefaultSeverity, Format: tt.format}
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown results format")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateProjectDir(t *testing.T) {
	cfg := &Config{ProjectRoot: t.TempDir()}
	assert.NoError(t, cfg.ValidateProjectDir())

	cfg = &Config{ProjectRoot: filepath.Join(t.TempDir(), "missing")}
	require.Error(t, cfg.ValidateProjectDir())
}

func TestResultsPathDefaultsToTarget(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, ".dbtcontracts.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("target_dir: target\n"), 0o600))

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.TargetPath, cfg.ResultsPath)

	ResetConfig()
	require.NoError(t, os.WriteFile(cfgPath, []byte("results_path: out\n"), 0o600))
	cfg, err = LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "out"), cfg.ResultsPath)
}
