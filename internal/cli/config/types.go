// Package config provides configuration management for the dbt-contracts
// CLI: a koanf-loaded config file layered under environment variables
// and flags.
package config

// TargetConfig holds warehouse connection settings. It is only needed
// when no catalog.json artifact exists and the catalog has to be
// introspected live.
type TargetConfig struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Schema   string            `koanf:"schema"`
	Options  map[string]string `koanf:"options"`
}

// GeneratorConfig configures property-file generation for one resource
// kind.
type GeneratorConfig struct {
	// Description pulls the relation comment into the resource
	// description.
	Description bool `koanf:"description"`

	// Columns adds catalogued columns to the properties entry.
	Columns bool `koanf:"columns"`

	// Overwrite replaces values that are already set instead of only
	// filling gaps.
	Overwrite bool `koanf:"overwrite"`

	// Exclude lists resource names the generator skips.
	Exclude []string `koanf:"exclude"`
}

// Config holds all CLI configuration options.
type Config struct {
	ProjectDir   string `koanf:"project_dir"`
	TargetDir    string `koanf:"target_dir"`
	OutputFormat string `koanf:"output"`
	Verbose      bool   `koanf:"verbose"`

	// Severity is the level recorded on results: warning or error.
	Severity string `koanf:"severity"`

	// NoFail keeps the exit code zero even when violations are found.
	NoFail bool `koanf:"no_fail"`

	// Format selects the results file format written after a run
	// (text, json, jsonl, github-annotations). Empty writes nothing.
	Format string `koanf:"format"`

	// ResultsPath is where formatted results are written. Defaults to
	// the target directory.
	ResultsPath string `koanf:"results_path"`

	// Contracts maps resource keys (models, sources, macros) to their
	// contract blocks. The runner decodes the blocks.
	Contracts map[string]any `koanf:"contracts"`

	// Generators maps resource keys (models, sources) to property-file
	// generator settings.
	Generators map[string]*GeneratorConfig `koanf:"generators"`

	Target *TargetConfig `koanf:"target"`

	// ProjectRoot is the resolved absolute project directory.
	ProjectRoot string `koanf:"-"`

	// TargetPath is the resolved absolute artifact directory.
	TargetPath string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultTargetDir = "target"
	DefaultSeverity  = "warning"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=plain
)
