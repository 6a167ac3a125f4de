package config

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/dbtcontracts/pkg/contract"
)

// knownFormats are the results file formats the runner can write.
var knownFormats = map[string]bool{
	"text":               true,
	"txt":                true,
	"json":               true,
	"jsonl":              true,
	"github-annotations": true,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, ok := contract.ParseSeverity(c.Severity); !ok {
		return fmt.Errorf("unknown severity %q (choose warning or error)", c.Severity)
	}
	if c.Format != "" && !knownFormats[c.Format] {
		return fmt.Errorf("unknown results format %q (choose text, json, jsonl or github-annotations)", c.Format)
	}
	return nil
}

// ValidateProjectDir checks that the resolved project directory exists.
// Kept out of Validate so help commands work from anywhere.
func (c *Config) ValidateProjectDir() error {
	if _, err := os.Stat(c.ProjectRoot); os.IsNotExist(err) {
		return fmt.Errorf("project directory does not exist: %s\nHint: use --project-dir to point at your dbt project", c.ProjectRoot)
	}
	return nil
}
