package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

// LoadArtifacts reads manifest.json and catalog.json from a dbt target
// directory. The manifest is required. The catalog is optional: dbt
// only writes it after `dbt docs generate`, so a missing file yields a
// nil catalog and terms that need one fail fast during validation.
func LoadArtifacts(targetDir string, logger *slog.Logger) (*artifact.Manifest, *artifact.Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	manifest, err := artifact.LoadManifestFromTarget(targetDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load manifest: %w", err)
	}

	catalog, err := artifact.LoadCatalogFromTarget(targetDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("load catalog: %w", err)
		}
		logger.Debug("no catalog artifact found", "target_dir", targetDir)
		catalog = nil
	}

	return manifest, catalog, nil
}
