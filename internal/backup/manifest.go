package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"chunkchain/internal/version"
)

const ManifestVersion = "1"

const (
	manifestEntry = "manifest.json"
	databaseEntry = "database/chunkchain.db"
	configPrefix  = "config/"
)

// NewManifest builds a manifest stamped with the current time and version.
func NewManifest(components Components, paths OriginalPaths, dbInfo DatabaseInfo) *Manifest {
	return &Manifest{
		Version:       ManifestVersion,
		Timestamp:     time.Now().UTC(),
		AppVersion:    version.Full(),
		Components:    components,
		OriginalPaths: paths,
		Database:      dbInfo,
	}
}

// Validate checks that a manifest is usable for restore.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("manifest missing version")
	}
	if m.Version != ManifestVersion {
		return fmt.Errorf("unsupported manifest version %q (expected %q)", m.Version, ManifestVersion)
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("manifest missing timestamp")
	}
	if !m.Components.Has(ComponentDatabase) {
		return fmt.Errorf("manifest has no database")
	}
	return nil
}

func marshalManifest(m *Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func unmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}
	return &m, nil
}
