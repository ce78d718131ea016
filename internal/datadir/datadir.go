// Package datadir resolves where chunkchain keeps its config and database.
package datadir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the data directory name under $HOME.
	DefaultDirName = ".chunkchain"

	// EnvVar overrides the data directory unless --data-dir is given.
	EnvVar = "CHUNKCHAIN_DATA_DIR"

	configSubdir   = "config"
	databaseSubdir = "data"
)

// Source names where a data directory came from.
type Source string

const (
	SourceFlag    Source = "flag"
	SourceEnv     Source = "env"
	SourceConfig  Source = "config"
	SourceDefault Source = "default"
)

// DataDir is a resolved data directory:
//
//	{root}/config/   config files
//	{root}/data/     SQLite database
//	{root}/.env      optional environment file
type DataDir struct {
	root   string
	source Source
}

// New resolves the data directory. The first non-empty of flagValue,
// $CHUNKCHAIN_DATA_DIR and configValue wins; otherwise ~/.chunkchain is
// used. Nothing is created until EnsureDirs.
func New(flagValue, configValue string) (*DataDir, error) {
	candidates := []struct {
		dir    string
		source Source
	}{
		{flagValue, SourceFlag},
		{os.Getenv(EnvVar), SourceEnv},
		{configValue, SourceConfig},
	}
	for _, c := range candidates {
		if c.dir != "" {
			return &DataDir{root: c.dir, source: c.source}, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}
	return &DataDir{root: filepath.Join(home, DefaultDirName), source: SourceDefault}, nil
}

func (d *DataDir) Root() string { return d.root }

// Source reports which input chose the root.
func (d *DataDir) Source() Source { return d.source }

// Overridable reports whether a config file's data_dir may still replace
// this directory.
func (d *DataDir) Overridable() bool {
	return d.source == SourceDefault
}

func (d *DataDir) ConfigDir() string { return filepath.Join(d.root, configSubdir) }

func (d *DataDir) DatabaseDir() string { return filepath.Join(d.root, databaseSubdir) }

// ConfigFilePath returns {root}/config/{filename}.
func (d *DataDir) ConfigFilePath(filename string) string {
	return filepath.Join(d.ConfigDir(), filename)
}

// DatabaseFilePath returns {root}/data/{filename}.
func (d *DataDir) DatabaseFilePath(filename string) string {
	return filepath.Join(d.DatabaseDir(), filename)
}

// EnsureDirs creates the root and its subdirectories with 0700 permissions.
func (d *DataDir) EnsureDirs() error {
	for _, dir := range []string{d.root, d.ConfigDir(), d.DatabaseDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
