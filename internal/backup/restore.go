package backup

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Restore extracts an archive over the database and config. The database
// must not be open while this runs. Its WAL and shared-memory files are
// removed so SQLite does not replay stale pages over the restored file.
func Restore(opts RestoreOptions) (*RestoreResult, error) {
	list, err := List(opts.BackupPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	manifest := &list.Manifest
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backup: %w", err)
	}

	result := &RestoreResult{Manifest: *manifest}

	tr, closeArchive, err := openArchive(opts.BackupPath)
	if err != nil {
		return nil, err
	}
	defer closeArchive()

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}

		dest, skip := destination(hdr.Name, manifest, opts)
		if skip {
			result.FilesSkipped++
			continue
		}
		if dest == "" {
			continue
		}

		if opts.DryRun {
			result.Planned = append(result.Planned, PlannedWrite{Entry: hdr.Name, Destination: dest})
			continue
		}

		if err := extractFile(tr, hdr, dest); err != nil {
			return result, fmt.Errorf("restore %s: %w", hdr.Name, err)
		}
		if hdr.Name == databaseEntry {
			for _, suffix := range []string{"-wal", "-shm"} {
				if err := os.Remove(dest + suffix); err != nil && !os.IsNotExist(err) {
					result.Warnings = append(result.Warnings, fmt.Sprintf("failed to remove %s%s: %v", dest, suffix, err))
				}
			}
		}
		result.FilesRestored++
	}

	return result, nil
}

// destination maps an archive entry to its on-disk path. Entries outside the
// known layout are ignored (empty path); skip reports entries left out by
// the options.
func destination(name string, m *Manifest, opts RestoreOptions) (path string, skip bool) {
	switch {
	case name == databaseEntry:
		if opts.DatabasePath != "" {
			return opts.DatabasePath, false
		}
		return m.OriginalPaths.Database, false

	case strings.HasPrefix(name, configPrefix):
		if opts.SkipConfig {
			return "", true
		}
		if strings.Contains(strings.TrimPrefix(name, configPrefix), "/") {
			return "", false
		}
		if opts.ConfigPath != "" {
			return opts.ConfigPath, false
		}
		return m.OriginalPaths.Config, false

	default:
		return "", false
	}
}

// extractFile writes a tar entry to disk, creating parent directories as needed.
func extractFile(tr *tar.Reader, hdr *tar.Header, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		mode = 0644
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, tr); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
