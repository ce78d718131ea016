// Package backup archives the corpus database and config into a .tar.gz
// file and restores them again.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Create snapshots db with VACUUM INTO and writes it, the config file and a
// manifest to a .tar.gz archive. db stays usable throughout.
func Create(ctx context.Context, db *sql.DB, opts Options) (*Result, error) {
	start := time.Now()

	tmpDir, err := os.MkdirTemp("", "chunkchain-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshotPath := filepath.Join(tmpDir, "chunkchain.db")
	dbInfo, err := snapshotDatabase(ctx, db, snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}

	components := ComponentDatabase
	paths := OriginalPaths{}
	if opts.DatabasePath != "" {
		if paths.Database, err = filepath.Abs(opts.DatabasePath); err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}

	var warnings []string
	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			components |= ComponentConfig
			if paths.Config, err = filepath.Abs(opts.ConfigPath); err != nil {
				return nil, fmt.Errorf("resolve config path: %w", err)
			}
		} else {
			warnings = append(warnings, fmt.Sprintf("config file not found: %s", opts.ConfigPath))
		}
	}

	outPath := opts.OutputPath
	if outPath == "" {
		outPath = fmt.Sprintf("chunkchain-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
	}
	if outPath, err = filepath.Abs(outPath); err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	result := &Result{
		ArchivePath: outPath,
		Components:  components,
		Warnings:    warnings,
	}

	manifestData, err := marshalManifest(NewManifest(components, paths, dbInfo))
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if err := writeArchive(outPath, func(tw *tar.Writer) error {
		if err := writeTarBytes(tw, manifestEntry, manifestData); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		result.FileCount++

		if err := writeTarFile(tw, databaseEntry, snapshotPath); err != nil {
			return fmt.Errorf("write database: %w", err)
		}
		result.FileCount++

		if components.Has(ComponentConfig) {
			if err := writeTarFile(tw, configPrefix+filepath.Base(paths.Config), paths.Config); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			result.FileCount++
		}
		return nil
	}); err != nil {
		os.Remove(outPath)
		return nil, err
	}

	if stat, err := os.Stat(outPath); err == nil {
		result.TotalSize = stat.Size()
	}
	result.Duration = time.Since(start)
	return result, nil
}

// writeArchive creates path and hands fn a tar writer over gzip. Every
// writer is closed and checked before returning.
func writeArchive(path string, fn func(tw *tar.Writer) error) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	if err := fn(tw); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	return out.Close()
}

// snapshotDatabase writes a clean, WAL-free copy of db to dstPath.
func snapshotDatabase(ctx context.Context, db *sql.DB, dstPath string) (DatabaseInfo, error) {
	info := DatabaseInfo{}

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'", &info.TableCount},
		{"SELECT COUNT(*) FROM text_samples", &info.Samples},
		{"SELECT COUNT(*) FROM tokens", &info.Tokens},
	}
	for _, q := range queries {
		if err := db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return info, fmt.Errorf("read database info: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(dstPath, "'", "''"))); err != nil {
		return info, fmt.Errorf("vacuum into snapshot: %w", err)
	}

	stat, err := os.Stat(dstPath)
	if err != nil {
		return info, fmt.Errorf("stat snapshot: %w", err)
	}
	info.Size = stat.Size()
	return info, nil
}

// writeTarBytes writes in-memory data as a tar entry.
func writeTarBytes(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// writeTarFile adds a file from disk to the tar archive.
func writeTarFile(tw *tar.Writer, archivePath, diskPath string) error {
	fi, err := os.Stat(diskPath)
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:    archivePath,
		Mode:    int64(fi.Mode().Perm()),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	f, err := os.Open(diskPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// openArchive returns a tar reader over the gzip archive at path. close
// releases both the gzip reader and the file.
func openArchive(path string) (tr *tar.Reader, close func(), err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	gr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open gzip: %w", err)
	}
	return tar.NewReader(gr), func() {
		gr.Close()
		f.Close()
	}, nil
}
