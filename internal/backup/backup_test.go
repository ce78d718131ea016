package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"chunkchain/internal/database"
	"chunkchain/internal/registry"
	"chunkchain/internal/samples"
)

// seedDatabase creates a database holding one sample and three tokens.
func seedDatabase(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if _, err := samples.NewStore(db).Create(ctx, "greeting", "hello there"); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	if _, err := registry.New(registry.NewSQLiteStore(db)).Intern(ctx, []string{"hello", " ", "there"}); err != nil {
		t.Fatalf("intern tokens: %v", err)
	}
	return db
}

func createTestBackup(t *testing.T) (dir, archive string) {
	t.Helper()
	dir = t.TempDir()
	dbPath := filepath.Join(dir, "chunkchain.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("generation:\n  seed: 7\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	db := seedDatabase(t, dbPath)
	archive = filepath.Join(dir, "out.tar.gz")
	result, err := Create(context.Background(), db, Options{
		ConfigPath:   cfgPath,
		DatabasePath: dbPath,
		OutputPath:   archive,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.FileCount != 3 {
		t.Errorf("expected 3 files, got %d", result.FileCount)
	}
	if !result.Components.Has(ComponentConfig) || !result.Components.Has(ComponentDatabase) {
		t.Errorf("expected database and config components, got %s", result.Components)
	}
	if result.TotalSize <= 0 {
		t.Error("expected non-empty archive")
	}
	return dir, archive
}

func TestCreateAndList(t *testing.T) {
	_, archive := createTestBackup(t)

	list, err := List(archive)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := list.Manifest.Validate(); err != nil {
		t.Fatalf("manifest invalid: %v", err)
	}
	if list.Manifest.Database.Samples != 1 {
		t.Errorf("expected 1 sample, got %d", list.Manifest.Database.Samples)
	}
	if list.Manifest.Database.Tokens != 3 {
		t.Errorf("expected 3 tokens, got %d", list.Manifest.Database.Tokens)
	}

	paths := map[string]bool{}
	for _, f := range list.Files {
		paths[f.Path] = true
	}
	for _, want := range []string{manifestEntry, databaseEntry, "config/config.yaml"} {
		if !paths[want] {
			t.Errorf("archive missing %s", want)
		}
	}
}

func TestCreate_MissingConfig(t *testing.T) {
	dir := t.TempDir()
	db := seedDatabase(t, filepath.Join(dir, "chunkchain.db"))

	result, err := Create(context.Background(), db, Options{
		ConfigPath: filepath.Join(dir, "absent.yaml"),
		OutputPath: filepath.Join(dir, "out.tar.gz"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Components.Has(ComponentConfig) {
		t.Error("config component should be absent")
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", result.Warnings)
	}
	if result.FileCount != 2 {
		t.Errorf("expected 2 files, got %d", result.FileCount)
	}
}

func TestRestore(t *testing.T) {
	_, archive := createTestBackup(t)

	target := t.TempDir()
	dbPath := filepath.Join(target, "data", "restored.db")
	cfgPath := filepath.Join(target, "config.yaml")

	result, err := Restore(RestoreOptions{
		BackupPath:   archive,
		ConfigPath:   cfgPath,
		DatabasePath: dbPath,
	})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.FilesRestored != 2 {
		t.Errorf("expected 2 files restored, got %d", result.FilesRestored)
	}

	cfg, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("read restored config: %v", err)
	}
	if string(cfg) != "generation:\n  seed: 7\n" {
		t.Errorf("unexpected config contents %q", cfg)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open restored database: %v", err)
	}
	defer db.Close()

	list, err := samples.NewStore(db).List(context.Background())
	if err != nil {
		t.Fatalf("list samples: %v", err)
	}
	if len(list) != 1 || list[0].Text != "hello there" {
		t.Errorf("unexpected restored samples %+v", list)
	}
}

func TestRestore_RemovesWAL(t *testing.T) {
	_, archive := createTestBackup(t)

	target := t.TempDir()
	dbPath := filepath.Join(target, "restored.db")
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.WriteFile(dbPath+suffix, []byte("stale"), 0600); err != nil {
			t.Fatalf("write %s: %v", suffix, err)
		}
	}

	if _, err := Restore(RestoreOptions{BackupPath: archive, DatabasePath: dbPath, SkipConfig: true}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if _, err := os.Stat(dbPath + suffix); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", suffix)
		}
	}
}

func TestRestore_DryRun(t *testing.T) {
	_, archive := createTestBackup(t)

	target := t.TempDir()
	dbPath := filepath.Join(target, "restored.db")

	result, err := Restore(RestoreOptions{
		BackupPath:   archive,
		DryRun:       true,
		SkipConfig:   true,
		DatabasePath: dbPath,
	})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.FilesRestored != 0 {
		t.Errorf("dry run restored %d files", result.FilesRestored)
	}
	if result.FilesSkipped != 1 {
		t.Errorf("expected config to be skipped, got %d skipped", result.FilesSkipped)
	}
	if len(result.Planned) != 1 || result.Planned[0].Destination != dbPath {
		t.Errorf("unexpected plan %+v", result.Planned)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("dry run wrote the database")
	}
}

func TestRestore_InvalidManifest(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "bad.tar.gz")
	err := writeArchive(archive, func(tw *tar.Writer) error {
		return writeTarBytes(tw, manifestEntry, []byte(`{"version":"1"}`))
	})
	if err != nil {
		t.Fatalf("write archive: %v", err)
	}

	if _, err := Restore(RestoreOptions{BackupPath: archive, DryRun: true}); err == nil {
		t.Error("expected error for manifest without timestamp")
	}
}

func TestList_NoManifest(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "empty.tar.gz")
	f, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	if err := writeTarBytes(tw, "stray.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gw.Close()
	f.Close()

	if _, err := List(archive); err == nil {
		t.Error("expected error for archive without manifest")
	}
}

func TestComponentsString(t *testing.T) {
	tests := []struct {
		c    Components
		want string
	}{
		{0, "none"},
		{ComponentDatabase, "database"},
		{ComponentDatabase | ComponentConfig, "database, config"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
