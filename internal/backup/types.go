package backup

import "time"

// Components is a bitmask of what a backup holds.
type Components uint32

const (
	ComponentDatabase Components = 1 << iota
	ComponentConfig
)

func (c Components) Has(flag Components) bool {
	return c&flag != 0
}

func (c Components) String() string {
	var parts []string
	if c.Has(ComponentDatabase) {
		parts = append(parts, "database")
	}
	if c.Has(ComponentConfig) {
		parts = append(parts, "config")
	}
	if len(parts) == 0 {
		return "none"
	}
	result := parts[0]
	for _, p := range parts[1:] {
		result += ", " + p
	}
	return result
}

// Manifest describes the contents and origin of a backup archive.
type Manifest struct {
	Version       string        `json:"version"`
	Timestamp     time.Time     `json:"timestamp"`
	AppVersion    string        `json:"app_version"`
	Components    Components    `json:"components"`
	OriginalPaths OriginalPaths `json:"original_paths"`
	Database      DatabaseInfo  `json:"database"`
}

// OriginalPaths records where files were located on the source system.
type OriginalPaths struct {
	Config   string `json:"config,omitempty"`
	Database string `json:"database"`
}

// DatabaseInfo records what the database snapshot contains.
type DatabaseInfo struct {
	Size       int64 `json:"size"`
	TableCount int   `json:"table_count"`
	Samples    int   `json:"samples"`
	Tokens     int   `json:"tokens"`
}

// Options configures backup creation.
type Options struct {
	// ConfigPath is included when the file exists.
	ConfigPath   string
	DatabasePath string
	// OutputPath defaults to chunkchain-backup-{timestamp}.tar.gz in the
	// working directory.
	OutputPath string
}

// RestoreOptions configures backup restoration. Empty paths fall back to the
// locations recorded in the manifest.
type RestoreOptions struct {
	BackupPath   string
	DryRun       bool
	SkipConfig   bool
	ConfigPath   string
	DatabasePath string
}

// Result is returned by Create.
type Result struct {
	ArchivePath string        `json:"archive_path"`
	FileCount   int           `json:"file_count"`
	TotalSize   int64         `json:"total_size"`
	Components  Components    `json:"components"`
	Duration    time.Duration `json:"duration"`
	Warnings    []string      `json:"warnings,omitempty"`
}

// RestoreResult is returned by Restore. In a dry run Planned lists what
// would be written and nothing touches the disk.
type RestoreResult struct {
	Manifest      Manifest       `json:"manifest"`
	FilesRestored int            `json:"files_restored"`
	FilesSkipped  int            `json:"files_skipped"`
	Planned       []PlannedWrite `json:"planned,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// PlannedWrite maps an archive entry to its destination.
type PlannedWrite struct {
	Entry       string `json:"entry"`
	Destination string `json:"destination"`
}

// ListResult is returned by List.
type ListResult struct {
	Manifest Manifest    `json:"manifest"`
	Files    []FileEntry `json:"files"`
}

// FileEntry describes a single file in the backup archive.
type FileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Mode string `json:"mode"`
}
