package backup

import (
	"fmt"
	"io"
)

// List reads the manifest and file table of an archive.
func List(path string) (*ListResult, error) {
	tr, closeArchive, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer closeArchive()

	result := &ListResult{}
	var manifestFound bool

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}

		if hdr.Name == manifestEntry {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("read manifest: %w", err)
			}
			m, err := unmarshalManifest(data)
			if err != nil {
				return nil, err
			}
			result.Manifest = *m
			manifestFound = true
		}

		result.Files = append(result.Files, FileEntry{
			Path: hdr.Name,
			Size: hdr.Size,
			Mode: fmt.Sprintf("%04o", hdr.Mode),
		})
	}

	if !manifestFound {
		return nil, fmt.Errorf("%s not found in archive", manifestEntry)
	}
	return result, nil
}

// FormatBytes renders a byte count for humans.
func FormatBytes(b int64) string {
	switch {
	case b >= 1024*1024*1024:
		return fmt.Sprintf("%.1f GB", float64(b)/(1024*1024*1024))
	case b >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(b)/(1024*1024))
	case b >= 1024:
		return fmt.Sprintf("%.1f KB", float64(b)/1024)
	default:
		return fmt.Sprintf("%d B", b)
	}
}
