package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend is the default SnapshotBackend: one flat file per table
// under Dir, written to a ".tmp" sibling and atomically renamed into
// place (§4.D "Flush writes to <file>.tmp then atomically renames").
type FileBackend struct {
	Dir string
}

// NewFileBackend creates a file-based backend rooted at dir, creating the
// directory if it doesn't already exist.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileBackend{Dir: dir}, nil
}

func (b *FileBackend) path(table string) string {
	return filepath.Join(b.Dir, table+".aqs")
}

// WriteTable writes framed to a temp file and renames it over the final
// path. On any failure the temp file is removed and the prior snapshot,
// if any, is left intact (§7 "Snapshot write failure").
func (b *FileBackend) WriteTable(table string, framed []byte) error {
	final := b.path(table)
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, framed, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write temp snapshot for %s: %w", table, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot for %s: %w", table, err)
	}
	return nil
}

// ReadTable reads the table's snapshot file in full.
func (b *FileBackend) ReadTable(table string) ([]byte, error) {
	data, err := os.ReadFile(b.path(table))
	if err != nil {
		return nil, fmt.Errorf("read snapshot for %s: %w", table, err)
	}
	return data, nil
}
