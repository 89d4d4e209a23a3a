package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// SnapshotMagic and SnapshotVersion frame every table's snapshot file
// (§6 "Snapshot files").
const (
	SnapshotMagic   uint32 = 0x0759BD85
	SnapshotVersion uint32 = 1
)

const (
	tableNameStat    = "stat"
	tableNameQText   = "qtext"
	tableNameData    = "data"
	tableNameQueries = "queries"
)

// SnapshotBackend persists one table's records as an ordered list of
// opaque byte blobs, keyed by table name. A backend need not understand
// the framing inside each record; it's free to frame the whole table
// itself (e.g. badger stores the already-framed bytes under one key).
type SnapshotBackend interface {
	WriteTable(table string, framed []byte) error
	ReadTable(table string) ([]byte, error)
}

// encodeRecords frames a table's records per §6:
//   u32 magic | u32 major_version | i64 record_count
//   ( u64 record_size | record_bytes[record_size] )*
func encodeRecords(records [][]byte) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, SnapshotMagic)
	binary.Write(buf, binary.LittleEndian, SnapshotVersion)
	binary.Write(buf, binary.LittleEndian, int64(len(records)))
	for _, r := range records {
		binary.Write(buf, binary.LittleEndian, uint64(len(r)))
		buf.Write(r)
	}
	return buf.Bytes()
}

// decodeRecords reverses encodeRecords. On any framing error it returns
// an error rather than a partial result; the caller is responsible for
// logging and starting empty, per §7's load-failure policy.
func decodeRecords(framed []byte) ([][]byte, error) {
	r := bytes.NewReader(framed)

	var magic, version uint32
	var count int64
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != SnapshotMagic {
		return nil, fmt.Errorf("bad magic %#x", magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported version %d", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read record count: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("negative record count %d", count)
	}

	records := make([][]byte, 0, count)
	for i := int64(0); i < count; i++ {
		var size uint64
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("read record %d size: %w", i, err)
		}
		rec := make([]byte, size)
		if _, err := io.ReadFull(r, rec); err != nil {
			return nil, fmt.Errorf("read record %d body: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Flush writes every dirty table to backend, skipping tables with no
// pending changes (§4.D "Flush is conditional on the table's dirty
// flag"). A per-table write failure is logged and does not prevent the
// remaining tables from flushing.
func (s *Store) Flush() {
	if s.backend == nil {
		return
	}
	debugf("aqo: flushing with %d backend(s) attached\n", s.AttachedCount())

	if s.isDirty(tableStat) {
		if err := s.flushStat(); err != nil {
			debugf("aqo: flush stat failed: %v\n", err)
		} else {
			s.clearDirty(tableStat)
		}
	}
	if s.isDirty(tableQText) {
		if err := s.flushQText(); err != nil {
			debugf("aqo: flush qtext failed: %v\n", err)
		} else {
			s.clearDirty(tableQText)
		}
	}
	if s.isDirty(tableData) {
		if err := s.flushData(); err != nil {
			debugf("aqo: flush data failed: %v\n", err)
		} else {
			s.clearDirty(tableData)
		}
	}
	if s.isDirty(tableQueries) {
		if err := s.flushQueries(); err != nil {
			debugf("aqo: flush queries failed: %v\n", err)
		} else {
			s.clearDirty(tableQueries)
		}
	}
}

// Load reads all four tables from backend, abandoning (and starting
// empty) any table whose snapshot is missing, corrupt, truncated, or at
// the wrong version (§7 "Snapshot load failure").
func (s *Store) Load() {
	if s.backend == nil {
		return
	}
	if err := s.loadStat(); err != nil {
		debugln("aqo: load stat:", err)
	}
	if err := s.loadQText(); err != nil {
		debugln("aqo: load qtext:", err)
	}
	if err := s.loadData(); err != nil {
		debugln("aqo: load data:", err)
	}
	if err := s.loadQueries(); err != nil {
		debugln("aqo: load queries:", err)
	}
}
