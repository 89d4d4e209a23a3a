package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func encodeQueriesRecord(fsKey uint64, p Preferences) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, fsKey)
	binary.Write(buf, binary.LittleEndian, p.TargetFS)
	binary.Write(buf, binary.LittleEndian, p.Learn)
	binary.Write(buf, binary.LittleEndian, p.Use)
	binary.Write(buf, binary.LittleEndian, p.AutoTune)
	return buf.Bytes()
}

func decodeQueriesRecord(rec []byte) (uint64, Preferences, error) {
	r := bytes.NewReader(rec)
	var fsKey uint64
	p := Preferences{}
	fields := []any{&fsKey, &p.TargetFS, &p.Learn, &p.Use, &p.AutoTune}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return 0, Preferences{}, fmt.Errorf("decode queries record: %w", err)
		}
	}
	return fsKey, p, nil
}

func (s *Store) flushQueries() error {
	s.queriesMu.RLock()
	records := make([][]byte, 0, len(s.queries))
	for fs, p := range s.queries {
		records = append(records, encodeQueriesRecord(fs, p))
	}
	s.queriesMu.RUnlock()
	return s.backend.WriteTable(tableNameQueries, encodeRecords(records))
}

func (s *Store) loadQueries() error {
	framed, err := s.backend.ReadTable(tableNameQueries)
	if err != nil {
		return err
	}
	records, err := decodeRecords(framed)
	if err != nil {
		return err
	}

	table := make(map[uint64]Preferences, len(records))
	for _, rec := range records {
		fs, p, err := decodeQueriesRecord(rec)
		if err != nil {
			return err
		}
		table[fs] = p
	}

	s.queriesMu.Lock()
	s.queries = table
	s.queriesMu.Unlock()
	return nil
}
