package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func encodeStatRecord(fs uint64, e *StatEntry) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, fs)
	binary.Write(buf, binary.LittleEndian, e.ExecsWith)
	binary.Write(buf, binary.LittleEndian, e.ExecsWithout)
	binary.Write(buf, binary.LittleEndian, e.Slot)
	binary.Write(buf, binary.LittleEndian, e.SlotWith)
	binary.Write(buf, binary.LittleEndian, e.ExecTime)
	binary.Write(buf, binary.LittleEndian, e.PlanTime)
	binary.Write(buf, binary.LittleEndian, e.EstError)
	binary.Write(buf, binary.LittleEndian, e.ExecTimeAQO)
	binary.Write(buf, binary.LittleEndian, e.PlanTimeAQO)
	binary.Write(buf, binary.LittleEndian, e.EstErrorAQO)
	return buf.Bytes()
}

func decodeStatRecord(rec []byte) (uint64, *StatEntry, error) {
	r := bytes.NewReader(rec)
	var fs uint64
	e := &StatEntry{}
	fields := []any{
		&fs, &e.ExecsWith, &e.ExecsWithout, &e.Slot, &e.SlotWith,
		&e.ExecTime, &e.PlanTime, &e.EstError, &e.ExecTimeAQO, &e.PlanTimeAQO, &e.EstErrorAQO,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return 0, nil, fmt.Errorf("decode stat record: %w", err)
		}
	}
	return fs, e, nil
}

func (s *Store) flushStat() error {
	s.statMu.RLock()
	records := make([][]byte, 0, len(s.stat))
	for fs, e := range s.stat {
		records = append(records, encodeStatRecord(fs, e))
	}
	s.statMu.RUnlock()
	return s.backend.WriteTable(tableNameStat, encodeRecords(records))
}

func (s *Store) loadStat() error {
	framed, err := s.backend.ReadTable(tableNameStat)
	if err != nil {
		return err
	}
	records, err := decodeRecords(framed)
	if err != nil {
		return err
	}

	table := make(map[uint64]*StatEntry, len(records))
	for _, rec := range records {
		fs, e, err := decodeStatRecord(rec)
		if err != nil {
			return err
		}
		table[fs] = e
	}

	s.statMu.Lock()
	s.stat = table
	s.statMu.Unlock()
	return nil
}
