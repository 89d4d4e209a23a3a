package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func encodeQTextRecord(fs uint64, text string) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, fs)
	buf.WriteString(text)
	buf.WriteByte(0)
	return buf.Bytes()
}

func decodeQTextRecord(rec []byte) (uint64, string, error) {
	if len(rec) < 9 {
		return 0, "", fmt.Errorf("qtext record too short")
	}
	fs := binary.LittleEndian.Uint64(rec[:8])
	body := rec[8:]
	nul := bytes.IndexByte(body, 0)
	if nul < 0 {
		return 0, "", fmt.Errorf("qtext record missing NUL terminator")
	}
	return fs, string(body[:nul]), nil
}

func (s *Store) flushQText() error {
	s.qtextMu.RLock()
	records := make([][]byte, 0, len(s.qtext))
	for fs, handle := range s.qtext {
		v, ok := s.heap.Get(handle)
		if !ok {
			continue
		}
		records = append(records, encodeQTextRecord(fs, v.(string)))
	}
	s.qtextMu.RUnlock()
	return s.backend.WriteTable(tableNameQText, encodeRecords(records))
}

func (s *Store) loadQText() error {
	framed, err := s.backend.ReadTable(tableNameQText)
	if err != nil {
		return err
	}
	records, err := decodeRecords(framed)
	if err != nil {
		return err
	}

	table := make(map[uint64]Handle, len(records))
	for _, rec := range records {
		fs, text, err := decodeQTextRecord(rec)
		if err != nil {
			return err
		}
		handle, err := s.heap.Alloc(int64(len(text)), text)
		if err != nil {
			return err
		}
		table[fs] = handle
	}

	s.qtextMu.Lock()
	s.qtext = table
	s.qtextMu.Unlock()
	return nil
}
