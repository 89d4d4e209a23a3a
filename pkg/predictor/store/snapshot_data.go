package store

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/kestrel-db/aqo-predictor/pkg/predictor/knn"
)

// encodeDataRecord packs one (fs,fss) entry per §6:
//   u64 fs, i32 fss, i32 cols, i32 rows, i32 nrels,
//   rows*cols f64 matrix, rows f64 targets, rows f64 rfactors, nrels u64 reloids.
func encodeDataRecord(key dataKey, v *DataValue) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, key.FS)
	binary.Write(buf, binary.LittleEndian, key.FSS)
	binary.Write(buf, binary.LittleEndian, int32(v.Cols))
	binary.Write(buf, binary.LittleEndian, int32(v.Matrix.Rows))
	binary.Write(buf, binary.LittleEndian, int32(len(v.Reloids)))

	for i := 0; i < v.Matrix.Rows; i++ {
		binary.Write(buf, binary.LittleEndian, v.Matrix.Features[i])
	}
	binary.Write(buf, binary.LittleEndian, v.Matrix.Targets[:v.Matrix.Rows])
	binary.Write(buf, binary.LittleEndian, v.Matrix.RFactors[:v.Matrix.Rows])
	binary.Write(buf, binary.LittleEndian, v.Reloids)
	return buf.Bytes()
}

func decodeDataRecord(rec []byte) (dataKey, *DataValue, error) {
	r := bytes.NewReader(rec)
	var key dataKey
	var cols, rows, nrels int32

	for _, f := range []any{&key.FS, &key.FSS, &cols, &rows, &nrels} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return dataKey{}, nil, fmt.Errorf("decode data header: %w", err)
		}
	}
	if rows < 0 || rows > knn.K || cols < 0 || nrels < 0 {
		return dataKey{}, nil, fmt.Errorf("decode data header: implausible dims rows=%d cols=%d nrels=%d", rows, cols, nrels)
	}

	m := knn.NewMatrix(int(cols))
	for i := int32(0); i < rows; i++ {
		row := make([]float64, cols)
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return dataKey{}, nil, fmt.Errorf("decode data matrix row %d: %w", i, err)
		}
		m.Features[i] = row
	}
	targets := make([]float64, rows)
	if err := binary.Read(r, binary.LittleEndian, targets); err != nil {
		return dataKey{}, nil, fmt.Errorf("decode data targets: %w", err)
	}
	rfactors := make([]float64, rows)
	if err := binary.Read(r, binary.LittleEndian, rfactors); err != nil {
		return dataKey{}, nil, fmt.Errorf("decode data rfactors: %w", err)
	}
	for i := int32(0); i < rows; i++ {
		m.Targets[i] = targets[i]
		m.RFactors[i] = rfactors[i]
	}
	m.Rows = int(rows)

	reloids := make([]uint64, nrels)
	if err := binary.Read(r, binary.LittleEndian, reloids); err != nil {
		return dataKey{}, nil, fmt.Errorf("decode data reloids: %w", err)
	}

	return key, &DataValue{Cols: int(cols), Matrix: m, Reloids: reloids}, nil
}

func (s *Store) flushData() error {
	s.dataMu.RLock()
	records := make([][]byte, 0, len(s.data))
	for key, handle := range s.data {
		v, ok := s.heap.Get(handle)
		if !ok {
			continue
		}
		records = append(records, encodeDataRecord(key, v.(*DataValue)))
	}
	s.dataMu.RUnlock()
	return s.backend.WriteTable(tableNameData, encodeRecords(records))
}

func (s *Store) loadData() error {
	framed, err := s.backend.ReadTable(tableNameData)
	if err != nil {
		return err
	}
	records, err := decodeRecords(framed)
	if err != nil {
		return err
	}

	table := make(map[dataKey]Handle, len(records))
	for _, rec := range records {
		key, v, err := decodeDataRecord(rec)
		if err != nil {
			return err
		}
		handle, err := s.heap.Alloc(dataValueSize(v), v)
		if err != nil {
			return err
		}
		table[key] = handle
	}

	s.dataMu.Lock()
	s.data = table
	s.dataMu.Unlock()
	return nil
}
