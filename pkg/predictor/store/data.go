package store

import (
	"fmt"

	"github.com/kestrel-db/aqo-predictor/pkg/predictor/knn"
)

// ErrDimensionMismatch is returned when a write to an existing data entry
// carries a different column count — a possible hash collision, per §4.D's
// "collision?" state machine note.
var ErrDimensionMismatch = fmt.Errorf("aqo: data entry dimension mismatch, possible collision")

// GetData returns the data-table entry for (fs,fss), if present. The
// returned *DataValue is owned by the store; callers must hold the
// key's logical lock (via WithKeyLock) before mutating its Matrix.
func (s *Store) GetData(fs uint64, fss uint32) (*DataValue, bool) {
	s.dataMu.RLock()
	handle, ok := s.data[dataKey{FS: fs, FSS: fss}]
	s.dataMu.RUnlock()
	if !ok {
		return nil, false
	}
	v, ok := s.heap.Get(handle)
	if !ok {
		return nil, false
	}
	return v.(*DataValue), true
}

// WithKeyLock runs fn while holding the per-(fs,fss) logical lock, as
// required around any read-then-write sequence against the data table
// (§4.D, §5 "per-(fs,fss) logical lock").
func (s *Store) WithKeyLock(fs uint64, fss uint32, fn func()) {
	unlock := s.lockKey(fs, fss)
	defer unlock()
	fn()
}

// Learn folds one (features, target, rfactor) sample into the (fs,fss)
// matrix, creating the entry if absent (subject to fss_max_items),
// following the data-entry state machine of §4.D. Callers must already
// hold the (fs,fss) logical lock (see WithKeyLock); Learn itself only
// takes the table's own lock for the map lookup/insert.
func (s *Store) Learn(fs uint64, fss uint32, cols int, features []float64, target, rfactor float64, k int, reloids []uint64, warn func(string)) error {
	key := dataKey{FS: fs, FSS: fss}

	s.dataMu.RLock()
	handle, exists := s.data[key]
	s.dataMu.RUnlock()

	if exists {
		v, ok := s.heap.Get(handle)
		if !ok {
			return fmt.Errorf("aqo: dangling data handle for fs=%d fss=%d", fs, fss)
		}
		dv := v.(*DataValue)
		if dv.Cols != cols {
			debugf("aqo: dimension mismatch for fs=%d fss=%d: have %d, got %d\n", fs, fss, dv.Cols, cols)
			return ErrDimensionMismatch
		}
		knn.Learn(dv.Matrix, features, target, rfactor, k, warn)
		s.markDirty(tableData)
		return nil
	}

	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	// Re-check under the write lock: another goroutine may have inserted
	// while we only held the read lock above.
	if handle, ok := s.data[key]; ok {
		v, _ := s.heap.Get(handle)
		dv := v.(*DataValue)
		if dv.Cols != cols {
			return ErrDimensionMismatch
		}
		knn.Learn(dv.Matrix, features, target, rfactor, k, warn)
		s.markDirty(tableData)
		return nil
	}

	if len(s.data) >= s.cfg.FSSMaxItems {
		debugf("aqo: data table full (%d items), rejecting fs=%d fss=%d\n", len(s.data), fs, fss)
		return ErrTableFull
	}

	m := knn.NewMatrix(cols)
	knn.Learn(m, features, target, rfactor, k, warn)
	dv := &DataValue{Cols: cols, Matrix: m, Reloids: reloids}

	handle, err := s.heap.Alloc(dataValueSize(dv), dv)
	if err != nil {
		debugf("aqo: data heap alloc failed for fs=%d fss=%d: %v\n", fs, fss, err)
		return err
	}
	s.data[key] = handle
	s.markDirty(tableData)
	return nil
}

// WideSearch iterates the data table for entries matching fss and cols
// (but any fs), merging their rows into a synthetic matrix so learning
// can be shared across neighbouring sub-spaces at startup when the exact
// (fs,fss) has no entry yet (§4.F step 4).
func (s *Store) WideSearch(fss uint32, cols int) *knn.Matrix {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()

	merged := knn.NewMatrix(cols)
	seen := make(map[*float64]bool)

	for key, handle := range s.data {
		if key.FSS != fss {
			continue
		}
		v, ok := s.heap.Get(handle)
		if !ok {
			continue
		}
		dv := v.(*DataValue)
		if dv.Cols != cols || dv.Matrix.Rows == 0 || len(dv.Matrix.Features[0]) == 0 {
			continue
		}

		// Dedupe whole matrices by the identity of their first row's
		// backing array, per "merging their rows (deduped by identity of
		// the first row)".
		ptr := &dv.Matrix.Features[0][0]
		if seen[ptr] {
			continue
		}
		seen[ptr] = true

		for i := 0; i < dv.Matrix.Rows && merged.Rows < knn.K; i++ {
			merged.Features[merged.Rows] = append([]float64(nil), dv.Matrix.Features[i]...)
			merged.Targets[merged.Rows] = dv.Matrix.Targets[i]
			merged.RFactors[merged.Rows] = dv.Matrix.RFactors[i]
			merged.Rows++
		}
	}
	return merged
}

// DataCount returns the number of (fs,fss) entries currently stored.
func (s *Store) DataCount() int {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return len(s.data)
}
