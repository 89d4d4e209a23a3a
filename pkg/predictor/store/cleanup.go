package store

// RelationLive reports whether a relation id still exists (its backing
// table hasn't been dropped). The cleanup scan calls it once per reloid
// referenced by a data entry.
type RelationLive func(reloid uint64) bool

// CleanupResult tallies what a cleanup pass removed.
type CleanupResult struct {
	ClassesRemoved int
	SubSpacesRemoved int
}

// Cleanup scans the data table for entries referencing relations that no
// longer exist, grounded on the original storage layer's aqo_cleanup: if
// any referenced relation of a class's sub-spaces is gone, that sub-space
// is junk; in forced (non-gentle) mode, one junk sub-space condemns every
// sub-space under the same fs, on the theory that a query class built
// over a dropped table has little chance of being useful again. A class
// (fs != 0) with no surviving sub-spaces is removed entirely: its stat,
// qtext, and preferences entries are dropped (§4.K).
func (s *Store) Cleanup(live RelationLive, forced bool) CleanupResult {
	var result CleanupResult

	byFS := s.dataKeysByFS()
	for fs, keys := range byFS {
		var junk, actual []dataKey
		for _, key := range keys {
			dv, ok := s.GetData(key.FS, key.FSS)
			if !ok {
				continue
			}
			if allLive(dv.Reloids, live) {
				actual = append(actual, key)
			} else {
				junk = append(junk, key)
			}
		}

		if forced && len(junk) > 0 {
			junk = append(junk, actual...)
			actual = nil
		}

		for _, key := range junk {
			if s.removeData(key) {
				result.SubSpacesRemoved++
			}
		}

		if fs != 0 && len(actual) == 0 && len(junk) > 0 {
			s.removeStat(fs)
			s.removeQueryText(fs)
			if s.removePreferences(fs) {
				result.ClassesRemoved++
			}
		}
	}

	s.Flush()
	return result
}

func allLive(reloids []uint64, live RelationLive) bool {
	for _, r := range reloids {
		if !live(r) {
			return false
		}
	}
	return true
}

func (s *Store) dataKeysByFS() map[uint64][]dataKey {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	out := make(map[uint64][]dataKey)
	for key := range s.data {
		out[key.FS] = append(out[key.FS], key)
	}
	return out
}

func (s *Store) removeData(key dataKey) bool {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	handle, ok := s.data[key]
	if !ok {
		return false
	}
	delete(s.data, key)
	s.heap.Free(handle)
	s.markDirty(tableData)
	return true
}

func (s *Store) removeStat(fs uint64) bool {
	s.statMu.Lock()
	defer s.statMu.Unlock()
	if _, ok := s.stat[fs]; !ok {
		return false
	}
	delete(s.stat, fs)
	s.markDirty(tableStat)
	return true
}

func (s *Store) removeQueryText(fs uint64) bool {
	s.qtextMu.Lock()
	defer s.qtextMu.Unlock()
	handle, ok := s.qtext[fs]
	if !ok {
		return false
	}
	delete(s.qtext, fs)
	s.heap.Free(handle)
	s.markDirty(tableQText)
	return true
}

func (s *Store) removePreferences(fs uint64) bool {
	s.queriesMu.Lock()
	defer s.queriesMu.Unlock()
	if _, ok := s.queries[fs]; !ok {
		return false
	}
	delete(s.queries, fs)
	s.markDirty(tableQueries)
	return true
}
