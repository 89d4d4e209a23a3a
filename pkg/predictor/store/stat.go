package store

import "fmt"

// ErrTableFull is returned when a table is at its configured cap and a
// new key would have to be inserted (§7 "Store full").
var ErrTableFull = fmt.Errorf("aqo: table at capacity")

// GetStat returns a copy of the stat entry for fs, if present.
func (s *Store) GetStat(fs uint64) (StatEntry, bool) {
	s.statMu.RLock()
	defer s.statMu.RUnlock()
	e, ok := s.stat[fs]
	if !ok {
		return StatEntry{}, false
	}
	return *e, true
}

// RecordExecution appends one (planTime, execTime, estError) sample to the
// "with" or "without" ring of fs's stat entry, creating the entry if
// absent (subject to fs_max_items). Overflow is rejected with ErrTableFull
// per §4.D's overflow policy; the rejection is logged only when debug
// logging is on.
func (s *Store) RecordExecution(fs uint64, withPredictor bool, planTime, execTime, estError float64) error {
	s.statMu.Lock()
	defer s.statMu.Unlock()

	e, ok := s.stat[fs]
	if !ok {
		if len(s.stat) >= s.cfg.FSMaxItems {
			debugf("aqo: stat table full (%d items), rejecting fs=%d\n", len(s.stat), fs)
			return ErrTableFull
		}
		e = &StatEntry{}
		s.stat[fs] = e
	}

	if withPredictor {
		slot := e.SlotWith % StatSampleSize
		e.PlanTimeAQO[slot] = planTime
		e.ExecTimeAQO[slot] = execTime
		e.EstErrorAQO[slot] = estError
		e.SlotWith++
		e.ExecsWith++
	} else {
		slot := e.Slot % StatSampleSize
		e.PlanTime[slot] = planTime
		e.ExecTime[slot] = execTime
		e.EstError[slot] = estError
		e.Slot++
		e.ExecsWithout++
	}

	s.markDirty(tableStat)
	return nil
}

// StatCount returns the number of classes currently tracked, for tests
// and diagnostics.
func (s *Store) StatCount() int {
	s.statMu.RLock()
	defer s.statMu.RUnlock()
	return len(s.stat)
}

// AllStats returns a copy of every tracked class's stat entry, keyed by
// fs, for operational reporting (the report subcommand's workbook export).
func (s *Store) AllStats() map[uint64]StatEntry {
	s.statMu.RLock()
	defer s.statMu.RUnlock()
	out := make(map[uint64]StatEntry, len(s.stat))
	for fs, e := range s.stat {
		out[fs] = *e
	}
	return out
}
