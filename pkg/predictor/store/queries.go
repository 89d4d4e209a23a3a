package store

import "github.com/kestrel-db/aqo-predictor/pkg/config"

// GetPreferences returns the stored policy bits for fs, if present.
func (s *Store) GetPreferences(fs uint64) (Preferences, bool) {
	s.queriesMu.RLock()
	defer s.queriesMu.RUnlock()
	p, ok := s.queries[fs]
	return p, ok
}

// PutPreferences overwrites the policy bits for fs, creating the entry if
// absent (subject to fs_max_items).
func (s *Store) PutPreferences(fs uint64, p Preferences) error {
	s.queriesMu.Lock()
	defer s.queriesMu.Unlock()

	if _, ok := s.queries[fs]; !ok && len(s.queries) >= s.cfg.FSMaxItems {
		debugf("aqo: queries table full (%d items), rejecting fs=%d\n", len(s.queries), fs)
		return ErrTableFull
	}
	s.queries[fs] = p
	s.markDirty(tableQueries)
	return nil
}

// EnsureClass resolves the effective fs a query should be learned/used
// under, and the preferences governing it, applying mode's new-class
// behavior (§6 "Configuration") when fs has no existing entry.
//
// Returns the (possibly redirected) fs to key learning/prediction under,
// and the preferences to apply. For "controlled" mode a brand-new class
// is not recorded and predictions/learning are both disabled.
func (s *Store) EnsureClass(mode config.Mode, fs uint64) (effectiveFS uint64, prefs Preferences) {
	if existing, ok := s.GetPreferences(fs); ok {
		return existing.TargetFS, existing
	}

	switch mode {
	case config.ModeIntelligent:
		p := Preferences{TargetFS: fs, Learn: true, Use: false, AutoTune: true}
		_ = s.PutPreferences(fs, p)
		return fs, p

	case config.ModeForced:
		p := Preferences{TargetFS: 0, Learn: true, Use: true, AutoTune: false}
		_ = s.PutPreferences(fs, p)
		return 0, p

	case config.ModeControlled:
		return fs, Preferences{TargetFS: fs, Learn: false, Use: false, AutoTune: false}

	case config.ModeLearn:
		p := Preferences{TargetFS: fs, Learn: true, Use: true, AutoTune: false}
		_ = s.PutPreferences(fs, p)
		return fs, p

	case config.ModeFrozen:
		return fs, Preferences{TargetFS: fs, Learn: false, Use: false, AutoTune: false}

	default: // ModeDisabled and anything unrecognized
		return fs, Preferences{TargetFS: fs, Learn: false, Use: false, AutoTune: false}
	}
}

// PreferencesCount returns the number of classes with stored preferences.
func (s *Store) PreferencesCount() int {
	s.queriesMu.RLock()
	defer s.queriesMu.RUnlock()
	return len(s.queries)
}

// AllPreferences returns a copy of every class's preferences, keyed by
// fs, for operational reporting (the report subcommand's workbook export).
func (s *Store) AllPreferences() map[uint64]Preferences {
	s.queriesMu.RLock()
	defer s.queriesMu.RUnlock()
	out := make(map[uint64]Preferences, len(s.queries))
	for fs, p := range s.queries {
		out[fs] = p
	}
	return out
}
