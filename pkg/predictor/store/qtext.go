package store

// GetQueryText returns the query string stored for fs, if present.
func (s *Store) GetQueryText(fs uint64) (string, bool) {
	s.qtextMu.RLock()
	handle, ok := s.qtext[fs]
	s.qtextMu.RUnlock()
	if !ok {
		return "", false
	}
	v, ok := s.heap.Get(handle)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// PutQueryText records the query string for fs, truncating to
// querytext_max_size and rejecting the insert (new keys only) once the
// table is at fs_max_items.
func (s *Store) PutQueryText(fs uint64, text string) error {
	if len(text) > s.cfg.QueryTextMaxSize {
		text = text[:s.cfg.QueryTextMaxSize]
	}

	s.qtextMu.Lock()
	defer s.qtextMu.Unlock()

	if existing, ok := s.qtext[fs]; ok {
		if err := s.heap.Replace(existing, int64(len(text)), text); err != nil {
			debugf("aqo: qtext heap replace failed for fs=%d: %v\n", fs, err)
			return err
		}
		s.markDirty(tableQText)
		return nil
	}

	if len(s.qtext) >= s.cfg.FSMaxItems {
		debugf("aqo: qtext table full (%d items), rejecting fs=%d\n", len(s.qtext), fs)
		return ErrTableFull
	}

	handle, err := s.heap.Alloc(int64(len(text)), text)
	if err != nil {
		debugf("aqo: qtext heap alloc failed for fs=%d: %v\n", fs, err)
		return err
	}
	s.qtext[fs] = handle
	s.markDirty(tableQText)
	return nil
}

// QueryTextCount returns the number of classes with stored query text.
func (s *Store) QueryTextCount() int {
	s.qtextMu.RLock()
	defer s.qtextMu.RUnlock()
	return len(s.qtext)
}
