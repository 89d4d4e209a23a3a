package store

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
)

func testConfig() config.StoreConfig {
	return config.StoreConfig{
		FSMaxItems:       4,
		FSSMaxItems:      4,
		QueryTextMaxSize: 64,
		DSMSizeMaxMB:     1,
	}
}

func noWarn(string) {}

func TestStat_OverflowRejectsSilently(t *testing.T) {
	s := New(testConfig(), nil)
	for i := uint64(0); i < 4; i++ {
		require.NoError(t, s.RecordExecution(i, false, 1, 1, 0))
	}
	err := s.RecordExecution(99, false, 1, 1, 0)
	assert.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, 4, s.StatCount())
}

func TestStat_RingWraps(t *testing.T) {
	s := New(testConfig(), nil)
	for i := 0; i < StatSampleSize+5; i++ {
		require.NoError(t, s.RecordExecution(1, false, float64(i), float64(i), 0))
	}
	e, ok := s.GetStat(1)
	require.True(t, ok)
	assert.Equal(t, int64(StatSampleSize+5), e.ExecsWithout)
}

func TestQText_TruncatesAndOverflows(t *testing.T) {
	cfg := testConfig()
	cfg.QueryTextMaxSize = 4
	s := New(cfg, nil)
	require.NoError(t, s.PutQueryText(1, "hello world"))
	text, ok := s.GetQueryText(1)
	require.True(t, ok)
	assert.Equal(t, "hell", text)

	for i := uint64(2); i <= 4; i++ {
		require.NoError(t, s.PutQueryText(i, "x"))
	}
	assert.ErrorIs(t, s.PutQueryText(999, "y"), ErrTableFull)
}

// TestEnsureClass_ModeBehaviors checks §6's new-class effects per mode.
func TestEnsureClass_ModeBehaviors(t *testing.T) {
	s := New(testConfig(), nil)

	fs1 := s.newFS()
	effFS, prefs := s.EnsureClass(config.ModeIntelligent, fs1)
	assert.Equal(t, fs1, effFS)
	assert.True(t, prefs.Learn)
	assert.False(t, prefs.Use)
	assert.True(t, prefs.AutoTune)

	fs2 := s.newFS()
	effFS, prefs = s.EnsureClass(config.ModeForced, fs2)
	assert.Equal(t, uint64(0), effFS)
	assert.True(t, prefs.Learn)
	assert.True(t, prefs.Use)

	fs3 := s.newFS()
	effFS, prefs = s.EnsureClass(config.ModeControlled, fs3)
	assert.Equal(t, fs3, effFS)
	assert.False(t, prefs.Learn)
	_, stored := s.GetPreferences(fs3)
	assert.False(t, stored, "controlled mode must not record a brand-new class")
}

func (s *Store) newFS() uint64 {
	s.queriesMu.Lock()
	defer s.queriesMu.Unlock()
	return uint64(len(s.queries) + 1000)
}

func TestData_DimensionMismatchRefused(t *testing.T) {
	s := New(testConfig(), nil)
	require.NoError(t, s.Learn(1, 1, 2, []float64{0.1, 0.2}, 5, 1, 3, nil, noWarn))

	err := s.Learn(1, 1, 3, []float64{0.1, 0.2, 0.3}, 5, 1, 3, nil, noWarn)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	dv, ok := s.GetData(1, 1)
	require.True(t, ok)
	assert.Equal(t, 2, dv.Cols)
}

func TestData_OverflowRejectsSilently(t *testing.T) {
	s := New(testConfig(), nil)
	for i := uint32(0); i < 4; i++ {
		require.NoError(t, s.Learn(1, i, 1, []float64{float64(i)}, 5, 1, 3, nil, noWarn))
	}
	err := s.Learn(1, 99, 1, []float64{1}, 5, 1, 3, nil, noWarn)
	assert.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, 4, s.DataCount())
}

// TestData_ConcurrentLearnersSerialize is scenario 7: concurrent learners
// on the same (fs,fss) produce a result equal to some sequential
// ordering — in particular, no row count exceeding one append per call.
func TestData_ConcurrentLearnersSerialize(t *testing.T) {
	s := New(config.StoreConfig{FSMaxItems: 100, FSSMaxItems: 100, DSMSizeMaxMB: 10}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.WithKeyLock(1, 1, func() {
				_ = s.Learn(1, 1, 1, []float64{float64(i) * 10}, float64(i), 1, 3, nil, noWarn)
			})
		}(i)
	}
	wg.Wait()

	dv, ok := s.GetData(1, 1)
	require.True(t, ok)
	assert.LessOrEqual(t, dv.Matrix.Rows, 20)
	assert.GreaterOrEqual(t, dv.Matrix.Rows, 1)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)

	s := New(testConfig(), backend)
	require.NoError(t, s.RecordExecution(1, false, 1.5, 2.5, 0.1))
	require.NoError(t, s.PutQueryText(1, "select 1"))
	require.NoError(t, s.PutPreferences(1, Preferences{TargetFS: 1, Learn: true, Use: false, AutoTune: true}))
	require.NoError(t, s.Learn(1, 7, 2, []float64{-1.0, -2.0}, 3, 1, 3, []uint64{42}, noWarn))

	s.Flush()

	s2 := New(testConfig(), backend)
	s2.Load()

	e, ok := s2.GetStat(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), e.ExecsWithout)

	text, ok := s2.GetQueryText(1)
	require.True(t, ok)
	assert.Equal(t, "select 1", text)

	prefs, ok := s2.GetPreferences(1)
	require.True(t, ok)
	assert.True(t, prefs.Learn)

	dv, ok := s2.GetData(1, 7)
	require.True(t, ok)
	assert.Equal(t, 2, dv.Cols)
	assert.Equal(t, 1, dv.Matrix.Rows)
	assert.Equal(t, []uint64{42}, dv.Reloids)
}

func TestSnapshot_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/stat.aqs", []byte("not a real snapshot"), 0o644))

	backend, err := NewFileBackend(dir)
	require.NoError(t, err)

	s := New(testConfig(), backend)
	s.Load()
	assert.Equal(t, 0, s.StatCount())
}

func TestHeap_ExhaustionRollsBack(t *testing.T) {
	cfg := testConfig()
	cfg.DSMSizeMaxMB = 0
	s := New(cfg, nil)

	err := s.PutQueryText(1, "abc")
	assert.ErrorIs(t, err, ErrHeapExhausted)
	_, ok := s.GetQueryText(1)
	assert.False(t, ok)
}

func TestCleanup_ForcedRemovesAllSiblingSubSpaces(t *testing.T) {
	s := New(config.StoreConfig{FSMaxItems: 10, FSSMaxItems: 10, DSMSizeMaxMB: 10}, nil)
	require.NoError(t, s.Learn(5, 1, 1, []float64{0}, 1, 1, 3, []uint64{100}, noWarn))
	require.NoError(t, s.Learn(5, 2, 1, []float64{0}, 1, 1, 3, []uint64{200}, noWarn))
	require.NoError(t, s.PutPreferences(5, Preferences{TargetFS: 5, Learn: true}))

	live := func(reloid uint64) bool { return reloid != 100 }
	result := s.Cleanup(live, true)

	assert.Equal(t, 2, result.SubSpacesRemoved)
	assert.Equal(t, 1, result.ClassesRemoved)
	assert.Equal(t, 0, s.DataCount())
	_, ok := s.GetPreferences(5)
	assert.False(t, ok)
}

func TestCleanup_GentleKeepsLiveSiblings(t *testing.T) {
	s := New(config.StoreConfig{FSMaxItems: 10, FSSMaxItems: 10, DSMSizeMaxMB: 10}, nil)
	require.NoError(t, s.Learn(5, 1, 1, []float64{0}, 1, 1, 3, []uint64{100}, noWarn))
	require.NoError(t, s.Learn(5, 2, 1, []float64{0}, 1, 1, 3, []uint64{200}, noWarn))

	live := func(reloid uint64) bool { return reloid != 100 }
	result := s.Cleanup(live, false)

	assert.Equal(t, 1, result.SubSpacesRemoved)
	assert.Equal(t, 0, result.ClassesRemoved)
	_, ok := s.GetData(5, 2)
	assert.True(t, ok, "surviving sub-space must remain")
}
