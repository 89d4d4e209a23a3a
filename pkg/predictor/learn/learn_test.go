package learn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/learncache"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/store"
)

func TestActualCardinality_NonParallel(t *testing.T) {
	assert.Equal(t, 5.0, ActualCardinality(20, 4, nil, nil))
}

func TestActualCardinality_Parallel(t *testing.T) {
	// leader produced 100 total but 60 of those came from 2 workers;
	// leader's own contribution over 2 loops is 20/loop, workers average
	// 30/loop; result is their mean.
	v := ActualCardinality(100, 2, []float64{30, 30}, []int64{1, 1})
	assert.Equal(t, 25.0, v)
}

func TestClampTarget_NegativeClampsToZero(t *testing.T) {
	assert.Equal(t, 0.0, ClampTarget(-3.2))
	assert.Equal(t, 2.0, ClampTarget(2.0))
}

func TestInflateLearnRows_InflatesWhenFarAbovePredicted(t *testing.T) {
	inflated, did := InflateLearnRows(100, 10, 10)
	assert.True(t, did)
	assert.Equal(t, 100.0+10*(100.0-10.0), inflated)
}

func TestInflateLearnRows_SkipsWhenClose(t *testing.T) {
	inflated, did := InflateLearnRows(11, 10, 10)
	assert.False(t, did)
	assert.Equal(t, 11.0, inflated)
}

func TestPipeline_NeverExecutedLearnsOnceThenSkips(t *testing.T) {
	st := store.New(config.StoreConfig{FSMaxItems: 10, FSSMaxItems: 10, DSMSizeMaxMB: 10}, nil)
	p := New(st, learncache.New(), config.MLConfig{K: 3})
	p.BeginStatement()

	require.NoError(t, p.LearnNode(1, 1, 1, []float64{0}, 0, 0, nil, true))
	dv, ok := st.GetData(1, 1)
	require.True(t, ok)
	assert.Equal(t, 1, dv.Matrix.Rows)
	assert.Equal(t, 0.0, dv.Matrix.Targets[0]) // log(1) == 0

	require.NoError(t, p.LearnNode(1, 1, 1, []float64{5}, 0, 0, nil, true))
	dv, _ = st.GetData(1, 1)
	assert.Equal(t, 1, dv.Matrix.Rows, "second never-executed occurrence must be skipped")
}

func TestPipeline_TimedOutStagesInCache(t *testing.T) {
	st := store.New(config.StoreConfig{FSMaxItems: 10, FSSMaxItems: 10, DSMSizeMaxMB: 10}, nil)
	cache := learncache.New()
	p := New(st, cache, config.MLConfig{K: 3})

	p.LearnNodeTimedOut(1, 1, 1, []float64{0.1}, 10, nil)
	assert.Equal(t, 1, cache.Len())
	_, ok := st.GetData(1, 1)
	assert.False(t, ok, "timed-out sample must not reach the shared store")
}

func TestPipeline_CleanCompletionEvictsCache(t *testing.T) {
	st := store.New(config.StoreConfig{FSMaxItems: 10, FSSMaxItems: 10, DSMSizeMaxMB: 10}, nil)
	cache := learncache.New()
	p := New(st, cache, config.MLConfig{K: 3})

	p.LearnNodeTimedOut(1, 1, 1, []float64{0.1}, 10, nil)
	p.CommitCleanCompletion(1, 1)
	assert.Equal(t, 0, cache.Len())
}

func TestClampTarget_MatchesLogOfOne(t *testing.T) {
	assert.Equal(t, 0.0, ClampTarget(math.Log(1)))
}
