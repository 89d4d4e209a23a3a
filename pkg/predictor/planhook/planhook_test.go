package planhook

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/hash"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/learncache"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/predict"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/store"
)

func testStore() *store.Store {
	return store.New(config.StoreConfig{FSMaxItems: 10, FSSMaxItems: 10, DSMSizeMaxMB: 10}, nil)
}

func TestHooks_RegisterRejectsDoubleRegistration(t *testing.T) {
	h := NewHooks(testStore(), config.MLConfig{K: 1})
	require.NoError(t, h.Register(PositionBaseRel, func(EstimateRequest) float64 { return 1 }))
	err := h.Register(PositionBaseRel, func(EstimateRequest) float64 { return 2 })
	assert.Error(t, err)
}

func TestHooks_InvokeFallsBackToDefaultWhenUnregistered(t *testing.T) {
	h := NewHooks(testStore(), config.MLConfig{K: 1})
	got := h.Invoke(PositionJoinRel, EstimateRequest{Default: func() float64 { return 42 }})
	assert.Equal(t, 42.0, got)
}

func TestHooks_DefaultDelegatesOnRefusal(t *testing.T) {
	h := NewHooks(testStore(), config.MLConfig{K: 3, PredictWithFewNeighbors: false})
	require.NoError(t, h.RegisterDefault(PositionBaseRel))

	col := &hash.Expr{Kind: hash.ExprColumn, Column: "t.a"}
	clause := predict.Clause{
		Clause:      hash.Clause{Expr: &hash.Expr{Kind: hash.ExprOp, Operator: ">", Args: []*hash.Expr{col, {Kind: hash.ExprConst, Column: "1"}}}},
		Relation:    1,
		Selectivity: 0.2,
	}
	req := EstimateRequest{
		FS:       1,
		RelSigs:  []uint64{hash.PermanentTableSignature("t")},
		Clauses:  []predict.Clause{clause},
		Resolver: hash.NilResolver{},
		Default:  func() float64 { return 99 },
	}
	assert.Equal(t, 99.0, h.Invoke(PositionBaseRel, req))
}

func TestPlanSideTable_AttachGet(t *testing.T) {
	table := NewPlanSideTable()
	info := &NodeInfo{FS: 1, FSS: 2}
	table.Attach(NodeID(7), info)

	got, ok := table.Get(NodeID(7))
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.FS)
	assert.Len(t, table.All(), 1)
}

func TestStatement_EndLearnsExecutedNodesOnly(t *testing.T) {
	st := testStore()
	stmt := Begin(st, learncache.New(), config.MLConfig{K: 3}, config.TuningConfig{}, rand.New(rand.NewSource(1)), nil)

	stmt.Table.Attach(NodeID(1), &NodeInfo{
		FS: 1, FSS: 10, Features: []float64{0.1}, RelSigs: []uint64{1},
		ActualTuples: 20, ActualLoops: 4, WasExecuted: true,
	})
	stmt.Table.Attach(NodeID(2), &NodeInfo{
		FS: 1, FSS: 11, Features: []float64{0.2}, RelSigs: []uint64{1},
		WasExecuted: false,
	})

	require.NoError(t, stmt.End(1, true, 0.5, 1.0, 0.1))

	_, ok := st.GetData(1, 10)
	assert.True(t, ok, "executed node must have learned")
	_, ok = st.GetData(1, 11)
	assert.False(t, ok, "unexecuted node must not have learned")
}

func TestStatement_TimedOutStagesOnlyPredictedNodes(t *testing.T) {
	st := testStore()
	cache := learncache.New()
	stmt := Begin(st, cache, config.MLConfig{K: 3}, config.TuningConfig{}, rand.New(rand.NewSource(1)), nil)

	stmt.Table.Attach(NodeID(1), &NodeInfo{
		FS: 1, FSS: 10, Features: []float64{0.1}, RelSigs: []uint64{1},
		Predicted: true, Prediction: 50, WasExecuted: false,
	})
	stmt.Table.Attach(NodeID(2), &NodeInfo{
		FS: 1, FSS: 11, Features: []float64{0.2}, RelSigs: []uint64{1},
		Predicted: false, WasExecuted: false,
	})

	stmt.TimedOut(0.1)
	assert.Equal(t, 1, cache.Len())
}

func TestStatement_TimedOutStagesPartiallyExecutedNode(t *testing.T) {
	st := testStore()
	cache := learncache.New()
	stmt := Begin(st, cache, config.MLConfig{K: 3}, config.TuningConfig{}, rand.New(rand.NewSource(1)), nil)

	// Predicted 50, but the node had already produced 100 rows before the
	// timeout hit; the node is staged into the learn-cache. The staged
	// value itself is not inspected here.
	stmt.Table.Attach(NodeID(1), &NodeInfo{
		FS: 1, FSS: 10, Features: []float64{0.1}, RelSigs: []uint64{1},
		Predicted: true, Prediction: 50, WasExecuted: true,
		ActualTuples: 100, ActualLoops: 1,
	})

	stmt.TimedOut(10)
	require.Equal(t, 1, cache.Len())
}

func TestStatement_TuneClassMissingStatReturnsFalse(t *testing.T) {
	st := testStore()
	stmt := Begin(st, learncache.New(), config.MLConfig{K: 3}, config.TuningConfig{}, rand.New(rand.NewSource(1)), nil)
	_, ok := stmt.TuneClass(999)
	assert.False(t, ok)
}
