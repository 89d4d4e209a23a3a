package tuning

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/store"
)

func baseCfg() config.TuningConfig {
	return config.TuningConfig{
		WindowSize:             5,
		ConvergenceError:       0.01,
		InfiniteLoopWindow:     10,
		MaxIterations:          100,
		TimeoutInflationFactor: 10,
	}
}

// TestTune_CollectsBaselineFirst checks §4.H step 1: fewer than
// window+1 baseline executions forces use=false, learn=true.
func TestTune_CollectsBaselineFirst(t *testing.T) {
	e := store.StatEntry{ExecsWithout: 3}
	d := Tune(baseCfg(), e, rand.New(rand.NewSource(1)))
	assert.False(t, d.Use)
	assert.True(t, d.Learn)
}

// TestTune_UnconvergedForcesUse checks §4.H step 2.
func TestTune_UnconvergedForcesUse(t *testing.T) {
	e := store.StatEntry{ExecsWithout: 10, ExecsWith: 3}
	for i := range e.EstErrorAQO {
		e.EstErrorAQO[i] = float64(i) // strictly increasing: never converges
	}
	d := Tune(baseCfg(), e, rand.New(rand.NewSource(1)))
	assert.True(t, d.Use)
	assert.True(t, d.Learn)
}

// TestTune_FreezeAboveMaxIterationsWithLowPUse is property 8: once
// execs_without+execs_with > max_iterations and p_use<=0.5, the class
// freezes (all three bits false).
func TestTune_FreezeAboveMaxIterationsWithLowPUse(t *testing.T) {
	cfg := baseCfg()
	cfg.MaxIterations = 5

	e := store.StatEntry{ExecsWithout: 10, ExecsWith: 10}
	for i := range e.EstErrorAQO {
		e.EstErrorAQO[i] = 1.0 // converged (flat series)
	}
	for i := range e.ExecTimeAQO {
		e.ExecTimeAQO[i] = 1000 // aqo much slower -> p_use well under 0.5
	}
	for i := range e.ExecTime {
		e.ExecTime[i] = 1
	}

	d := Tune(cfg, e, rand.New(rand.NewSource(1)))
	assert.Less(t, d.PUse, 0.5)
	assert.False(t, d.Use)
	assert.False(t, d.Learn)
	assert.False(t, d.AutoTune)
}

func TestLogistic_MidpointIsNeutral(t *testing.T) {
	assert.InDelta(t, 0.5, logistic(0.5, exploration), 1e-9)
}

func TestConverged_FlatSeriesConverges(t *testing.T) {
	elems := make([]float64, 20)
	for i := range elems {
		elems[i] = 2.0
	}
	assert.True(t, converged(elems, 20, 5, 0.01))
}

func TestConverged_TooFewSamples(t *testing.T) {
	elems := []float64{1, 2}
	assert.False(t, converged(elems, 2, 5, 0.01))
}
