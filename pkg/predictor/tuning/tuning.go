// Package tuning implements the auto-tuning controller (§4.H): per class,
// it drives the {use, learn, auto_tune} policy bits from the class's
// aggregated statistics, using both cardinality-error convergence and
// wall-time comparison with and without the predictor.
package tuning

import (
	"math"
	"math/rand"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/store"
)

// exploration is the logistic curve's steepness, matching the original's
// fixed "unstability" constant.
const exploration = 0.1

// Decision is the outcome of one tuning pass: the policy bits to persist
// via store.PutPreferences.
type Decision struct {
	Learn    bool
	Use      bool
	AutoTune bool
	PUse     float64 // -1 when the time-based branch wasn't reached
}

// Tune computes the next policy for fs given its current stat entry and
// window, convergence, and freeze tunables. rng is injectable for
// deterministic tests; pass nil to use the package-level source.
func Tune(cfg config.TuningConfig, e store.StatEntry, rng *rand.Rand) Decision {
	draw := rand.Float64
	if rng != nil {
		draw = rng.Float64
	}

	numIterations := e.ExecsWith + e.ExecsWithout

	d := Decision{Learn: true, AutoTune: true, PUse: -1}

	withoutLen := int(min64(e.ExecsWithout, store.StatSampleSize))
	withLen := int(min64(e.ExecsWith, store.StatSampleSize))

	switch {
	case e.ExecsWithout < int64(cfg.WindowSize)+1:
		d.Use = false

	case !converged(e.EstErrorAQO[:], withLen, cfg.WindowSize, cfg.ConvergenceError) &&
		!inInfiniteLoop(e.EstErrorAQO[:], withLen, cfg.WindowSize, cfg.InfiniteLoopWindow, cfg.ConvergenceError):
		d.Use = true

	default:
		tAQO := estimate(e.ExecTimeAQO[:], withLen, cfg.WindowSize) + estimate(e.PlanTimeAQO[:], withLen, cfg.WindowSize)
		tNoAQO := estimate(e.ExecTime[:], withoutLen, cfg.WindowSize) + estimate(e.PlanTime[:], withoutLen, cfg.WindowSize)

		pUse := tNoAQO / (tNoAQO + tAQO)
		pUse = logistic(pUse, exploration)

		d.PUse = pUse
		d.Use = draw() < pUse
		d.Learn = d.Use
	}

	// An unreached time-based branch leaves PUse at its -1 sentinel, which
	// satisfies <= 0.5 same as the original: a class stuck short of
	// convergence past MaxIterations freezes just like one that converged
	// on the predictor's slower side.
	if numIterations > int64(cfg.MaxIterations) && d.PUse <= 0.5 {
		return Decision{Learn: false, Use: false, AutoTune: false, PUse: d.PUse}
	}
	return d
}

// logistic maps p (0..1, 0.5 = neutral) onto a normalised acceptance
// probability: p>0.5 (predictor faster) skews toward 1, p<0.5 skews
// toward 0, via the same symmetric-logistic normalisation as the
// original auto-tuner.
func logistic(p, unstability float64) float64 {
	v := 1 / (1 + math.Exp((p-0.5)/unstability))
	floor := 1 / (1 + math.Exp(-0.5/unstability))
	v -= floor
	v /= 1 - 2*floor
	return v
}

func estimate(series []float64, nelems, window int) float64 {
	if nelems == 0 {
		return 0
	}
	start := 0
	if nelems > window {
		start = nelems - window
	}
	return mean(series[start:nelems])
}

func mean(elems []float64) float64 {
	var sum float64
	for _, e := range elems {
		sum += e
	}
	return sum / float64(len(elems))
}

// isStable reports whether the last element of elems[:nelems] lies within
// convError (relative or absolute) of the mean of the rest.
func isStable(elems []float64, nelems int, convError float64) bool {
	if nelems <= 1 {
		return false
	}
	est := mean(elems[:nelems-1])
	last := elems[nelems-1]
	return (est*(1+convError) > last || est+convError > last) &&
		(est*(1-convError) < last || est-convError < last)
}

func converged(elems []float64, nelems, window int, convError float64) bool {
	if nelems < window+2 {
		return false
	}
	return isStable(elems[nelems-window-1:nelems], window+1, convError)
}

func inInfiniteLoop(elems []float64, nelems, window, infiniteLoopWindow int, convError float64) bool {
	if nelems-infiniteLoopWindow < window+2 {
		return false
	}
	return !converged(elems, nelems, window, convError) &&
		!converged(elems, nelems-window, window, convError)
}

func min64(a int64, b int) int64 {
	if a < int64(b) {
		return a
	}
	return int64(b)
}
