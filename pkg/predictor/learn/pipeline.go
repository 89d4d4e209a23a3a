// Package learn implements the post-execution learning pipeline (§4.G):
// for each instrumented plan node it recomputes (fs,fss), forms the
// learning sample, and updates the shared store's matrix under the
// node's per-key logical lock; on statement timeout it stages into the
// learn-cache instead.
package learn

import (
	"math"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/learncache"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/store"
)

// Pipeline drives learning against one Store, remembering which (fs,fss)
// sub-spaces have already absorbed a never-executed sample this
// statement so repeats are skipped (§4.G step 3).
type Pipeline struct {
	store      *store.Store
	cache      *learncache.Cache
	ml         config.MLConfig
	neverExecd map[learncache.Key]bool
}

// New creates a pipeline bound to st and a shared learn-cache.
func New(st *store.Store, cache *learncache.Cache, ml config.MLConfig) *Pipeline {
	return &Pipeline{store: st, cache: cache, ml: ml, neverExecd: make(map[learncache.Key]bool)}
}

// BeginStatement resets per-statement bookkeeping (the never-executed
// dedupe set), called once at the start of each statement's learning
// walk.
func (p *Pipeline) BeginStatement() {
	p.neverExecd = make(map[learncache.Key]bool)
}

// LearnNode folds one node's observation into the shared store, taking
// the per-(fs,fss) logical lock around the read-then-write (§5). If
// neverExecuted is true, the sample uses the synthetic target/rfactor of
// §4.G "Never-executed handling" and is skipped on repeat occurrences of
// the same (fs,fss) within this statement.
func (p *Pipeline) LearnNode(fs uint64, fss uint32, cols int, features []float64, actualCardinality, rfactor float64, reloids []uint64, neverExecuted bool) error {
	key := learncache.Key{FS: fs, FSS: fss}

	if neverExecuted {
		if p.neverExecd[key] {
			return nil
		}
		p.neverExecd[key] = true
		actualCardinality = 1
		rfactor = 1
	}

	target := ClampTarget(math.Log(actualCardinality))

	var learnErr error
	p.store.WithKeyLock(fs, fss, func() {
		learnErr = p.store.Learn(fs, fss, cols, features, target, rfactor, p.ml.K, reloids, nil)
	})
	return learnErr
}

// LearnNodeTimedOut stages a partial sample into the learn-cache instead
// of the shared store (§4.E, §4.G "Timeout handling"). It must not touch
// the shared heap.
func (p *Pipeline) LearnNodeTimedOut(fs uint64, fss uint32, cols int, features []float64, actualCardinality float64, reloids []uint64) {
	key := learncache.Key{FS: fs, FSS: fss}
	target := ClampTarget(math.Log(actualCardinality))
	p.cache.Stage(key, learncache.Sample{
		Cols:     cols,
		Features: features,
		Target:   target,
		RFactor:  PartialRFactor,
		Reloids:  reloids,
	})
}

// CommitCleanCompletion evicts any learn-cache entry staged for
// (fs,fss) now that a clean completion has superseded it (§4.E).
func (p *Pipeline) CommitCleanCompletion(fs uint64, fss uint32) {
	p.cache.Evict(learncache.Key{FS: fs, FSS: fss})
}

// RecordExecution appends this statement's (plan_time, exec_time,
// est_error) to fs's stat entry, after the whole tree has been processed
// (§4.G step 4).
func (p *Pipeline) RecordExecution(fs uint64, withPredictor bool, planTime, execTime, estError float64) error {
	return p.store.RecordExecution(fs, withPredictor, planTime, execTime, estError)
}
