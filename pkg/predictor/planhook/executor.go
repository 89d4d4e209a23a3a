package planhook

import (
	"math/rand"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/hash"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/learn"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/learncache"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/scratch"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/store"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/tuning"
)

// Statement drives one statement's executor-side lifecycle: the
// executor-start/run/end callback triad of §6, backed by a fresh
// PlanSideTable and a learn.Pipeline bound to the shared store.
//
// A real planner calls Begin when planning finishes, attaches a NodeInfo
// per node it instruments, calls End once execution (or a timeout) has
// happened, and reads back the Decision Tune produced for auto-tuned
// classes.
type Statement struct {
	Table    *PlanSideTable
	pipeline *learn.Pipeline
	store    *store.Store
	ml       config.MLConfig
	scratch  *scratch.Cache
	tuneCfg  config.TuningConfig
	rng      *rand.Rand
}

// Begin starts a new statement (the executor-start callback position):
// it resets the pipeline's never-executed dedupe set and hands back a
// fresh side table to attach nodes to. sc is the same selectivity
// scratch cache (§4.I) the planning-time callbacks were given via
// EstimateRequest.Scratch; passing nil disables selectivity recovery for
// parameterised nodes, falling back to each node's stored Selectivities.
func Begin(st *store.Store, cache *learncache.Cache, ml config.MLConfig, tuneCfg config.TuningConfig, rng *rand.Rand, sc *scratch.Cache) *Statement {
	p := learn.New(st, cache, ml)
	p.BeginStatement()
	return &Statement{
		Table:    NewPlanSideTable(),
		pipeline: p,
		store:    st,
		ml:       ml,
		scratch:  sc,
		tuneCfg:  tuneCfg,
		rng:      rng,
	}
}

// TimedOut is the executor-run callback position for a statement that
// hit its deadline: every predicted node is passed through the §4.G
// "Timeout handling" inflation (which only raises learn_rows when it
// exceeds the prediction by more than the 1.2x margin) and staged into
// the learn-cache rather than the shared store. learn_rows is the node's
// own real partial cardinality — nodes
// the executor never reached report zero through ActualCardinality,
// nodes it was part-way through report whatever rows it produced before
// the cutoff — so the inflation formula has something real to compare
// against predicted.
func (s *Statement) TimedOut(inflationFactor float64) {
	for _, info := range s.Table.Ordered() {
		if !info.Predicted {
			continue
		}
		learnRows := learn.ActualCardinality(info.ActualTuples, info.ActualLoops, info.WorkerTuples, info.WorkerLoops)
		inflated, _ := learn.InflateLearnRows(learnRows, info.Prediction, inflationFactor)
		s.pipeline.LearnNodeTimedOut(info.FS, info.FSS, len(info.Features), info.Features, inflated, info.RelSigs)
	}
}

// End is the executor-end callback position: a clean completion, which
// walks the side table in NodeID order, learns every executed node,
// evicts any stale learn-cache entry a prior timeout had staged for it,
// and finally records the whole statement's execution stats against the
// top-level fs.
func (s *Statement) End(topFS uint64, withPredictor bool, planTime, execTime, estError float64) error {
	for _, info := range s.Table.Ordered() {
		if !info.WasExecuted {
			continue
		}
		fss, features := s.recoverFeatures(info)
		actual := learn.ActualCardinality(info.ActualTuples, info.ActualLoops, info.WorkerTuples, info.WorkerLoops)
		rfactor := 1.0
		if err := s.pipeline.LearnNode(info.FS, fss, len(features), features, actual, rfactor, info.RelSigs, false); err != nil {
			return err
		}
		s.pipeline.CommitCleanCompletion(info.FS, fss)
	}
	return s.pipeline.RecordExecution(topFS, withPredictor, planTime, execTime, estError)
}

// recoverFeatures returns the (fss, features) End should learn against
// for info. For a node the planner parameterised, each clause's
// selectivity is recovered from the statement's scratch cache (keyed by
// clause hash and owning relation) rather than trusted from planning
// time, per §4.G step 3 "recovering selectivities recorded in the
// scratch cache ... otherwise falling back to the norm_selec/outer_selec
// attached to each restriction". Recovery rebuilds (fss, features) from
// scratch since the recovered selectivities can differ from the ones
// used at prediction time. Non-parameterised nodes just reuse what was
// computed at planning time.
func (s *Statement) recoverFeatures(info *NodeInfo) (uint32, []float64) {
	if !info.WasParameterised || s.scratch == nil || len(info.Clauses) == 0 {
		return info.FSS, info.Features
	}

	resolver := info.Resolver
	if resolver == nil {
		resolver = hash.NilResolver{}
	}
	classes := hash.BuildEquivalenceClasses(info.Clauses, resolver)
	clauseHashes := hash.ClauseHashes(info.Clauses, resolver, classes)

	sels := make([]float64, len(info.Clauses))
	for i := range info.Clauses {
		var relation uint64
		if i < len(info.ClauseRelations) {
			relation = info.ClauseRelations[i]
		}
		if v, ok := s.scratch.Get(uint64(clauseHashes[i]), relation); ok {
			sels[i] = v
		} else if i < len(info.Selectivities) {
			sels[i] = info.Selectivities[i]
		}
	}

	fssResult := hash.FeatureSubSpace(info.RelSigs, info.Clauses, sels, resolver, s.ml.LogSelFloor)
	return fssResult.FSS, fssResult.Features
}

// TuneClass asks the auto-tuner for fs's next (learn, use, auto_tune)
// decision, given its accumulated StatEntry. Callers apply the decision
// by writing it back through the store's Preferences (store.EnsureClass
// governs first contact; this governs steady-state adaptation).
func (s *Statement) TuneClass(fs uint64) (tuning.Decision, bool) {
	entry, ok := s.store.GetStat(fs)
	if !ok {
		return tuning.Decision{}, false
	}
	return tuning.Tune(s.tuneCfg, entry, s.rng), true
}
