package planhook

import (
	"fmt"
	"sync"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/hash"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/predict"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/scratch"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/store"
)

// Position names the four planner callback sites (§6 "four positions in
// the planner"): a plain base-relation scan, a parameterised base-relation
// scan (nested-loop inner side), a join, and a foreign/extension scan
// that reports through the same estimator shape.
type Position int

const (
	PositionBaseRel Position = iota
	PositionParameterizedBaseRel
	PositionJoinRel
	PositionForeignRel
)

func (p Position) String() string {
	switch p {
	case PositionBaseRel:
		return "base_rel"
	case PositionParameterizedBaseRel:
		return "parameterized_base_rel"
	case PositionJoinRel:
		return "join_rel"
	case PositionForeignRel:
		return "foreign_rel"
	default:
		return "unknown"
	}
}

// EstimateRequest carries everything one callback needs to ask the
// prediction pipeline for a row count: "a root planner state, a relation
// or join, and the restriction/parameter clauses" (§6), plus the
// planner's own default estimator, which must always be callable.
//
// Scratch is the statement's selectivity scratch cache (§4.I). It is
// populated only for PositionParameterizedBaseRel calls and is nil-safe:
// a caller that never parameterises may leave it nil and simply not get
// post-execution selectivity recovery for those nodes.
type EstimateRequest struct {
	FS       uint64
	RelSigs  []uint64
	Clauses  []predict.Clause
	Resolver hash.EquivalenceResolver
	Scratch  *scratch.Cache
	Default  func() float64
}

// EstimateAggregateRequest carries what an aggregation node's prediction
// needs: the child sub-plan's fss and its (sorted) grouping expressions
// (§4.F "For aggregation nodes"). Aggregation has no registrable
// position of its own — there is exactly one way to predict it — so it
// is invoked directly rather than through Register/Invoke.
type EstimateAggregateRequest struct {
	FS         uint64
	ChildFSS   uint32
	GroupExprs []*hash.Expr
	Default    func() float64
}

// Hooks is the registry a real planner (or the demo harness) attaches
// itself to. Each position may be registered at most once; a
// double-registration is almost certainly a wiring bug in the caller
// and is rejected rather than silently overwritten.
type Hooks struct {
	mu        sync.Mutex
	callbacks map[Position]func(EstimateRequest) float64

	store *store.Store
	ml    config.MLConfig
}

// NewHooks creates a registry backed by st, used for every estimate and
// learn call the registered callbacks make.
func NewHooks(st *store.Store, ml config.MLConfig) *Hooks {
	return &Hooks{
		callbacks: make(map[Position]func(EstimateRequest) float64),
		store:     st,
		ml:        ml,
	}
}

// Register installs a callback at position. Returns an error if the
// position already has one (§6, the double-registration guard named in
// the Open Questions resolution).
func (h *Hooks) Register(pos Position, cb func(EstimateRequest) float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.callbacks[pos]; exists {
		return fmt.Errorf("planhook: callback already registered for %s", pos)
	}
	h.callbacks[pos] = cb
	return nil
}

// RegisterDefault installs the predictor's own implementation at pos:
// compute (fss, features) via the hasher, consult the store, and
// delegate to req.Default() on refusal — the "either return a learned
// estimate or delegate to the planner's default" behavior of §6.
func (h *Hooks) RegisterDefault(pos Position) error {
	isParam := pos == PositionParameterizedBaseRel
	return h.Register(pos, func(req EstimateRequest) float64 {
		result := predict.Node(h.store, req.Scratch, h.ml, req.FS, req.RelSigs, req.Clauses, req.Resolver, isParam)
		if result.Refused {
			return req.Default()
		}
		return result.Cardinality
	})
}

// InvokeAggregate asks the predictor for an aggregation node's estimated
// group count, delegating to req.Default() on refusal.
func (h *Hooks) InvokeAggregate(req EstimateAggregateRequest) float64 {
	result := predict.Aggregate(h.store, h.ml, req.FS, req.ChildFSS, req.GroupExprs)
	if result.Refused {
		return req.Default()
	}
	return result.Cardinality
}

// Invoke calls whatever is registered at pos, or req.Default() if
// nothing is registered there yet.
func (h *Hooks) Invoke(pos Position, req EstimateRequest) float64 {
	h.mu.Lock()
	cb, ok := h.callbacks[pos]
	h.mu.Unlock()
	if !ok {
		return req.Default()
	}
	return cb(req)
}
