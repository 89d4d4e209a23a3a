// Package planhook exposes the external-interface shapes of §6: the four
// planner-callback positions, the executor start/run/end callbacks, and
// the per-node side table the learning pipeline reads back from the
// finished plan. It does not implement a planner; it is the seam a real
// one (or the demo harness in cmd/aqoctl) plugs into.
package planhook

import (
	"sort"

	"github.com/kestrel-db/aqo-predictor/pkg/predictor/hash"
)

// NodeID identifies one plan node for the duration of a statement. A real
// planner would key this on its own node pointer identity; callers of
// this package pick any stable, statement-scoped value.
type NodeID uint64

// NodeInfo is the extensible plan-node side table (§6 "An extensible
// plan-node mechanism is used to attach, per node, {clauses,
// selectivities, relation-signatures, parallel-divisor,
// was-parameterised, fss, prediction}"). It is attached at planning time
// and read back by the learning pipeline after execution.
type NodeInfo struct {
	FS            uint64
	RelSigs       []uint64
	Clauses       []hash.Clause
	Selectivities []float64
	// ClauseRelations mirrors Clauses/Selectivities: the relation each
	// clause was extracted from, 0 for a clause with no single owning
	// relation. Used only to key the scratch cache for WasParameterised
	// nodes (§4.I); callers that never parameterise may leave it nil.
	ClauseRelations  []uint64
	Resolver         hash.EquivalenceResolver
	ParallelDivisor  int
	WasParameterised bool
	FSS              uint32
	Features         []float64
	Prediction       float64
	Predicted        bool

	// ActualTuples/ActualLoops/WorkerTuples/WorkerLoops are set by the
	// caller once the node has run; the executor-end callback reads them.
	ActualTuples float64
	ActualLoops  int64
	WorkerTuples []float64
	WorkerLoops  []int64
	WasExecuted  bool
}

// PlanSideTable maps NodeID to its NodeInfo for one statement's plan
// tree. It exists because this package has no planner node type of its
// own to attach fields to (§9 "Shared mutable global state" applies only
// to the store; this table is statement-local and owned by the caller).
type PlanSideTable struct {
	nodes map[NodeID]*NodeInfo
}

// NewPlanSideTable creates an empty side table for one statement.
func NewPlanSideTable() *PlanSideTable {
	return &PlanSideTable{nodes: make(map[NodeID]*NodeInfo)}
}

// Attach records info for id, created fresh each planning pass.
func (t *PlanSideTable) Attach(id NodeID, info *NodeInfo) {
	t.nodes[id] = info
}

// Get returns the info attached to id, if any.
func (t *PlanSideTable) Get(id NodeID) (*NodeInfo, bool) {
	info, ok := t.nodes[id]
	return info, ok
}

// All returns every (id, info) pair. Iteration order is the Go map's, not
// a plan order; callers that need a deterministic walk should use
// Ordered instead.
func (t *PlanSideTable) All() map[NodeID]*NodeInfo {
	return t.nodes
}

// Ordered returns every NodeInfo sorted by NodeID, for a deterministic
// bottom-up walk at end-of-execution. Nothing in this package assigns
// NodeID by plan depth, so this is a stable iteration order, not a
// genuine bottom-up guarantee; callers that need the latter must assign
// IDs accordingly.
func (t *PlanSideTable) Ordered() []*NodeInfo {
	ids := make([]NodeID, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*NodeInfo, len(ids))
	for i, id := range ids {
		out[i] = t.nodes[id]
	}
	return out
}
