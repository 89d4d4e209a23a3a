// Package predict implements the prediction pipeline (§4.F): for one plan
// node, it extracts clause selectivities, asks the hasher for (fss,
// features), loads the learning matrix from the shared store, and asks
// the kNN regressor for an estimate.
package predict

import (
	"math"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/hash"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/knn"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/scratch"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/store"
)

// Clause pairs a hash.Clause with the relation it was extracted from (0
// if it isn't a per-relation parameterisation clause), so the pipeline
// can populate the scratch cache for the learning pipeline to recover
// later.
type Clause struct {
	hash.Clause
	Relation    uint64
	Selectivity float64
}

// Result is one node's prediction outcome.
type Result struct {
	FSS        uint32
	Features   []float64
	Cardinality float64
	Refused    bool
}

// Node computes (fss, features) for a base-relation or join node and asks
// the matrix for a prediction. When isParameterizedBaseRel is true, every
// clause's (hash, relation) -> selectivity is recorded into sc for the
// learning pipeline to recover post-execution (§4.F step 2).
func Node(
	st *store.Store,
	sc *scratch.Cache,
	mlCfg config.MLConfig,
	fs uint64,
	relSigs []uint64,
	clauses []Clause,
	resolver hash.EquivalenceResolver,
	isParameterizedBaseRel bool,
) Result {
	plainClauses := make([]hash.Clause, len(clauses))
	sels := make([]float64, len(clauses))
	for i, c := range clauses {
		plainClauses[i] = c.Clause
		sels[i] = c.Selectivity
	}

	fssResult := hash.FeatureSubSpace(relSigs, plainClauses, sels, resolver, mlCfg.LogSelFloor)

	if isParameterizedBaseRel && sc != nil {
		classes := hash.BuildEquivalenceClasses(plainClauses, resolver)
		clauseHashes := hash.ClauseHashes(plainClauses, resolver, classes)
		for i, c := range clauses {
			sc.Put(uint64(clauseHashes[i]), c.Relation, c.Selectivity)
		}
	}

	return evaluate(st, mlCfg, fs, fssResult)
}

// Aggregate computes the fss for an aggregation node: the child
// sub-plan's fss combined with the hash of its (sorted) grouping
// expressions. The matrix for an aggregate fss holds a single row whose
// target is the group count (§4.F "For aggregation nodes").
func Aggregate(st *store.Store, mlCfg config.MLConfig, fs uint64, childFSS uint32, groupExprs []*hash.Expr) Result {
	fss := hash.GroupedExprsHash(childFSS, groupExprs)
	return evaluate(st, mlCfg, fs, hash.FSSResult{FSS: fss, Features: nil})
}

func evaluate(st *store.Store, mlCfg config.MLConfig, fs uint64, fssResult hash.FSSResult) Result {
	cols := len(fssResult.Features)

	dv, ok := st.GetData(fs, uint32(fssResult.FSS))
	var matrix *knn.Matrix
	switch {
	case ok:
		matrix = dv.Matrix
	case mlCfg.WideSearch:
		matrix = st.WideSearch(uint32(fssResult.FSS), cols)
	default:
		matrix = knn.NewMatrix(cols)
	}

	logCard := knn.Predict(matrix, fssResult.Features, mlCfg.K, mlCfg.PredictWithFewNeighbors)
	if logCard == knn.Refuse {
		return Result{FSS: fssResult.FSS, Features: fssResult.Features, Refused: true}
	}

	return Result{
		FSS:         fssResult.FSS,
		Features:    fssResult.Features,
		Cardinality: math.Exp(logCard),
	}
}
