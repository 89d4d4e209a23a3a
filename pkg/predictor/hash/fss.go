package hash

import (
	"sort"

	"github.com/kestrel-db/aqo-predictor/pkg/predictor/numutil"
)

// DefaultLogSelFloor is the lower clamp applied to every log-selectivity
// feature, matching the distilled spec's log_sel_floor default of -30.
const DefaultLogSelFloor = -30.0

// FSSResult is the output of FeatureSubSpace: the sub-space identifier and
// the feature vector that goes with it.
type FSSResult struct {
	FSS      uint32
	Features []float64
}

// clauseEntry pairs a clause's hash with its has-constant flag and
// selectivity, before the run-reduction step groups and sorts them.
type clauseEntry struct {
	hash     uint32
	hasConst bool
	sel      float64
}

// FeatureSubSpace computes the fss identifier and feature vector for a
// plan sub-problem, given its relation signatures, clause list and
// per-clause selectivities (§4.B "Feature-sub-space hash").
//
// len(clauses) must equal len(selectivities).
func FeatureSubSpace(relSigs []uint64, clauses []Clause, selectivities []float64, res EquivalenceResolver, logSelFloor float64) FSSResult {
	classes := buildEClasses(clauses, res)

	n := len(clauses)
	hashes := ClauseHashes(clauses, res, classes)
	hasConst := make([]bool, n)
	for i, c := range clauses {
		hasConst[i] = clauseHasConst(c)
	}

	// Step 2: sort clauses by hash; permute selectivities identically.
	idx := numutil.ArgSort(hashes)
	sortedHashes := numutil.Permute(hashes, idx)
	sortedHasConst := numutil.Permute(hasConst, idx)
	sortedSel := numutil.Permute(selectivities, idx)

	// Step 3: run-reduction. For each maximal run of identical hashes, drop
	// constant-free clauses if the run also has constant-bearing ones, then
	// sort the surviving selectivities within the run ascending.
	reducedHashes := make([]uint32, 0, n)
	reducedSel := make([]float64, 0, n)

	i := 0
	for i < n {
		j := i
		for j < n && sortedHashes[j] == sortedHashes[i] {
			j++
		}
		run := sortedHasConst[i:j]
		runSel := sortedSel[i:j]

		anyConst, anyNoConst := false, false
		for _, c := range run {
			if c {
				anyConst = true
			} else {
				anyNoConst = true
			}
		}

		var keptSel []float64
		if anyConst && anyNoConst {
			for k, c := range run {
				if c {
					keptSel = append(keptSel, runSel[k])
				}
			}
		} else {
			keptSel = append(keptSel, runSel...)
		}
		sort.Float64s(keptSel)

		for _, s := range keptSel {
			reducedHashes = append(reducedHashes, sortedHashes[i])
			reducedSel = append(reducedSel, s)
		}
		i = j
	}

	// Step 4: hash the reduced clause-hash array, the sorted array of
	// equivalence-class hashes over all arguments, and the relation
	// signature multiset, together.
	ecHashes := allArgEClassHashes(clauses, res, classes)
	sort.Slice(ecHashes, func(a, b int) bool { return ecHashes[a] < ecHashes[b] })

	combined := make([]uint64, 0, len(reducedHashes)+len(ecHashes)+1)
	for _, h := range reducedHashes {
		combined = append(combined, uint64(h))
	}
	combined = append(combined, ecHashes...)
	combined = append(combined, hashRelationSignatures(relSigs))

	fss := uint32(hashUint64Multiset(combined))

	features := make([]float64, len(reducedSel))
	for i, s := range reducedSel {
		lf := logSelectivity(s)
		if lf < logSelFloor {
			lf = logSelFloor
		}
		features[i] = lf
	}

	return FSSResult{FSS: fss, Features: features}
}

func clauseHasConst(c Clause) bool {
	left, right, ok := binaryArgs(c.Expr)
	if !ok {
		return containsConst(c.Expr)
	}
	return containsConst(left) || containsConst(right)
}

// hashRelationSignatures combines a multiset of relation signatures into a
// single order-independent hash — relevant only as one input to the fss
// hash, never exposed as a standalone function of its own.
func hashRelationSignatures(sigs []uint64) uint64 {
	return hashUint64Multiset(sigs)
}
