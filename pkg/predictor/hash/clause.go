package hash

// minEClassSize is the smallest equivalence-class size that triggers
// placeholder substitution; a class of one member carries no symmetry to
// collapse.
const minEClassSize = 2

// EquivalenceClasses is the per-clause-list equivalence-class summary
// produced by BuildEquivalenceClasses and consumed by ClauseHash,
// ClauseHashes, and FeatureSubSpace. Callers outside this package treat
// it as opaque.
type EquivalenceClasses = map[int]*eclassInfo

// BuildEquivalenceClasses extracts equivalence-class membership from a
// clause list, for callers (such as the prediction pipeline's scratch-cache
// bookkeeping) that need the exact same per-clause hashes FeatureSubSpace
// will compute.
func BuildEquivalenceClasses(clauses []Clause, res EquivalenceResolver) EquivalenceClasses {
	return buildEClasses(clauses, res)
}

// ClauseHashes computes ClauseHash for every clause in order.
func ClauseHashes(clauses []Clause, res EquivalenceResolver, classes EquivalenceClasses) []uint32 {
	out := make([]uint32, len(clauses))
	for i, c := range clauses {
		out[i] = uint32(ClauseHash(c, res, classes))
	}
	return out
}

// ClauseHash computes the hash of a single clause, substituting any
// argument that belongs to a size>=2 equivalence class with a synthetic
// placeholder carrying that class's ec_hash, and collapsing "a = b" and
// "b = a" to the same hash when, after substitution, no constant remains
// (§4.B "Clause hash").
func ClauseHash(c Clause, res EquivalenceResolver, classes map[int]*eclassInfo) uint64 {
	left, right, ok := binaryArgs(c.Expr)
	if !ok {
		return ExprHash(c.Expr)
	}

	subLeft := substituteEClass(left, res, classes)
	subRight := substituteEClass(right, res, classes)

	if c.Equality && !containsConst(subLeft) && !containsConst(subRight) {
		return ExprHash(subLeft)
	}

	substituted := &Expr{
		Kind:     ExprOp,
		Operator: c.Expr.Operator,
		Args:     []*Expr{subLeft, subRight},
	}
	return ExprHash(substituted)
}

func substituteEClass(arg *Expr, res EquivalenceResolver, classes map[int]*eclassInfo) *Expr {
	classID, ok := res.ClassOf(arg)
	if !ok {
		return arg
	}
	info, ok := classes[classID]
	if !ok || info.count < minEClassSize {
		return arg
	}
	return &Expr{Kind: exprECPlaceholder, ecHash: info.hash}
}
