package hash

// EquivalenceResolver answers, for a clause argument, which equivalence
// class (a set of expressions the planner has proven mutually equal) it
// belongs to. Equivalence itself is computed by the planner; the hasher
// only needs a stable id per class, so this is the one piece of external
// input the hasher depends on (§4.B).
type EquivalenceResolver interface {
	ClassOf(arg *Expr) (classID int, ok bool)
}

// NilResolver never places an argument in an equivalence class. It is the
// correct resolver for callers (e.g. ad hoc single-clause hashing) that
// have no equivalence information to offer.
type NilResolver struct{}

func (NilResolver) ClassOf(*Expr) (int, bool) { return 0, false }

// eclassInfo summarises one equivalence class as it participates in a
// particular clause list: its combined hash and how many of its members
// were actually referenced by an equality clause in that list.
type eclassInfo struct {
	hash  uint64
	count int
}

// buildEClasses extracts all non-constant arguments of equality clauses,
// groups them by equivalence class, and computes each class's ec_hash: the
// order-independent hash of the multiset of arg_hashes of its members.
func buildEClasses(clauses []Clause, res EquivalenceResolver) map[int]*eclassInfo {
	members := make(map[int][]uint64)

	for _, c := range clauses {
		if !c.Equality {
			continue
		}
		left, right, ok := binaryArgs(c.Expr)
		if !ok {
			continue
		}
		for _, arg := range []*Expr{left, right} {
			if arg.IsConst() {
				continue
			}
			classID, ok := res.ClassOf(arg)
			if !ok {
				continue
			}
			members[classID] = append(members[classID], ExprHash(arg))
		}
	}

	classes := make(map[int]*eclassInfo, len(members))
	for classID, hashes := range members {
		classes[classID] = &eclassInfo{
			hash:  hashUint64Multiset(hashes),
			count: len(hashes),
		}
	}
	return classes
}

// allArgEClassHashes returns the ec_hash of every clause argument that maps
// to an equivalence class, used as one of the three fss hash inputs.
func allArgEClassHashes(clauses []Clause, res EquivalenceResolver, classes map[int]*eclassInfo) []uint64 {
	var out []uint64
	seen := make(map[*Expr]bool)
	for _, c := range clauses {
		left, right, ok := binaryArgs(c.Expr)
		if !ok {
			continue
		}
		for _, arg := range []*Expr{left, right} {
			if arg == nil || seen[arg] {
				continue
			}
			seen[arg] = true
			if classID, ok := res.ClassOf(arg); ok {
				if info, ok := classes[classID]; ok {
					out = append(out, info.hash)
				}
			}
		}
	}
	return out
}
