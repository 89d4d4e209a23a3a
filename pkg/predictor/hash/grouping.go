package hash

// GroupedExprsHash combines a child fss with the sorted hashes of a set of
// grouping expressions, used by the prediction/learning pipelines for
// aggregation nodes (§4.F "the fss is combined with the hash of the sorted
// grouping expressions").
func GroupedExprsHash(childFSS uint32, groupExprs []*Expr) uint32 {
	hashes := make([]uint64, len(groupExprs))
	for i, e := range groupExprs {
		hashes[i] = ExprHash(e)
	}
	combined := []uint64{uint64(childFSS), hashUint64Multiset(hashes)}
	return uint32(hashUint64Multiset(combined))
}
