// Package numutil provides the small set of array and vector primitives the
// hasher and kNN regressor build on: stable sort by key, index permutation
// and inverse permutation, and Euclidean distance.
package numutil

import (
	"math"
	"sort"
)

// ArgSort returns the permutation of indices [0,n) that would sort keys in
// ascending order. Ties keep their original relative order (stable), which
// matters for the hasher's run-grouping step (§4.B): clauses with identical
// hashes must stay grouped regardless of how the sort implementation breaks
// ties internally.
func ArgSort(keys []uint32) []int {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return keys[idx[i]] < keys[idx[j]]
	})
	return idx
}

// inversePermutation returns inv such that inv[idx[i]] == i for all i.
// Given a permutation that sorts some array, the inverse tells you, for
// each original position, where its element landed. Unexported: the
// hasher's run-reduction step only ever needs the forward permutation
// (Permute), never the inverse.
func inversePermutation(idx []int) []int {
	inv := make([]int, len(idx))
	for i, v := range idx {
		inv[v] = i
	}
	return inv
}

// Permute returns a new slice containing src reordered by idx, i.e.
// out[i] = src[idx[i]].
func Permute[T any](src []T, idx []int) []T {
	out := make([]T, len(src))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}

// EuclideanDistance computes the L2 distance between two equal-length
// vectors.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
