package numutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgSort(t *testing.T) {
	keys := []uint32{5, 1, 3, 1, 2}
	idx := ArgSort(keys)
	assert.Equal(t, []int{1, 3, 4, 2, 0}, idx)

	sorted := Permute(keys, idx)
	assert.Equal(t, []uint32{1, 1, 2, 3, 5}, sorted)
}

func TestArgSort_Stable(t *testing.T) {
	keys := []uint32{2, 2, 1, 2}
	idx := ArgSort(keys)
	// All the "2"s must keep their relative order.
	assert.Equal(t, []int{2, 0, 1, 3}, idx)
}

func TestInversePermutation(t *testing.T) {
	idx := []int{2, 0, 1}
	inv := inversePermutation(idx)
	assert.Equal(t, []int{1, 2, 0}, inv)

	for i, j := range idx {
		assert.Equal(t, i, inv[j])
	}
}

func TestEuclideanDistance(t *testing.T) {
	assert.InDelta(t, 5.0, EuclideanDistance([]float64{0, 0}, []float64{3, 4}), 1e-9)
	assert.Equal(t, 0.0, EuclideanDistance(nil, nil))
	assert.Equal(t, 0.0, EuclideanDistance([]float64{1, 1}, []float64{1, 1}))
}
