// Package knn implements the fixed-capacity k-nearest-neighbour regressor
// over log-selectivity feature vectors (§4.C).
package knn

import (
	"math"

	"github.com/kestrel-db/aqo-predictor/pkg/predictor/numutil"
)

const (
	// K bounds the number of stored rows per (fs,fss) matrix.
	K = 30
	// DefaultNeighbors is aqo_k, the neighbour count used for both
	// prediction and the K-full learning branch.
	DefaultNeighbors = 3
	// LearningRate is the convex-combination rate used to nudge an
	// existing row toward a new sample.
	LearningRate = 0.1
	// ObjectSelectionThreshold is the distance below which a new sample is
	// folded into its nearest row instead of becoming a new row.
	ObjectSelectionThreshold = 0.1
	// Epsilon avoids division by zero when a sample coincides exactly with
	// a stored row.
	Epsilon = 0.001
	// Refuse is the sentinel Predict returns when it declines to answer.
	Refuse = -1.0
)

// Matrix is the learning state for one (fs,fss) sub-space: up to K rows of
// a cols-wide feature vector, each with a target (log cardinality) and a
// reliability factor.
type Matrix struct {
	Cols     int
	Rows     int
	Features [K][]float64
	Targets  [K]float64
	RFactors [K]float64
}

// NewMatrix allocates an empty matrix for the given feature width.
func NewMatrix(cols int) *Matrix {
	m := &Matrix{Cols: cols}
	for i := range m.Features {
		if cols > 0 {
			m.Features[i] = make([]float64, cols)
		}
	}
	return m
}

func similarity(dist float64) float64 {
	return 1.0 / (Epsilon + dist)
}

// nearest returns, among the first m.Rows stored rows, the indices of the
// up-to-k closest to features (by ascending distance) and their weights,
// following the original's insertion-based top-k selection.
func (m *Matrix) nearest(features []float64, k int) (idx []int, weights []float64, distances []float64) {
	distances = make([]float64, m.Rows)
	for i := 0; i < m.Rows; i++ {
		distances[i] = numutil.EuclideanDistance(m.Features[i], features)
	}

	idx = make([]int, 0, k)
	for i := 0; i < m.Rows; i++ {
		inserted := false
		for j := 0; j < len(idx) && j < k; j++ {
			if distances[i] < distances[idx[j]] {
				idx = insertAt(idx, j, i, k)
				inserted = true
				break
			}
		}
		if !inserted && len(idx) < k {
			idx = append(idx, i)
		}
	}

	weights = make([]float64, len(idx))
	for i, id := range idx {
		weights[i] = similarity(distances[id])
	}
	return idx, weights, distances
}

func insertAt(idx []int, pos, val, capacity int) []int {
	if len(idx) < capacity {
		idx = append(idx, 0)
	}
	copy(idx[pos+1:], idx[pos:len(idx)-1])
	idx[pos] = val
	return idx
}

// Predict returns a log-cardinality estimate for features, or Refuse if
// there are too few stored neighbours and the caller hasn't opted into
// predicting with few neighbors (§4.C "Predict").
func Predict(m *Matrix, features []float64, k int, predictWithFewNeighbors bool) float64 {
	if !predictWithFewNeighbors && m.Rows < k {
		return Refuse
	}

	idx, weights, _ := m.nearest(features, k)
	if len(idx) == 0 {
		return Refuse
	}

	var wSum, result float64
	for _, w := range weights {
		wSum += w
	}
	for i, id := range idx {
		result += m.Targets[id] * weights[i] / wSum
	}

	if result < 0 {
		result = 0
	}
	return result
}

// Learn folds (features, target, rfactor) into the matrix, following the
// three branches of §4.C "Learn": nudge the nearest row, append a new row,
// or redistribute across the k nearest when the matrix is already full.
func Learn(m *Matrix, features []float64, target, rfactor float64, k int, warn func(string)) {
	if m.Rows == 0 {
		appendRow(m, features, target, rfactor)
		return
	}

	distances := make([]float64, m.Rows)
	mid := 0
	for i := 0; i < m.Rows; i++ {
		distances[i] = numutil.EuclideanDistance(m.Features[i], features)
		if distances[i] < distances[mid] {
			mid = i
		}
	}

	if distances[mid] < ObjectSelectionThreshold {
		nudgeRow(m, mid, features, target, rfactor, warn)
		return
	}

	if m.Rows < K {
		appendRow(m, features, target, rfactor)
		return
	}

	redistribute(m, features, target, rfactor, distances, k, warn)
}

func appendRow(m *Matrix, features []float64, target, rfactor float64) {
	row := m.Rows
	m.Features[row] = append([]float64(nil), features...)
	m.Targets[row] = target
	m.RFactors[row] = rfactor
	m.Rows++
}

func clampLearningRate(lr float64, warn func(string)) float64 {
	if lr > 1 {
		if warn != nil {
			warn("learning rate exceeded 1, clamping")
		}
		return 1
	}
	return lr
}

func nudgeRow(m *Matrix, row int, features []float64, target, rfactor float64, warn func(string)) {
	lr := clampLearningRate(LearningRate*rfactor/m.RFactors[row], warn)

	for j := 0; j < m.Cols; j++ {
		m.Features[row][j] += lr * (features[j] - m.Features[row][j])
	}
	m.Targets[row] += lr * (target - m.Targets[row])
	m.RFactors[row] += lr * (rfactor - m.RFactors[row])
}

func redistribute(m *Matrix, features []float64, target, rfactor float64, distances []float64, k int, warn func(string)) {
	idx, weights, _ := m.nearest(features, k)
	var wSum float64
	for _, w := range weights {
		wSum += w
	}
	if wSum == 0 {
		return
	}

	var avgTarget float64
	for i, id := range idx {
		avgTarget += m.Targets[id] * weights[i] / wSum
	}
	tcCoef := LearningRate * (avgTarget - target)

	for i, id := range idx {
		lr := clampLearningRate(LearningRate*rfactor/m.RFactors[id], warn)

		fcCoef := tcCoef * lr * (m.Targets[id] - avgTarget) * weights[i] * weights[i] /
			math.Sqrt(float64(m.Cols)) / wSum

		m.Targets[id] -= tcCoef * lr * weights[i] / wSum
		for j := 0; j < m.Cols; j++ {
			m.Features[id][j] -= fcCoef * (features[j] - m.Features[id][j]) / distances[id]
		}
	}
}
