package nn

import "math"

// LogSumExp computes log Σ exp(x_i) with max-shifting for stability.
// Returns -Inf for an empty input.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(-1)
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	if math.IsInf(m, -1) {
		return m
	}
	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - m)
	}
	return m + math.Log(sum)
}

// Softmax writes exp(x_i - logZ) into dst, which must have the same length
// as xs. dst and xs may alias.
func Softmax(dst, xs []float64) {
	lz := LogSumExp(xs)
	for i, x := range xs {
		dst[i] = math.Exp(x - lz)
	}
}

// MeanPool averages a set of equal-length vectors. Returns nil for an empty
// set.
func MeanPool(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	out := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for i, x := range v {
			out[i] += x
		}
	}
	inv := 1.0 / float64(len(vecs))
	for i := range out {
		out[i] *= inv
	}
	return out
}
