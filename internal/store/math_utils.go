package store

import "math"

// normEpsilon floors the L2 norm so zero vectors normalize to zero instead of NaN.
const normEpsilon = 1e-12

func l2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		f := float64(x)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// normalizeInto writes v / max(‖v‖, ε) into dst. dst and v may alias.
func normalizeInto(dst, v []float32) {
	n := math.Max(l2Norm(v), normEpsilon)
	for i, x := range v {
		dst[i] = float32(float64(x) / n)
	}
}

// normalize returns a normalized copy of v.
func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	normalizeInto(out, v)
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
