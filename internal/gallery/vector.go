package gallery

import "math"

// Dot returns the dot product of a and b. For unit vectors this is their cosine similarity.
// Accumulation happens in float64 to keep 512-term sums stable.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// Normalize returns a unit-length copy of v.
// Returns nil for an empty or zero vector, which has no direction.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	if len(v) == 0 || n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}
