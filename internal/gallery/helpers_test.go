package gallery

import (
	"math"
	"testing"
)

// basis returns the i-th standard basis vector of the default dimension.
func basis(i int) []float32 {
	v := make([]float32, EmbeddingDim)
	v[i] = 1
	return v
}

// blend returns a unit vector whose dot product with basis(i) is cos.
func blend(i, j int, cos float64) []float32 {
	v := make([]float32, EmbeddingDim)
	v[i] = float32(cos)
	v[j] = float32(math.Sqrt(1 - cos*cos))
	return v
}

func galleryOf(t *testing.T, recs ...Record) Gallery {
	t.Helper()
	g := Empty()
	var err error
	for _, rec := range recs {
		g, err = g.Append(rec)
		if err != nil {
			t.Fatalf("append %q: %v", rec.Label, err)
		}
	}
	return g
}
