// Package gallery stores enrolled face embeddings and matches query embeddings against them.
//
// A Gallery is always handled as a whole: it is loaded from a Store, changed in memory and
// written back in full. Registry serializes those load-mutate-save sequences.
package gallery

import (
	"time"
)

// EmbeddingDim is the dimension of ArcFace embeddings produced by the InsightFace models.
const EmbeddingDim = 512

// DefaultThreshold is the baseline cosine similarity needed to accept a match.
// Different embedding models have different score distributions, so deployments tune it.
const DefaultThreshold = 0.35

// Record is one enrolled face sample.
type Record struct {
	ID        string
	Label     string
	Embedding []float32 // unit length
	CreatedAt time.Time
}

// Gallery is the ordered collection of all enrolled records.
type Gallery struct {
	Dim     int
	Records []Record
}

// Empty returns a gallery with no records and the default embedding dimension.
func Empty() Gallery {
	return Gallery{Dim: EmbeddingDim}
}

// Len returns the number of records.
func (g Gallery) Len() int {
	return len(g.Records)
}

// Append returns a new gallery with rec added at the end. The receiver is not modified.
func (g Gallery) Append(rec Record) (Gallery, error) {
	if rec.Label == "" {
		return g, ErrEmptyLabel
	}
	if len(rec.Embedding) != g.Dim {
		return g, &DimensionMismatchError{Expected: g.Dim, Actual: len(rec.Embedding)}
	}

	records := make([]Record, len(g.Records), len(g.Records)+1)
	copy(records, g.Records)
	records = append(records, rec)

	return Gallery{Dim: g.Dim, Records: records}, nil
}

// Without returns a new gallery without the record with the given ID.
func (g Gallery) Without(id string) (Gallery, error) {
	for i := range g.Records {
		if g.Records[i].ID != id {
			continue
		}
		records := make([]Record, 0, len(g.Records)-1)
		records = append(records, g.Records[:i]...)
		records = append(records, g.Records[i+1:]...)
		return Gallery{Dim: g.Dim, Records: records}, nil
	}
	return g, ErrRecordNotFound
}
