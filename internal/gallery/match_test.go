package gallery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_EmptyGallery(t *testing.T) {
	res, err := Match(basis(0), Empty(), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, NoGallery, res.Outcome)
	assert.Empty(t, res.Label)
	assert.Zero(t, res.Score)
}

func TestMatch_SelfMatch(t *testing.T) {
	q := Normalize([]float32{0.3, -0.2, 0.9})
	q = append(q, make([]float32, EmbeddingDim-3)...)
	g := galleryOf(t, Record{ID: "1", Label: "alice", Embedding: q})

	res, err := Match(q, g, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, Matched, res.Outcome)
	assert.Equal(t, "alice", res.Label)
	assert.Equal(t, "1", res.RecordID)
	assert.InDelta(t, 1.0, res.Score, 1e-5)
}

func TestMatch_Scenarios(t *testing.T) {
	g := galleryOf(t,
		Record{ID: "a", Label: "alice", Embedding: basis(0)},
		Record{ID: "b", Label: "bob", Embedding: basis(1)},
	)

	tests := []struct {
		name    string
		query   []float32
		outcome Outcome
		label   string
		score   float64
	}{
		{"alice", blend(0, 2, 0.9), Matched, "alice", 0.9},
		{"bob", blend(1, 2, 0.6), Matched, "bob", 0.6},
		{"stranger", blend(0, 3, 0.10), Unmatched, "", 0.10},
		{"orthogonal", basis(4), Unmatched, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Match(tt.query, g, DefaultThreshold)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.label, res.Label)
			assert.InDelta(t, tt.score, res.Score, 1e-6)
		})
	}
}

func TestMatch_ThresholdBoundaryIsInclusive(t *testing.T) {
	g := galleryOf(t, Record{ID: "a", Label: "alice", Embedding: basis(0)})
	q := blend(0, 1, 0.5)
	score := Dot(q, basis(0))

	res, err := Match(q, g, score)
	require.NoError(t, err)
	assert.Equal(t, Matched, res.Outcome)

	res, err = Match(q, g, score+1e-9)
	require.NoError(t, err)
	assert.Equal(t, Unmatched, res.Outcome)
	assert.InDelta(t, score, res.Score, 1e-12)
}

func TestMatch_SelectionIndependentOfThreshold(t *testing.T) {
	g := galleryOf(t,
		Record{ID: "a", Label: "alice", Embedding: basis(0)},
		Record{ID: "b", Label: "bob", Embedding: blend(0, 1, 0.8)},
	)
	q := blend(0, 1, 0.7)

	first, err := Match(q, g, -1)
	require.NoError(t, err)
	for _, th := range []float64{-1, 0, 0.35, 0.7, 0.99} {
		res, err := Match(q, g, th)
		require.NoError(t, err)
		assert.InDelta(t, first.Score, res.Score, 0, "threshold %v", th)
		if res.Outcome == Matched {
			assert.Equal(t, first.Label, res.Label, "threshold %v", th)
		}
	}
}

func TestMatch_TiesPickFirstEnrolled(t *testing.T) {
	g := galleryOf(t,
		Record{ID: "1", Label: "first", Embedding: basis(0)},
		Record{ID: "2", Label: "second", Embedding: basis(0)},
	)

	res, err := Match(basis(0), g, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Label)
	assert.Equal(t, "1", res.RecordID)
}

func TestMatch_DimensionMismatch(t *testing.T) {
	g := galleryOf(t, Record{ID: "a", Label: "alice", Embedding: basis(0)})

	_, err := Match([]float32{1, 0, 0}, g, DefaultThreshold)
	var dimErr *DimensionMismatchError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, EmbeddingDim, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Actual)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "no_gallery", NoGallery.String())
	assert.Equal(t, "matched", Matched.String())
	assert.Equal(t, "unmatched", Unmatched.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
