package gallery

// Outcome is the kind of decision Match reached.
type Outcome int

const (
	// NoGallery means there was nothing to compare against.
	NoGallery Outcome = iota
	// Matched means the best score reached the threshold.
	Matched
	// Unmatched means the best score stayed below the threshold.
	Unmatched
)

func (o Outcome) String() string {
	switch o {
	case NoGallery:
		return "no_gallery"
	case Matched:
		return "matched"
	case Unmatched:
		return "unmatched"
	default:
		return "unknown"
	}
}

// MatchResult is the decision for one query embedding.
// Label and RecordID are set only for Matched; Score is set for Matched and Unmatched.
type MatchResult struct {
	Outcome  Outcome
	Label    string
	RecordID string
	Score    float64
}

// Match compares query against every record and applies threshold to the best score.
//
// The best record is the first one with the maximum similarity, so ties resolve to
// enrollment order. Selection never depends on threshold; threshold only decides between
// Matched and Unmatched, and a score equal to the threshold is a match. Unmatched still
// reports the best score.
func Match(query []float32, g Gallery, threshold float64) (MatchResult, error) {
	if len(g.Records) == 0 {
		return MatchResult{Outcome: NoGallery}, nil
	}
	if len(query) != g.Dim {
		return MatchResult{}, &DimensionMismatchError{Expected: g.Dim, Actual: len(query)}
	}

	bestIdx := -1
	var bestScore float64
	for i := range g.Records {
		emb := g.Records[i].Embedding
		if len(emb) != g.Dim {
			return MatchResult{}, &DimensionMismatchError{Expected: g.Dim, Actual: len(emb)}
		}
		score := Dot(query, emb)
		if bestIdx < 0 || score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}

	if bestScore >= threshold {
		best := g.Records[bestIdx]
		return MatchResult{
			Outcome:  Matched,
			Label:    best.Label,
			RecordID: best.ID,
			Score:    bestScore,
		}, nil
	}
	return MatchResult{Outcome: Unmatched, Score: bestScore}, nil
}
