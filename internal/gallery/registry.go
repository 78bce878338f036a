package gallery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-registry/internal/facematch"
)

// Registry is the single entry point for reading and changing the gallery.
// It serializes every load-mutate-save sequence so concurrent enrollments cannot overwrite
// each other. One Registry should own a Store per process.
type Registry struct {
	store     Store
	threshold float64

	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewRegistry wraps store with the given match threshold.
func NewRegistry(store Store, threshold float64) *Registry {
	return &Registry{
		store:     store,
		threshold: threshold,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Threshold returns the similarity needed for a match.
func (r *Registry) Threshold() float64 {
	return r.threshold
}

// Register enrolls one sample under label. The embedding is re-normalized before storage.
// CreatedAt has microsecond precision so every backend stores it exactly.
// No de-duplication is done: the same label may be enrolled any number of times.
func (r *Registry) Register(ctx context.Context, label string, embedding []float32) (Record, error) {
	label, err := facematch.NormalizeLabel(label)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalidLabel, err)
	}
	unit := Normalize(embedding)
	if unit == nil {
		return Record{}, ErrInvalidEmbedding
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.store.Load(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("loading gallery: %w", err)
	}

	rec := Record{
		ID:        r.newID(),
		Label:     label,
		Embedding: unit,
		CreatedAt: r.now().UTC().Truncate(time.Microsecond),
	}
	g, err = g.Append(rec)
	if err != nil {
		return Record{}, err
	}

	if err := r.store.Save(ctx, g); err != nil {
		return Record{}, fmt.Errorf("saving gallery: %w", err)
	}
	return rec, nil
}

// Recognize matches embedding against the current gallery.
func (r *Registry) Recognize(ctx context.Context, embedding []float32) (MatchResult, error) {
	unit := Normalize(embedding)
	if unit == nil {
		return MatchResult{}, ErrInvalidEmbedding
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.store.Load(ctx)
	if err != nil {
		return MatchResult{}, fmt.Errorf("loading gallery: %w", err)
	}
	return Match(unit, g, r.threshold)
}

// List returns every record in enrollment order.
func (r *Registry) List(ctx context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading gallery: %w", err)
	}
	if g.Records == nil {
		return []Record{}, nil
	}
	return g.Records, nil
}

// Remove deletes the record with the given ID.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading gallery: %w", err)
	}
	g, err = g.Without(id)
	if err != nil {
		return err
	}
	if err := r.store.Save(ctx, g); err != nil {
		return fmt.Errorf("saving gallery: %w", err)
	}
	return nil
}
