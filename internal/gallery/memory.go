package gallery

import (
	"context"
	"sync"
)

// MemoryStore keeps the gallery in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu sync.RWMutex
	g  Gallery
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{g: Empty()}
}

// Load returns a copy of the stored gallery.
func (s *MemoryStore) Load(ctx context.Context) (Gallery, error) {
	if err := ctx.Err(); err != nil {
		return Gallery{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.g), nil
}

// Save stores a copy of g.
func (s *MemoryStore) Save(ctx context.Context, g Gallery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.g = clone(g)
	return nil
}

func clone(g Gallery) Gallery {
	out := Gallery{Dim: g.Dim}
	if len(g.Records) == 0 {
		return out
	}
	out.Records = make([]Record, len(g.Records))
	for i, rec := range g.Records {
		rec.Embedding = append([]float32(nil), rec.Embedding...)
		out.Records[i] = rec
	}
	return out
}
