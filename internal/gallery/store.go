package gallery

import "context"

// Store persists a whole gallery.
type Store interface {
	// Load returns the persisted gallery, or Empty() when nothing has been saved yet.
	Load(ctx context.Context) (Gallery, error)
	// Save replaces the persisted gallery. Readers observe either the old or the new gallery.
	Save(ctx context.Context, g Gallery) error
}
