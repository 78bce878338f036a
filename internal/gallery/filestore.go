package gallery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps the gallery as a single encoded blob on the local filesystem.
type FileStore struct {
	path     string
	compress bool
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string, compress bool) *FileStore {
	return &FileStore{path: path, compress: compress}
}

// Path returns the blob location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and decodes the blob. A missing file is an empty gallery.
func (s *FileStore) Load(ctx context.Context) (Gallery, error) {
	if err := ctx.Err(); err != nil {
		return Gallery{}, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return Gallery{}, fmt.Errorf("reading gallery %s: %w", s.path, err)
	}

	g, err := Decode(data)
	if err != nil {
		return Gallery{}, fmt.Errorf("decoding gallery %s: %w", s.path, err)
	}
	return g, nil
}

// Save encodes g and writes it next to the target, then renames it into place.
func (s *FileStore) Save(ctx context.Context, g Gallery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(g, s.compress)
	if err != nil {
		return fmt.Errorf("encoding gallery: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating gallery directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing gallery %s: %w", s.path, err)
	}
	committed = true
	return nil
}
