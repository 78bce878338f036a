package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database/mariadb"
	"github.com/kozaktomas/face-registry/internal/database/postgres"
	"github.com/kozaktomas/face-registry/internal/embedding"
	"github.com/kozaktomas/face-registry/internal/gallery"
	"github.com/kozaktomas/face-registry/internal/objectstore"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore opens the gallery backend selected by GALLERY_BACKEND.
// The returned closer releases database connections and must be closed on exit.
func openStore(ctx context.Context, cfg *config.Config) (gallery.Store, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	switch cfg.Gallery.Backend {
	case config.BackendMemory:
		fmt.Println("Using in-memory gallery (nothing is persisted)")
		return gallery.NewMemoryStore(), nopCloser{}, nil

	case config.BackendMinio:
		store, err := objectstore.New(&cfg.Minio, cfg.Gallery.Compress)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		fmt.Printf("Using MinIO gallery at %s\n", store.Location())
		return store, nopCloser{}, nil

	case config.BackendPostgres:
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		fmt.Printf("Using PostgreSQL gallery\n")
		return postgres.NewGalleryStore(pool), pool, nil

	case config.BackendMariaDB:
		fmt.Printf("Connecting to MariaDB...\n")
		pool, err := mariadb.NewPool(cfg.MariaDB.DSN)
		if err != nil {
			return nil, nil, err
		}
		store, err := mariadb.NewGalleryStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		fmt.Printf("Using MariaDB gallery\n")
		return store, pool, nil

	default:
		store := gallery.NewFileStore(cfg.Gallery.Path, cfg.Gallery.Compress)
		fmt.Printf("Using gallery file %s\n", store.Path())
		return store, nopCloser{}, nil
	}
}

// openProvider prepares the configured detector/recognizer strategies in order and returns the
// first one that works.
func openProvider(ctx context.Context, cfg *config.Config) (embedding.Provider, error) {
	candidates, err := embedding.ClientsFromConfig(&cfg.Embedding)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Connecting to embedding server at %s...\n", cfg.Embedding.URL)
	provider, err := embedding.SelectProvider(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("no usable face recognition strategy: %w", err)
	}
	fmt.Printf("Using face recognition strategy %s\n", provider.Name())
	return provider, nil
}
