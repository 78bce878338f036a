//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/gallery"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Open(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open pool: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func storedCount(t *testing.T, store *GalleryStore) int {
	t.Helper()
	g, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	return g.Len()
}

func unit(axis int) []float32 {
	v := make([]float32, gallery.EmbeddingDim)
	v[axis] = 1
	return v
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	// Re-running must not apply anything twice.
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}

	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	if len(versions) != 1 || versions[0] != "001_gallery_records.sql" {
		t.Errorf("Expected [001_gallery_records.sql], got %v", versions)
	}
}

func TestGalleryStore(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	store := NewGalleryStore(pool)

	t.Run("LoadEmpty", func(t *testing.T) {
		g, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if g.Len() != 0 {
			t.Errorf("Expected empty gallery, got %d records", g.Len())
		}
		if g.Dim != gallery.EmbeddingDim {
			t.Errorf("Expected dim %d, got %d", gallery.EmbeddingDim, g.Dim)
		}
	})

	created := time.Date(2024, 5, 17, 8, 30, 0, 0, time.UTC)

	t.Run("SaveAndLoad", func(t *testing.T) {
		in := gallery.Gallery{Dim: gallery.EmbeddingDim, Records: []gallery.Record{
			{ID: "r1", Label: "Jiří", Embedding: unit(0), CreatedAt: created},
			{ID: "r2", Label: "Anna", Embedding: unit(1)},
			{ID: "r3", Label: "Jiří", Embedding: unit(2), CreatedAt: created.Add(time.Minute)},
		}}
		if err := store.Save(ctx, in); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		out, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if out.Len() != 3 {
			t.Fatalf("Expected 3 records, got %d", out.Len())
		}
		for i, rec := range out.Records {
			if rec.ID != in.Records[i].ID || rec.Label != in.Records[i].Label {
				t.Errorf("Record %d: expected %s/%s, got %s/%s", i, in.Records[i].ID, in.Records[i].Label, rec.ID, rec.Label)
			}
			if rec.Embedding[i] != 1 {
				t.Errorf("Record %d: embedding not preserved", i)
			}
		}
		if !out.Records[0].CreatedAt.Equal(created) {
			t.Errorf("Expected created_at %v, got %v", created, out.Records[0].CreatedAt)
		}
		if !out.Records[1].CreatedAt.IsZero() {
			t.Errorf("Expected zero created_at, got %v", out.Records[1].CreatedAt)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		g, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		g, err = g.Without("r2")
		if err != nil {
			t.Fatalf("Failed to remove: %v", err)
		}
		if err := store.Save(ctx, g); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		count := storedCount(t, store)
		if count != 2 {
			t.Errorf("Expected 2, got %d", count)
		}
	})

	t.Run("RejectsWrongDimension", func(t *testing.T) {
		err := store.Save(ctx, gallery.Gallery{Dim: 3, Records: []gallery.Record{
			{ID: "x", Label: "x", Embedding: []float32{1, 0, 0}},
		}})
		var dimErr *gallery.DimensionMismatchError
		if !errors.As(err, &dimErr) {
			t.Errorf("Expected DimensionMismatchError, got %v", err)
		}

		count := storedCount(t, store)
		if count != 2 {
			t.Errorf("Failed save must not change the table, got %d rows", count)
		}
	})

	t.Run("SaveEmpty", func(t *testing.T) {
		if err := store.Save(ctx, gallery.Empty()); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		count := storedCount(t, store)
		if count != 0 {
			t.Errorf("Expected 0, got %d", count)
		}
	})
}

func TestRegistryOnPostgres(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	reg := gallery.NewRegistry(NewGalleryStore(pool), gallery.DefaultThreshold)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Register(ctx, fmt.Sprintf("person %d", i), unit(i)); err != nil {
				t.Errorf("Register %d failed: %v", i, err)
			}
		}()
	}
	wg.Wait()

	labels, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(labels) != 8 {
		t.Fatalf("Expected 8 labels, got %d", len(labels))
	}

	res, err := reg.Recognize(ctx, unit(5))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Outcome != gallery.Matched || res.Label != "person 5" {
		t.Errorf("Expected match for person 5, got %+v", res)
	}

	// The record returned by Register must equal what a later load reads back.
	rec, err := reg.Register(ctx, "timestamped", unit(100))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	records, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	stored := records[len(records)-1]
	if stored.ID != rec.ID || !stored.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("Expected stored record %s at %v, got %s at %v", rec.ID, rec.CreatedAt, stored.ID, stored.CreatedAt)
	}
}
