package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-registry/internal/gallery"
)

// GalleryStore keeps one row per record in gallery_records. Row order (seq) is enrollment order.
type GalleryStore struct {
	pool *Pool
}

// NewGalleryStore creates a gallery store on an already migrated pool.
func NewGalleryStore(pool *Pool) *GalleryStore {
	return &GalleryStore{pool: pool}
}

// Load reads all rows in enrollment order.
func (s *GalleryStore) Load(ctx context.Context) (gallery.Gallery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, embedding, created_at
		FROM gallery_records
		ORDER BY seq
	`)
	if err != nil {
		return gallery.Gallery{}, fmt.Errorf("query gallery records: %w", err)
	}
	defer rows.Close()

	g := gallery.Empty()
	for rows.Next() {
		var rec gallery.Record
		var vec pgvector.Vector
		var created sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Label, &vec, &created); err != nil {
			return gallery.Gallery{}, fmt.Errorf("scan gallery record: %w", err)
		}

		rec.Embedding = vec.Slice()
		if len(rec.Embedding) != g.Dim {
			return gallery.Gallery{}, fmt.Errorf("%w: record %s: %w", gallery.ErrStorageCorrupt, rec.ID,
				&gallery.DimensionMismatchError{Expected: g.Dim, Actual: len(rec.Embedding)})
		}
		if created.Valid {
			rec.CreatedAt = created.Time.UTC()
		}
		g.Records = append(g.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return gallery.Gallery{}, fmt.Errorf("iterate gallery records: %w", err)
	}
	return g, nil
}

// Save replaces every row in one transaction. The table lock keeps concurrent
// writers from interleaving; readers keep seeing the previous snapshot until commit.
func (s *GalleryStore) Save(ctx context.Context, g gallery.Gallery) error {
	if g.Dim != gallery.EmbeddingDim {
		return &gallery.DimensionMismatchError{Expected: gallery.EmbeddingDim, Actual: g.Dim}
	}

	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "LOCK TABLE gallery_records IN EXCLUSIVE MODE"); err != nil {
		return fmt.Errorf("lock gallery_records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM gallery_records"); err != nil {
		return fmt.Errorf("clear gallery_records: %w", err)
	}

	if len(g.Records) > 0 {
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("gallery_records", "id", "label", "embedding", "created_at"))
		if err != nil {
			return fmt.Errorf("prepare copy: %w", err)
		}
		for _, rec := range g.Records {
			if len(rec.Embedding) != g.Dim {
				stmt.Close()
				return &gallery.DimensionMismatchError{Expected: g.Dim, Actual: len(rec.Embedding)}
			}
			var created sql.NullTime
			if !rec.CreatedAt.IsZero() {
				created = sql.NullTime{Time: rec.CreatedAt, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, rec.ID, rec.Label, pgvector.NewVector(rec.Embedding), created); err != nil {
				stmt.Close()
				return fmt.Errorf("copy record %s: %w", rec.ID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flush copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return fmt.Errorf("close copy: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit gallery: %w", err)
	}
	return nil
}

