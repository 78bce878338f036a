package mariadb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-registry/internal/gallery"
)

// insertBatchSize is the number of rows per multi-row INSERT.
const insertBatchSize = 100

const createGalleryTable = `
	CREATE TABLE IF NOT EXISTS gallery_records (
		seq        BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		id         VARCHAR(64) NOT NULL,
		label      VARCHAR(1024) NOT NULL,
		embedding  BLOB NOT NULL,
		created_at DATETIME(6) NULL,
		UNIQUE KEY uniq_gallery_records_id (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin
`

// GalleryStore keeps one row per record; embeddings are little-endian float32 blobs.
type GalleryStore struct {
	pool *Pool
}

// NewGalleryStore creates the gallery table if needed and returns a store on it.
func NewGalleryStore(ctx context.Context, pool *Pool) (*GalleryStore, error) {
	if _, err := pool.db.ExecContext(ctx, createGalleryTable); err != nil {
		return nil, fmt.Errorf("create gallery_records: %w", err)
	}
	return &GalleryStore{pool: pool}, nil
}

// Load reads all rows in enrollment order.
func (s *GalleryStore) Load(ctx context.Context) (gallery.Gallery, error) {
	rows, err := s.pool.db.QueryContext(ctx, `SELECT id, label, embedding, created_at FROM gallery_records ORDER BY seq`)
	if err != nil {
		return gallery.Gallery{}, fmt.Errorf("query gallery records: %w", err)
	}
	defer rows.Close()

	g := gallery.Empty()
	for rows.Next() {
		var rec gallery.Record
		var blob []byte
		var created sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Label, &blob, &created); err != nil {
			return gallery.Gallery{}, fmt.Errorf("scan gallery record: %w", err)
		}

		emb, err := gallery.DecodeVector(blob)
		if err != nil {
			return gallery.Gallery{}, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		if len(emb) != g.Dim {
			return gallery.Gallery{}, fmt.Errorf("%w: record %s: %w", gallery.ErrStorageCorrupt, rec.ID,
				&gallery.DimensionMismatchError{Expected: g.Dim, Actual: len(emb)})
		}
		rec.Embedding = emb
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

// Save replaces all rows inside one transaction.
func (s *GalleryStore) Save(ctx context.Context, g gallery.Gallery) error {
	if g.Dim != gallery.EmbeddingDim {
		return &gallery.DimensionMismatchError{Expected: gallery.EmbeddingDim, Actual: g.Dim}
	}
	for _, rec := range g.Records {
		if len(rec.Embedding) != g.Dim {
			return &gallery.DimensionMismatchError{Expected: g.Dim, Actual: len(rec.Embedding)}
		}
	}

	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// DELETE rather than TRUNCATE: TRUNCATE commits implicitly.
	if _, err := tx.ExecContext(ctx, "DELETE FROM gallery_records"); err != nil {
		return fmt.Errorf("clear gallery_records: %w", err)
	}

	for start := 0; start < len(g.Records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(g.Records))
		query, args := insertBatch(g.Records[start:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert records %d-%d: %w", start, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit gallery: %w", err)
	}
	return nil
}


func insertBatch(records []gallery.Record) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO gallery_records (id, label, embedding, created_at) VALUES ")
	args := make([]any, 0, len(records)*4)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")

		var created sql.NullTime
		if !rec.CreatedAt.IsZero() {
			created = sql.NullTime{Time: rec.CreatedAt.UTC(), Valid: true}
		}
		args = append(args, rec.ID, rec.Label, gallery.AppendVector(nil, rec.Embedding), created)
	}
	return sb.String(), args
}
