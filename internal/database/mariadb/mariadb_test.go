package mariadb

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-registry/internal/gallery"
)

func TestNormalizeDSN(t *testing.T) {
	got, err := normalizeDSN("registry:secret@tcp(mariadb:3306)/registry")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := mysql.ParseDSN(got)
	if err != nil {
		t.Fatalf("normalized DSN does not parse: %v", err)
	}
	if !cfg.ParseTime {
		t.Error("expected parseTime to be enabled")
	}
	if cfg.Loc != time.UTC {
		t.Errorf("expected UTC location, got %v", cfg.Loc)
	}
	if cfg.User != "registry" || cfg.Passwd != "secret" || cfg.Addr != "mariadb:3306" || cfg.DBName != "registry" {
		t.Errorf("connection fields not preserved: %+v", cfg)
	}
}

func TestNormalizeDSN_Invalid(t *testing.T) {
	if _, err := normalizeDSN("not a dsn"); err == nil {
		t.Error("expected error for invalid DSN")
	}
}

func TestNewPool_EmptyDSN(t *testing.T) {
	if _, err := NewPool(""); err == nil {
		t.Error("expected error for empty DSN")
	}
}

func TestInsertBatch(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	records := []gallery.Record{
		{ID: "a", Label: "Alice", Embedding: []float32{1, 0}, CreatedAt: created},
		{ID: "b", Label: "Bob", Embedding: []float32{0, 1}},
	}

	query, args := insertBatch(records)

	if strings.Count(query, "(?, ?, ?, ?)") != 2 {
		t.Errorf("expected 2 value tuples, got query %q", query)
	}
	if len(args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(args))
	}
	if args[0] != "a" || args[1] != "Alice" {
		t.Errorf("unexpected first row args: %v", args[:4])
	}
	blob, ok := args[2].([]byte)
	if !ok || len(blob) != 8 {
		t.Errorf("expected 8-byte embedding blob, got %T len %d", args[2], len(blob))
	}
	if nt, ok := args[3].(sql.NullTime); !ok || !nt.Valid || !nt.Time.Equal(created) {
		t.Errorf("expected valid created_at %v, got %v", created, args[3])
	}
	if nt, ok := args[7].(sql.NullTime); !ok || nt.Valid {
		t.Errorf("expected NULL created_at for zero time, got %v", args[7])
	}
}
