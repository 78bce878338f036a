package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"slices"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ DEFAULT NOW()
	)
`

// Migrate applies every embedded migration that is not yet recorded in schema_migrations.
// Each file runs in its own transaction together with its bookkeeping row.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied, err := p.MigrationsApplied(ctx)
	if err != nil {
		return err
	}

	pending, err := pendingMigrations(migrationsFS, applied)
	if err != nil {
		return err
	}

	for _, file := range pending {
		if err := p.applyMigration(ctx, file); err != nil {
			return err
		}
		log.Printf("Applied migration: %s", file)
	}
	return nil
}

func (p *Pool) applyMigration(ctx context.Context, file string) error {
	content, err := migrationsFS.ReadFile("migrations/" + file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", file, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("execute migration %s: %w", file, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", file); err != nil {
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

// pendingMigrations returns the sorted .sql file names in fsys/migrations that are not in applied.
func pendingMigrations(fsys fs.FS, applied []string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".sql") && !slices.Contains(applied, name) {
			files = append(files, name)
		}
	}
	slices.Sort(files)
	return files, nil
}

// MigrationsApplied returns the applied migration versions in order.
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}
	return versions, nil
}
