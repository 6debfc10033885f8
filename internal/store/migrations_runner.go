package store

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jw6ventures/volunteerportal/internal/migrations"
)

// migrationLockID serialises concurrent server starts against one database.
const migrationLockID = 740_112_001

// MigrationConn is the subset of pgxpool.Pool the migrator needs.
type MigrationConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type migration struct {
	version string
	sql     string
}

// ApplyMigrations runs every embedded migration that schema_migrations does
// not list yet. A database that already holds tables but has no tracking
// table is treated as baselined at the first migration.
func ApplyMigrations(ctx context.Context, conn MigrationConn, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	pending, err := loadMigrations(migrations.Files)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	if err := baseline(ctx, conn, pending[0].version, logger); err != nil {
		return err
	}

	for _, m := range pending {
		done, err := isApplied(ctx, conn, m.version)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		if err := runMigration(ctx, conn, m); err != nil {
			return err
		}
		logger.Info("applied migration", "version", m.version)
	}
	return nil
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return nil, fmt.Errorf("migration %s is empty", name)
		}
		out = append(out, migration{version: name, sql: string(data)})
	}
	return out, nil
}

func baseline(ctx context.Context, conn MigrationConn, first string, logger *slog.Logger) error {
	var tracked bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (
        SELECT 1 FROM information_schema.tables
        WHERE table_schema='public' AND table_name='schema_migrations'
)`).Scan(&tracked); err != nil {
		return fmt.Errorf("check migration table: %w", err)
	}
	if tracked {
		return nil
	}

	var tables int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')`).Scan(&tables); err != nil {
		return fmt.Errorf("count tables: %w", err)
	}

	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version TEXT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	if tables > 0 {
		logger.Warn("database has tables but no migration history; assuming baseline", "version", first)
		if _, err := conn.Exec(ctx, insertMigrationSQL, first); err != nil {
			return fmt.Errorf("record migration %s: %w", first, err)
		}
	}
	return nil
}

const insertMigrationSQL = `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`

func isApplied(ctx context.Context, conn MigrationConn, version string) (bool, error) {
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return exists, nil
}

func runMigration(ctx context.Context, conn MigrationConn, m migration) (err error) {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(migrationLockID)); err != nil {
		return fmt.Errorf("lock migration %s: %w", m.version, err)
	}
	if _, err = tx.Exec(ctx, m.sql); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.version, err)
	}
	if _, err = tx.Exec(ctx, insertMigrationSQL, m.version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.version, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.version, err)
	}
	return nil
}
