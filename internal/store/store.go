package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgxpool.Pool used by repositories.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool

	Users            UserRepository
	APITokens        APITokenRepository
	Lookups          LookupRepository
	IndividualEvents IndividualEventRepository
	Events           EventRepository
}

// New wires concrete repository implementations with shared connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:             pool,
		Users:            &userRepo{db: pool},
		APITokens:        &apiTokenRepo{db: pool},
		Lookups:          &lookupRepo{db: pool},
		IndividualEvents: &individualEventRepo{db: pool},
		Events:           &eventRepo{db: pool},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) (err error) {
	defer observeDB(ctx, "db.healthcheck", &err)()
	return s.pool.Ping(ctx)
}
