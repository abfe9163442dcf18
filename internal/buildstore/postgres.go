package buildstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the fusion_builds table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS fusion_builds (
    id          TEXT PRIMARY KEY,
    request     JSONB NOT NULL,
    target      TEXT NOT NULL DEFAULT '',
    chains      INTEGER NOT NULL DEFAULT 0,
    failures    INTEGER NOT NULL DEFAULT 0,
    steps       INTEGER NOT NULL DEFAULT 0,
    best_cost   INTEGER NOT NULL DEFAULT 0,
    best_level  INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_fusion_builds_target ON fusion_builds(target);
CREATE INDEX IF NOT EXISTS idx_fusion_builds_created ON fusion_builds(created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. The request is stored as
// JSONB; the summary fields are plain columns so they can be filtered.
type PostgresStore struct {
	db    DB
	now   func() time.Time
	close func()
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a [PostgresStore] using db. Call
// [PostgresStore.Migrate] before the first query.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// OpenPostgres connects a pool to dsn, checks it answers and applies
// [Schema]. [PostgresStore.Close] releases the pool.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("buildstore: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("buildstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("buildstore: ping: %w", err)
	}

	s := NewPostgresStore(pool)
	s.close = pool.Close
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool opened by [OpenPostgres]. It is a
// no-op for stores built with [NewPostgresStore].
func (s *PostgresStore) Close() {
	if s.close != nil {
		s.close()
	}
}

// Migrate executes [Schema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("buildstore: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database answers a trivial query.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("buildstore: ping: %w", err)
	}
	return nil
}

// Save implements [Store.Save]. Saving an existing ID replaces the row.
func (s *PostgresStore) Save(ctx context.Context, b *Build) error {
	if err := stamp(b, s.now()); err != nil {
		return fmt.Errorf("buildstore: generate id: %w", err)
	}
	reqJSON, err := json.Marshal(b.Request)
	if err != nil {
		return fmt.Errorf("buildstore: marshal request: %w", err)
	}

	const query = `
		INSERT INTO fusion_builds (
			id, request, target, chains, failures, steps, best_cost, best_level, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			request = EXCLUDED.request,
			target = EXCLUDED.target,
			chains = EXCLUDED.chains,
			failures = EXCLUDED.failures,
			steps = EXCLUDED.steps,
			best_cost = EXCLUDED.best_cost,
			best_level = EXCLUDED.best_level`

	if _, err := s.db.Exec(ctx, query,
		b.ID, reqJSON, b.Target, b.Chains, b.Failures, b.Steps, b.BestCost, b.BestLevel, b.CreatedAt,
	); err != nil {
		return fmt.Errorf("buildstore: save: %w", err)
	}
	return nil
}

const selectColumns = `id, request, target, chains, failures, steps, best_cost, best_level, created_at`

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (Build, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM fusion_builds WHERE id = $1`, id)
	b, err := scanBuild(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Build{}, ErrNotFound
		}
		return Build{}, fmt.Errorf("buildstore: get %q: %w", id, err)
	}
	return b, nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Build, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if opts.Target == "" {
		rows, err = s.db.Query(ctx,
			`SELECT `+selectColumns+` FROM fusion_builds ORDER BY created_at DESC, id LIMIT $1`,
			opts.limit())
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT `+selectColumns+` FROM fusion_builds WHERE target = $1 ORDER BY created_at DESC, id LIMIT $2`,
			opts.Target, opts.limit())
	}
	if err != nil {
		return nil, fmt.Errorf("buildstore: list: %w", err)
	}
	defer rows.Close()

	builds := []Build{}
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("buildstore: list scan: %w", err)
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("buildstore: list: %w", err)
	}
	return builds, nil
}

// Delete implements [Store.Delete].
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM fusion_builds WHERE id = $1`, id); err != nil {
		return fmt.Errorf("buildstore: delete %q: %w", id, err)
	}
	return nil
}

func scanBuild(row pgx.Row) (Build, error) {
	var (
		b       Build
		reqJSON []byte
	)
	if err := row.Scan(
		&b.ID, &reqJSON, &b.Target, &b.Chains, &b.Failures, &b.Steps,
		&b.BestCost, &b.BestLevel, &b.CreatedAt,
	); err != nil {
		return Build{}, err
	}
	if err := json.Unmarshal(reqJSON, &b.Request); err != nil {
		return Build{}, fmt.Errorf("buildstore: unmarshal request: %w", err)
	}
	return b, nil
}
