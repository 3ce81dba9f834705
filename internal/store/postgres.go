package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/quantfolio/fundfacts/internal/db"
	"github.com/quantfolio/fundfacts/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS fund_facts_llm (
	fund_key    TEXT PRIMARY KEY,
	as_of_month DATE NOT NULL,
	payload     JSONB NOT NULL,
	confidence  TEXT NOT NULL,
	sources     JSONB NOT NULL,
	provenance  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS fund_facts_daily_budget (
	date_key   TEXT PRIMARY KEY,
	call_count INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fund_facts_llm_created_at ON fund_facts_llm(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) GetFactEntry(ctx context.Context, fundKey string, ttlDays int) (*model.FactEntry, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(ttlDays) * 24 * time.Hour)

	row := s.pool.QueryRow(ctx,
		`SELECT fund_key, as_of_month, payload, confidence, sources, provenance, created_at
		 FROM fund_facts_llm
		 WHERE fund_key = $1 AND created_at > $2
		 ORDER BY as_of_month DESC LIMIT 1`,
		fundKey, cutoff,
	)

	var e model.FactEntry
	var payloadJSON, sourcesJSON []byte
	err := row.Scan(&e.FundKey, &e.AsOfMonth, &payloadJSON, &e.Confidence, &sourcesJSON, &e.Provenance, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get fact entry")
	}
	if err := json.Unmarshal(payloadJSON, &e.Records); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal fact payload")
	}
	if err := json.Unmarshal(sourcesJSON, &e.Sources); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal fact sources")
	}
	return &e, nil
}

func (s *PostgresStore) PutFactEntry(ctx context.Context, entry *model.FactEntry) error {
	payloadJSON, err := json.Marshal(entry.Records)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fact payload")
	}
	sourcesJSON, err := json.Marshal(entry.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fact sources")
	}

	err = db.Upsert(ctx, s.pool, "fund_facts_llm",
		[]string{"fund_key", "as_of_month", "payload", "confidence", "sources", "provenance", "created_at"},
		[]string{"fund_key"},
		[]any{entry.FundKey, entry.AsOfMonth, payloadJSON, string(entry.Confidence),
			sourcesJSON, string(entry.Provenance), entry.CreatedAt},
	)
	return eris.Wrapf(err, "postgres: put fact entry %s", entry.FundKey)
}

func (s *PostgresStore) CountFactEntries(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fund_facts_llm`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count fact entries")
}

func (s *PostgresStore) GetBudget(ctx context.Context, dateKey string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT call_count FROM fund_facts_daily_budget WHERE date_key = $1`,
		dateKey,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "postgres: get budget")
	}
	return count, nil
}

func (s *PostgresStore) UpsertBudget(ctx context.Context, dateKey string, count int) error {
	err := db.Upsert(ctx, s.pool, "fund_facts_daily_budget",
		[]string{"date_key", "call_count", "updated_at"},
		[]string{"date_key"},
		[]any{dateKey, count, time.Now().UTC()},
	)
	return eris.Wrapf(err, "postgres: upsert budget %s", dateKey)
}
