package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/fundfacts/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetFactEntry_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT fund_key, as_of_month, payload, confidence, sources, provenance, created_at`).
		WithArgs("122639", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"fund_key", "as_of_month", "payload", "confidence", "sources", "provenance", "created_at"}))

	got, err := s.GetFactEntry(context.Background(), "122639", 30)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetFactEntry_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	entry := testEntry("122639", model.ConfidenceHigh, time.Now().UTC().Add(-time.Hour))
	payloadJSON, err := json.Marshal(entry.Records)
	require.NoError(t, err)
	sourcesJSON, err := json.Marshal(entry.Sources)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT fund_key, as_of_month, payload, confidence, sources, provenance, created_at`).
		WithArgs("122639", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.
			NewRows([]string{"fund_key", "as_of_month", "payload", "confidence", "sources", "provenance", "created_at"}).
			AddRow(entry.FundKey, entry.AsOfMonth, payloadJSON, entry.Confidence, sourcesJSON, entry.Provenance, entry.CreatedAt))

	got, err := s.GetFactEntry(context.Background(), "122639", 30)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Records, got.Records)
	assert.Equal(t, model.ConfidenceHigh, got.Confidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutFactEntry(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "fund_facts_llm"`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry := testEntry("118825", model.ConfidenceMedium, time.Now().UTC())
	require.NoError(t, s.PutFactEntry(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBudget_NoRow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT call_count FROM fund_facts_daily_budget`).
		WithArgs("2025-06-15").
		WillReturnRows(pgxmock.NewRows([]string{"call_count"}))

	n, err := s.GetBudget(context.Background(), "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertBudget(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "fund_facts_daily_budget"`).
		WithArgs("2025-06-15", 3, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertBudget(context.Background(), "2025-06-15", 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
