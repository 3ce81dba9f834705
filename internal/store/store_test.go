package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/fundfacts/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testEntry(fundKey string, conf model.Confidence, createdAt time.Time) *model.FactEntry {
	benchmark := "NIFTY 500 TRI"
	return &model.FactEntry{
		FundKey:   fundKey,
		AsOfMonth: model.MonthStart(createdAt),
		Records: []model.FactRecord{{
			Identity: model.RecordIdentity{
				SchemeName: "Parag Parikh Flexi Cap Fund",
				QueryName:  "parag parikh flexi cap",
				AMFICode:   fundKey,
			},
			Facts:      model.FactBlock{Benchmark: &benchmark},
			Confidence: conf,
		}},
		Confidence: conf,
		Sources: []model.SourceCitation{
			{Field: "benchmark", URL: "https://www.amfiindia.com/", AsOf: "2025-05-31"},
		},
		Provenance: model.ProvenanceLLMCited,
		CreatedAt:  createdAt,
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("RoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		want := testEntry("122639", model.ConfidenceHigh, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, s.PutFactEntry(ctx, want))

		got, err := s.GetFactEntry(ctx, "122639", 30)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.FundKey, got.FundKey)
		assert.Equal(t, want.Confidence, got.Confidence)
		assert.Equal(t, want.Records, got.Records)
		assert.Equal(t, want.Sources, got.Sources)
		assert.Equal(t, model.ProvenanceLLMCited, got.Provenance)
	})

	t.Run("MissReturnsNil", func(t *testing.T) {
		s := newStore(t)

		got, err := s.GetFactEntry(context.Background(), "999999", 30)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("UpsertKeepsOneRow", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := testEntry("118825", model.ConfidenceMedium, time.Now().UTC().Add(-2*time.Hour))
		require.NoError(t, s.PutFactEntry(ctx, first))

		second := testEntry("118825", model.ConfidenceHigh, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, s.PutFactEntry(ctx, second))

		n, err := s.CountFactEntries(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.GetFactEntry(ctx, "118825", 30)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.ConfidenceHigh, got.Confidence)
	})

	t.Run("ExpiredEntryNotReturned", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		stale := testEntry("122639", model.ConfidenceHigh, time.Now().UTC().Add(-40*24*time.Hour))
		require.NoError(t, s.PutFactEntry(ctx, stale))

		got, err := s.GetFactEntry(ctx, "122639", 30)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("BudgetDefaultsToZero", func(t *testing.T) {
		s := newStore(t)

		n, err := s.GetBudget(context.Background(), "2025-06-15")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("BudgetUpsertAndRead", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertBudget(ctx, "2025-06-15", 1))
		require.NoError(t, s.UpsertBudget(ctx, "2025-06-15", 2))

		n, err := s.GetBudget(ctx, "2025-06-15")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		// A different day key is independent.
		n, err = s.GetBudget(ctx, "2025-06-16")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Ping(context.Background()))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestMemoryStore(t *testing.T) {
	storeTestSuite(t, func(t *testing.T) Store { return NewMemory() })
}
