package budget

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/fundfacts/internal/store"
)

// failingStore wraps the in-memory store with injectable budget failures.
type failingStore struct {
	store.Store
	readErr  error
	writeErr error
}

func (f *failingStore) GetBudget(ctx context.Context, dateKey string) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.Store.GetBudget(ctx, dateKey)
}

func (f *failingStore) UpsertBudget(ctx context.Context, dateKey string, count int) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.Store.UpsertBudget(ctx, dateKey, count)
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
}

func TestDateKey_UTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 01:00 IST on June 16 is still June 15 in UTC.
	local := time.Date(2025, 6, 16, 1, 0, 0, 0, ist)
	assert.Equal(t, "2025-06-15", DateKey(local))
}

func TestCheck_UnderLimit(t *testing.T) {
	st := store.NewMemory()
	l := NewLedger(st, 100).WithNow(fixedNow)

	c := l.Check(context.Background())
	assert.True(t, c.Allowed)
	assert.Equal(t, 0, c.CallsToday)
	assert.Equal(t, 100, c.Limit)
}

func TestCheck_Boundary(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	l := NewLedger(st, 5).WithNow(fixedNow)

	require.NoError(t, st.UpsertBudget(ctx, DateKey(fixedNow()), 4))

	// One below the limit: allowed.
	c := l.Check(ctx)
	assert.True(t, c.Allowed)
	assert.Equal(t, 4, c.CallsToday)

	// After recording, the next check disallows.
	l.Record(ctx)
	c = l.Check(ctx)
	assert.False(t, c.Allowed)
	assert.Equal(t, 5, c.CallsToday)
	assert.Contains(t, c.Reason, "daily limit")
}

func TestCheck_AtLimitDisallows(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	l := NewLedger(st, 5).WithNow(fixedNow)

	require.NoError(t, st.UpsertBudget(ctx, DateKey(fixedNow()), 5))

	c := l.Check(ctx)
	assert.False(t, c.Allowed)
}

func TestCheck_FailsOpenOnReadError(t *testing.T) {
	st := &failingStore{Store: store.NewMemory(), readErr: eris.New("store down")}
	l := NewLedger(st, 5).WithNow(fixedNow)

	c := l.Check(context.Background())
	assert.True(t, c.Allowed)
	assert.Equal(t, 0, c.CallsToday)
}

func TestRecord_Increments(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	l := NewLedger(st, 100).WithNow(fixedNow)

	l.Record(ctx)
	l.Record(ctx)

	n, err := st.GetBudget(ctx, DateKey(fixedNow()))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecord_SwallowsWriteError(t *testing.T) {
	st := &failingStore{Store: store.NewMemory(), writeErr: eris.New("write failed")}
	l := NewLedger(st, 100).WithNow(fixedNow)

	// Must not panic or surface the error.
	l.Record(context.Background())
}

func TestRecord_NewDayResetsImplicitly(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	day1 := func() time.Time { return time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC) }
	day2 := func() time.Time { return time.Date(2025, 6, 16, 1, 0, 0, 0, time.UTC) }

	NewLedger(st, 5).WithNow(day1).Record(ctx)

	c := NewLedger(st, 5).WithNow(day2).Check(ctx)
	assert.Equal(t, 0, c.CallsToday)
}

func TestLimitError_RetryAfter(t *testing.T) {
	l := NewLedger(store.NewMemory(), 5).WithNow(fixedNow)

	le := l.LimitError(Check{CallsToday: 5, Limit: 5})
	// 10:30 UTC → 13.5 hours to midnight.
	assert.Equal(t, 13*3600+1800, le.RetryAfterSecs)
	assert.Equal(t, 5, le.CallsToday)
	assert.Contains(t, le.Error(), "budget exhausted")
}
