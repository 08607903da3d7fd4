package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"MarketVault/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(s string) time.Time {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func makeRecords(symbol string, start time.Time, n int) []model.PriceRecord {
	records := make([]model.PriceRecord, n)
	for i := range records {
		records[i] = model.PriceRecord{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   100, High: 101, Low: 99,
			Close:  100 + float64(i),
			Volume: 1000,
		}
	}
	return records
}

func TestUpsertPricesInsertThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := makeRecords("aapl", day("2026-08-01"), 5)
	inserted, updated, err := s.UpsertPrices(ctx, "aapl", records, "twelve_data")
	require.NoError(t, err)
	assert.Equal(t, 5, inserted)
	assert.Equal(t, 0, updated)

	// Same dates again: all updates, no duplicate rows.
	records[2].Close = 555
	inserted, updated, err = s.UpsertPrices(ctx, "AAPL", records, "alpha_vantage")
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 5, updated)

	got, err := s.PricesInRange(ctx, "AAPL", day("2026-08-01"), day("2026-08-31"))
	require.NoError(t, err)
	require.Len(t, got, 5)
	// Newest first.
	assert.Equal(t, "2026-08-05", got[0].Date.Format(dateLayout))
	assert.Equal(t, 555.0, got[2].Close)
	assert.Equal(t, "alpha_vantage", got[0].Source)
}

func TestUpsertPricesBatchCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := makeRecords("SPY", day("2024-01-01"), MaxBatchPoints+50)
	inserted, _, err := s.UpsertPrices(ctx, "SPY", records, "twelve_data")
	require.NoError(t, err)
	assert.Equal(t, MaxBatchPoints, inserted)

	// The most recent points survive the cap, not the oldest.
	got, err := s.AnyPrices(ctx, "SPY", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, records[len(records)-1].Date.Format(dateLayout), got[0].Date.Format(dateLayout))
}

func TestRecordSuccessRecomputesAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.UpsertPrices(ctx, "MSFT", makeRecords("MSFT", day("2026-08-01"), 22), "finnhub")
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, "msft"))

	m, err := s.Metadata(ctx, "MSFT")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, model.StatusSuccess, m.Status)
	assert.Equal(t, 22, m.PointCount)
	assert.Equal(t, "2026-08-01", m.EarliestDate.Format(dateLayout))
	assert.Equal(t, "2026-08-22", m.LatestDate.Format(dateLayout))
	assert.Equal(t, 0, m.ConsecutiveFailures)
	assert.True(t, m.Active)
	assert.False(t, m.LastSuccessAt.IsZero())
}

func TestRecordFailureDeactivatesAtThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < DefaultFailureThreshold-1; i++ {
		require.NoError(t, s.RecordFailure(ctx, "NOPE", false))
	}
	m, err := s.Metadata(ctx, "NOPE")
	require.NoError(t, err)
	assert.Equal(t, DefaultFailureThreshold-1, m.ConsecutiveFailures)
	assert.True(t, m.Active, "still active below the threshold")

	require.NoError(t, s.RecordFailure(ctx, "NOPE", true))
	m, err = s.Metadata(ctx, "NOPE")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRateLimited, m.Status)
	assert.False(t, m.Active, "deactivated at the threshold")

	// Success after reactivation clears the counter.
	require.NoError(t, s.Reactivate(ctx, "NOPE"))
	m, err = s.Metadata(ctx, "NOPE")
	require.NoError(t, err)
	assert.True(t, m.Active)
	assert.Equal(t, 0, m.ConsecutiveFailures)
}

func TestMetadataUnknownSymbol(t *testing.T) {
	s := newTestStore(t)
	m, err := s.Metadata(context.Background(), "UNKNOWN")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestSetPriorityAndActiveOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetPriority(ctx, []string{"low"}, 10))
	require.NoError(t, s.SetPriority(ctx, []string{"HIGH"}, 100))
	require.NoError(t, s.RecordFailure(ctx, "GONE", false))
	for i := 0; i < DefaultFailureThreshold; i++ {
		require.NoError(t, s.RecordFailure(ctx, "GONE", false))
	}

	metas, err := s.ActiveMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2, "deactivated symbols are excluded")
	assert.Equal(t, "HIGH", metas[0].Symbol)
	assert.Equal(t, "LOW", metas[1].Symbol)
}

func TestPruneOldRespectsPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := day("2020-01-01")
	_, _, err := s.UpsertPrices(ctx, "COLD", makeRecords("COLD", old, 3), "twelve_data")
	require.NoError(t, err)
	_, _, err = s.UpsertPrices(ctx, "HOT", makeRecords("HOT", old, 3), "twelve_data")
	require.NoError(t, err)
	require.NoError(t, s.SetPriority(ctx, []string{"COLD"}, 0))
	require.NoError(t, s.SetPriority(ctx, []string{"HOT"}, 100))

	deleted, err := s.PruneOld(ctx, day("2024-01-01"), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	cold, err := s.AnyPrices(ctx, "COLD", 10)
	require.NoError(t, err)
	assert.Empty(t, cold)
	hot, err := s.AnyPrices(ctx, "HOT", 10)
	require.NoError(t, err)
	assert.Len(t, hot, 3, "high-priority history survives pruning")
}
