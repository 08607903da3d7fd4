package history

import (
	"context"
	"testing"
	"time"

	"MarketVault/internal/cache"
	"MarketVault/internal/model"
	"MarketVault/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore is an in-memory PriceStore recording what the service did.
type stubStore struct {
	meta      *model.CollectionMetadata
	inRange   []model.PriceRecord
	anywhere  []model.PriceRecord
	upserted  []model.PriceRecord
	successes int
	failures  int
	lastRL    bool
}

func (s *stubStore) UpsertPrices(_ context.Context, _ string, records []model.PriceRecord, _ string) (int, int, error) {
	s.upserted = append(s.upserted, records...)
	return len(records), 0, nil
}

func (s *stubStore) PricesInRange(context.Context, string, time.Time, time.Time) ([]model.PriceRecord, error) {
	return s.inRange, nil
}

func (s *stubStore) AnyPrices(context.Context, string, int) ([]model.PriceRecord, error) {
	return s.anywhere, nil
}

func (s *stubStore) Metadata(context.Context, string) (*model.CollectionMetadata, error) {
	return s.meta, nil
}

func (s *stubStore) RecordSuccess(context.Context, string) error {
	s.successes++
	return nil
}

func (s *stubStore) RecordFailure(_ context.Context, _ string, rateLimited bool) error {
	s.failures++
	s.lastRL = rateLimited
	return nil
}

// stubFetcher plays the orchestrator role.
type stubFetcher struct {
	records []model.PriceRecord
	warning string
	err     error
	calls   int
}

func (f *stubFetcher) FetchHistorical(context.Context, string, int) ([]model.PriceRecord, string, error) {
	f.calls++
	return f.records, f.warning, f.err
}

func newTestService(st *stubStore, f *stubFetcher, now time.Time) *Service {
	svc := New(st, f, cache.New(nil, nil))
	svc.now = func() time.Time { return now }
	return svc
}

func records(n int) []model.PriceRecord {
	out := make([]model.PriceRecord, n)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = model.PriceRecord{Symbol: "AAPL", Date: base.AddDate(0, 0, i), Close: 100}
	}
	return out
}

// A Tuesday outside US market hours.
var offHours = time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

func TestFreshLocalDataServedWithoutFetch(t *testing.T) {
	st := &stubStore{
		meta:    &model.CollectionMetadata{Symbol: "AAPL", LastSuccessAt: offHours.Add(-2 * time.Hour)},
		inRange: records(22),
	}
	f := &stubFetcher{}
	svc := newTestService(st, f, offHours)

	res := svc.GetHistoricalData(context.Background(), "AAPL", "1mo", false)
	assert.Equal(t, model.SourceLocalCache, res.Source)
	assert.Len(t, res.Records, 22)
	assert.Equal(t, 0, f.calls, "fresh covered data must not hit providers")
}

func TestShortRangeDemandsRecentData(t *testing.T) {
	// 2 hours old is fresh for a month but stale for a 5-day range.
	st := &stubStore{
		meta:    &model.CollectionMetadata{Symbol: "AAPL", LastSuccessAt: offHours.Add(-2 * time.Hour)},
		inRange: records(4),
	}
	f := &stubFetcher{records: records(5)}
	svc := newTestService(st, f, offHours)

	res := svc.GetHistoricalData(context.Background(), "AAPL", "5d", false)
	assert.Equal(t, model.SourceFreshlyFetched, res.Source)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, 1, st.successes)
}

func TestMarketHoursTightenFreshness(t *testing.T) {
	marketHours := time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC) // Tuesday 15:00 UTC
	st := &stubStore{inRange: records(4)}
	f := &stubFetcher{records: records(5)}
	svc := newTestService(st, f, marketHours)

	// 45 minutes old: fresh off-hours, stale during trading.
	st.meta = &model.CollectionMetadata{Symbol: "AAPL", LastSuccessAt: marketHours.Add(-45 * time.Minute)}
	svc.GetHistoricalData(context.Background(), "AAPL", "5d", false)
	assert.Equal(t, 1, f.calls, "45min-old data is stale during market hours")

	svcOff := newTestService(&stubStore{
		meta:    &model.CollectionMetadata{Symbol: "AAPL", LastSuccessAt: offHours.Add(-45 * time.Minute)},
		inRange: records(4),
	}, &stubFetcher{records: records(5)}, offHours)
	res := svcOff.GetHistoricalData(context.Background(), "AAPL", "5d", false)
	assert.Equal(t, model.SourceLocalCache, res.Source, "45min-old data is fresh off-hours")
}

func TestColdStartFetchesAndPersists(t *testing.T) {
	st := &stubStore{}
	f := &stubFetcher{records: records(22)}
	svc := newTestService(st, f, offHours)

	res := svc.GetHistoricalData(context.Background(), "AAPL", "1mo", false)
	assert.Equal(t, model.SourceFreshlyFetched, res.Source)
	assert.Len(t, res.Records, 22)
	assert.Len(t, st.upserted, 22)
	assert.Equal(t, 1, st.successes)
	assert.Empty(t, res.Err)
}

func TestInsufficientCoverageTriggersRefresh(t *testing.T) {
	// 5 records for a 30-day range is under the coverage floor even
	// though metadata says the collection is recent.
	st := &stubStore{
		meta:    &model.CollectionMetadata{Symbol: "AAPL", LastSuccessAt: offHours.Add(-time.Hour)},
		inRange: records(5),
	}
	f := &stubFetcher{records: records(22)}
	svc := newTestService(st, f, offHours)

	res := svc.GetHistoricalData(context.Background(), "AAPL", "1mo", false)
	assert.Equal(t, model.SourceFreshlyFetched, res.Source)
	assert.Equal(t, 1, f.calls)
}

func TestProviderFailureFallsBackToStaleCache(t *testing.T) {
	st := &stubStore{
		meta:    &model.CollectionMetadata{Symbol: "AAPL", LastSuccessAt: offHours.Add(-48 * time.Hour)},
		inRange: records(22),
	}
	f := &stubFetcher{err: provider.NewError("twelve_data", provider.KindRateLimited, "rate limited", nil)}
	svc := newTestService(st, f, offHours)

	res := svc.GetHistoricalData(context.Background(), "AAPL", "5d", false)
	assert.Equal(t, model.SourceStaleCache, res.Source)
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, 1, st.failures)
	assert.True(t, st.lastRL, "rate-limit failures are recorded as such")
}

func TestProviderFailureFallsBackToAnyCache(t *testing.T) {
	st := &stubStore{anywhere: records(10)}
	f := &stubFetcher{err: provider.NewError("twelve_data", provider.KindUnavailable, "down", nil)}
	svc := newTestService(st, f, offHours)

	res := svc.GetHistoricalData(context.Background(), "AAPL", "1mo", false)
	assert.Equal(t, model.SourceAnyCache, res.Source)
	assert.Len(t, res.Records, 10)
	assert.NotEmpty(t, res.Warning)
}

func TestTotalMissYieldsNone(t *testing.T) {
	st := &stubStore{}
	f := &stubFetcher{err: provider.NewError("twelve_data", provider.KindUnavailable, "down", nil)}
	svc := newTestService(st, f, offHours)

	res := svc.GetHistoricalData(context.Background(), "AAPL", "1mo", false)
	assert.Equal(t, model.SourceNone, res.Source)
	assert.Empty(t, res.Records)
	assert.NotEmpty(t, res.Err)
}

func TestEstimatedDataTaggedAndCached(t *testing.T) {
	st := &stubStore{}
	f := &stubFetcher{records: records(22), warning: "data estimated by a generative model; accuracy not guaranteed"}
	svc := newTestService(st, f, offHours)

	res := svc.GetHistoricalData(context.Background(), "AAPL", "1mo", false)
	assert.Equal(t, model.SourceAIFallback, res.Source)
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, 1, st.successes, "estimated series still updates metadata")
}

func TestFingerprintCacheShortCircuits(t *testing.T) {
	st := &stubStore{}
	f := &stubFetcher{records: records(22)}
	svc := newTestService(st, f, offHours)

	first := svc.GetHistoricalData(context.Background(), "AAPL", "1mo", false)
	require.Equal(t, model.SourceFreshlyFetched, first.Source)

	second := svc.GetHistoricalData(context.Background(), "AAPL", "1mo", false)
	assert.Equal(t, 1, f.calls, "second request is served from the fingerprint cache")
	assert.Equal(t, first.Source, second.Source)
	assert.Len(t, second.Records, 22)
}

func TestForceUpdateBypassesCaches(t *testing.T) {
	st := &stubStore{
		meta:    &model.CollectionMetadata{Symbol: "AAPL", LastSuccessAt: offHours.Add(-time.Minute)},
		inRange: records(22),
	}
	f := &stubFetcher{records: records(22)}
	svc := newTestService(st, f, offHours)

	res := svc.GetHistoricalData(context.Background(), "AAPL", "1mo", true)
	assert.Equal(t, model.SourceFreshlyFetched, res.Source)
	assert.Equal(t, 1, f.calls, "force update must refetch even over fresh data")
}

func TestInvalidate(t *testing.T) {
	st := &stubStore{}
	f := &stubFetcher{records: records(22)}
	svc := newTestService(st, f, offHours)

	svc.GetHistoricalData(context.Background(), "AAPL", "1mo", false)
	svc.Invalidate(context.Background(), "aapl")
	svc.GetHistoricalData(context.Background(), "AAPL", "1mo", false)
	assert.Equal(t, 2, f.calls, "invalidation drops the fingerprint entry")
}
