// Package history serves historical daily series with layered degradation:
// fresh local data first, then a provider refresh, then progressively
// staler fallbacks. Callers always get a result; provenance is carried in
// the Source field rather than an error.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"MarketVault/internal/cache"
	"MarketVault/internal/model"
	"MarketVault/internal/provider"
)

// coverageFactor discounts the calendar range for weekends and holidays:
// roughly 70% of calendar days are trading days.
const coverageFactor = 0.7

// minCoverage is the fraction of expected trading days that must be on
// hand before local data is considered complete enough to serve.
const minCoverage = 0.5

// PriceStore is the persistence surface the service needs.
type PriceStore interface {
	UpsertPrices(ctx context.Context, symbol string, records []model.PriceRecord, source string) (int, int, error)
	PricesInRange(ctx context.Context, symbol string, from, to time.Time) ([]model.PriceRecord, error)
	AnyPrices(ctx context.Context, symbol string, limit int) ([]model.PriceRecord, error)
	Metadata(ctx context.Context, symbol string) (*model.CollectionMetadata, error)
	RecordSuccess(ctx context.Context, symbol string) error
	RecordFailure(ctx context.Context, symbol string, rateLimited bool) error
}

// Fetcher is the provider-cascade surface the service needs.
type Fetcher interface {
	FetchHistorical(ctx context.Context, symbol string, days int) ([]model.PriceRecord, string, error)
}

// Service resolves historical-series requests.
type Service struct {
	store   PriceStore
	fetcher Fetcher
	cache   *cache.Cache

	// now is swappable for tests.
	now func() time.Time
}

func New(store PriceStore, fetcher Fetcher, c *cache.Cache) *Service {
	return &Service{
		store:   store,
		fetcher: fetcher,
		cache:   c,
		now:     time.Now,
	}
}

// GetHistoricalData returns the best available series for symbol/period.
// It never returns a Go error: failure modes degrade through the Source
// tags local_cache, freshly_fetched, stale_cache, any_cache and none.
func (s *Service) GetHistoricalData(ctx context.Context, symbol, period string, forceUpdate bool) model.HistoricalResult {
	symbol = strings.ToUpper(symbol)
	result := model.HistoricalResult{Symbol: symbol, Period: period}

	cacheKey := fmt.Sprintf("hist:v1:%s:%s", symbol, period)
	if !forceUpdate {
		if payload, ok := s.cache.Get(ctx, cacheKey); ok {
			var cached model.HistoricalResult
			if err := json.Unmarshal([]byte(payload), &cached); err == nil {
				return cached
			}
			log.Printf("[WARN] discarding undecodable cache entry %s", cacheKey)
			s.cache.Delete(ctx, cacheKey)
		}
	}

	rangeDays := model.PeriodDays(period)
	now := s.now().UTC()
	from := now.AddDate(0, 0, -rangeDays)

	meta, err := s.store.Metadata(ctx, symbol)
	if err != nil {
		log.Printf("[WARN] metadata lookup %s: %v", symbol, err)
	}

	local, err := s.store.PricesInRange(ctx, symbol, from, now)
	if err != nil {
		log.Printf("[WARN] local range query %s: %v", symbol, err)
	}

	if !forceUpdate && s.coverageOK(len(local), rangeDays) && s.isFresh(meta, rangeDays, now) {
		result.Records = local
		result.Source = model.SourceLocalCache
		if meta != nil {
			result.LastUpdated = meta.LastSuccessAt
		}
		s.cacheResult(ctx, cacheKey, result)
		return result
	}

	records, warning, fetchErr := s.fetcher.FetchHistorical(ctx, symbol, rangeDays)
	if fetchErr == nil {
		source := model.SourceFreshlyFetched
		if warning != "" {
			source = model.SourceAIFallback
		}
		if ins, upd, err := s.store.UpsertPrices(ctx, symbol, records, source); err != nil {
			log.Printf("[ERROR] persisting %s: %v", symbol, err)
		} else {
			log.Printf("[INFO] stored %s: %d inserted, %d updated", symbol, ins, upd)
		}
		if err := s.store.RecordSuccess(ctx, symbol); err != nil {
			log.Printf("[WARN] record success %s: %v", symbol, err)
		}
		result.Records = records
		result.Source = source
		result.Warning = warning
		result.LastUpdated = now
		s.cacheResult(ctx, cacheKey, result)
		return result
	}

	if err := s.store.RecordFailure(ctx, symbol, provider.IsRateLimited(fetchErr)); err != nil {
		log.Printf("[WARN] record failure %s: %v", symbol, err)
	}

	// Refresh failed: serve whatever local data exists, staleness noted.
	if len(local) > 0 {
		result.Records = local
		result.Source = model.SourceStaleCache
		result.Warning = "data may be outdated; all providers are currently unavailable"
		if meta != nil {
			result.LastUpdated = meta.LastSuccessAt
		}
		return result
	}

	any, err := s.store.AnyPrices(ctx, symbol, rangeDays)
	if err != nil {
		log.Printf("[WARN] any-prices query %s: %v", symbol, err)
	}
	if len(any) > 0 {
		result.Records = any
		result.Source = model.SourceAnyCache
		result.Warning = "serving records outside the requested range; providers unavailable"
		if meta != nil {
			result.LastUpdated = meta.LastSuccessAt
		}
		return result
	}

	result.Source = model.SourceNone
	result.Err = fmt.Sprintf("no data available for %s: %v", symbol, fetchErr)
	return result
}

// Invalidate drops the fingerprint cache for a symbol so the next request
// re-evaluates freshness. Used after manual refresh triggers.
func (s *Service) Invalidate(ctx context.Context, symbol string) {
	s.cache.ClearPrefix(ctx, "hist:v1:"+strings.ToUpper(symbol)+":")
}

func (s *Service) cacheResult(ctx context.Context, key string, result model.HistoricalResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		log.Printf("[WARN] encoding cache entry %s: %v", key, err)
		return
	}
	s.cache.Set(ctx, key, string(payload), cache.ClassHistorical)
}

// coverageOK checks whether the on-hand record count plausibly covers the
// requested range, given that only ~70% of calendar days trade.
func (s *Service) coverageOK(records, rangeDays int) bool {
	expected := float64(rangeDays) * coverageFactor
	if expected < 1 {
		expected = 1
	}
	return float64(records)/expected > minCoverage
}

// isFresh applies the staleness ladder: short ranges demand recent data,
// long ranges tolerate days-old data. A symbol with no successful
// collection on record is never fresh.
func (s *Service) isFresh(meta *model.CollectionMetadata, rangeDays int, now time.Time) bool {
	if meta == nil || meta.LastSuccessAt.IsZero() {
		return false
	}
	age := now.Sub(meta.LastSuccessAt)

	switch {
	case rangeDays <= 5:
		if duringMarketHours(now) {
			return age <= 30*time.Minute
		}
		return age <= 60*time.Minute
	case rangeDays <= 30:
		return age <= 24*time.Hour
	default:
		return age <= 7*24*time.Hour
	}
}

// duringMarketHours is a coarse proxy for US trading hours: weekdays,
// 14:00-21:59 UTC.
func duringMarketHours(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := now.Hour()
	return h >= 14 && h <= 21
}
