// Package scheduler runs the background collection jobs: a frequent
// refresh of priority symbols, a nightly full sweep, weekly retention
// pruning and a periodic cache sweep.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"MarketVault/internal/cache"
	"MarketVault/internal/history"
	"MarketVault/internal/model"
	"MarketVault/internal/store"

	"github.com/robfig/cron/v3"
)

// PopularSymbols is always kept warm alongside the configured priority
// list.
var PopularSymbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "SPY", "QQQ"}

const (
	// PriorityHigh marks symbols refreshed every cycle.
	PriorityHigh = 100
	// deepHistoryPriority selects symbols swept with a 3mo window
	// instead of 1mo.
	deepHistoryPriority = 50
	// retentionDays bounds how far back low-priority history is kept.
	retentionDays = 730
	// prunePriorityCeiling exempts symbols at or above this priority
	// from pruning.
	prunePriorityCeiling = 10
)

// Scheduler owns the cron runner and the job wiring.
type Scheduler struct {
	Cron    *cron.Cron
	History *history.Service
	Store   *store.Store
	Cache   *cache.Cache
	Ctx     context.Context

	// PrioritySymbols is the configured hot list, merged with
	// PopularSymbols on each refresh cycle.
	PrioritySymbols []string

	// FetchDelay spaces consecutive provider calls to stay under
	// free-tier rate limits.
	FetchDelay time.Duration
}

// NewScheduler builds a scheduler over the history service and store.
func NewScheduler(ctx context.Context, hs *history.Service, st *store.Store, c *cache.Cache, prioritySymbols []string) *Scheduler {
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		History:         hs,
		Store:           st,
		Cache:           c,
		Ctx:             ctx,
		PrioritySymbols: prioritySymbols,
		FetchDelay:      2 * time.Second,
	}
}

// RegisterAll registers the refresh, sweep, retention and cache jobs.
func (s *Scheduler) RegisterAll(refreshCron, sweepCron, retentionCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.priorityRefresh); err != nil {
		return fmt.Errorf("register priority refresh: %w", err)
	}
	if _, err := s.Cron.AddFunc(sweepCron, s.fullSweep); err != nil {
		return fmt.Errorf("register full sweep: %w", err)
	}
	if _, err := s.Cron.AddFunc(retentionCron, s.retentionPrune); err != nil {
		return fmt.Errorf("register retention prune: %w", err)
	}
	// Memory-tier eviction; Redis expires its own keys.
	if _, err := s.Cron.AddFunc("0 */10 * * * *", s.cacheSweep); err != nil {
		return fmt.Errorf("register cache sweep: %w", err)
	}
	return nil
}

// Start starts the cron runner.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunRefreshNow executes the priority refresh immediately, used at
// startup to warm the hot list.
func (s *Scheduler) RunRefreshNow() {
	s.priorityRefresh()
}

// TriggerUpdate forces a refresh of one symbol outside the cron cycle.
// The symbol is reactivated first so a deactivated one gets another
// chance.
func (s *Scheduler) TriggerUpdate(symbol, period string) model.HistoricalResult {
	if err := s.Store.Reactivate(s.Ctx, symbol); err != nil {
		log.Printf("[WARN] reactivate %s: %v", symbol, err)
	}
	s.History.Invalidate(s.Ctx, symbol)
	return s.History.GetHistoricalData(s.Ctx, symbol, period, true)
}

// priorityRefresh force-refreshes the hot list with a short window.
func (s *Scheduler) priorityRefresh() {
	symbols := mergeSymbols(s.PrioritySymbols, PopularSymbols)
	log.Printf("[INFO] priority refresh: %d symbols", len(symbols))

	if err := s.Store.SetPriority(s.Ctx, symbols, PriorityHigh); err != nil {
		log.Printf("[ERROR] set priority: %v", err)
	}

	ok, failed := 0, 0
	for _, symbol := range symbols {
		if s.Ctx.Err() != nil {
			log.Println("[WARN] priority refresh aborted: context cancelled")
			return
		}
		res := s.History.GetHistoricalData(s.Ctx, symbol, "1mo", true)
		if res.Source == model.SourceNone {
			failed++
		} else {
			ok++
		}
		time.Sleep(s.FetchDelay)
	}
	log.Printf("[INFO] priority refresh done: %d ok, %d failed", ok, failed)
}

// fullSweep walks every active symbol by priority, skipping symbols
// collected within the last day. High-priority symbols get a deeper
// window.
func (s *Scheduler) fullSweep() {
	metas, err := s.Store.ActiveMetadata(s.Ctx)
	if err != nil {
		log.Printf("[ERROR] full sweep: %v", err)
		return
	}
	log.Printf("[INFO] full sweep: %d active symbols", len(metas))

	ok, failed, skipped := 0, 0, 0
	for _, m := range metas {
		if s.Ctx.Err() != nil {
			log.Println("[WARN] full sweep aborted: context cancelled")
			return
		}
		if !m.LastSuccessAt.IsZero() && time.Since(m.LastSuccessAt) < 24*time.Hour {
			skipped++
			continue
		}
		period := "1mo"
		if m.Priority >= deepHistoryPriority {
			period = "3mo"
		}
		res := s.History.GetHistoricalData(s.Ctx, m.Symbol, period, true)
		if res.Source == model.SourceNone {
			failed++
		} else {
			ok++
		}
		time.Sleep(s.FetchDelay + time.Second)
	}
	log.Printf("[INFO] full sweep done: %d ok, %d failed, %d skipped", ok, failed, skipped)
}

// retentionPrune drops history older than the retention window for
// low-priority symbols.
func (s *Scheduler) retentionPrune() {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := s.Store.PruneOld(s.Ctx, cutoff, prunePriorityCeiling)
	if err != nil {
		log.Printf("[ERROR] retention prune: %v", err)
		return
	}
	log.Printf("[INFO] retention prune: %d rows deleted (older than %s)", deleted, cutoff.Format("2006-01-02"))
}

func (s *Scheduler) cacheSweep() {
	if evicted := s.Cache.Sweep(); evicted > 0 {
		log.Printf("[INFO] cache sweep: %d expired entries evicted", evicted)
	}
}

// mergeSymbols unions two symbol lists preserving first-seen order.
func mergeSymbols(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, sym := range list {
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	return out
}
