// Package orchestrator runs the provider fallback cascade: a statically
// ordered provider list, first success wins, with an estimation fallback
// reserved for historical-series requests.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"MarketVault/internal/model"
	"MarketVault/internal/provider"
)

// ErrAllProvidersExhausted signals that every configured provider failed.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

// Estimator is the generative-model fallback contract. It is consulted
// only by FetchHistorical, never for quote polling: quotes poll at high
// frequency and must not consume the shared estimation quota.
type Estimator interface {
	EstimateHistorical(ctx context.Context, symbol string, days int) ([]model.PriceRecord, error)
}

// Orchestrator tries providers in order and records provenance.
type Orchestrator struct {
	Providers []provider.Provider
	Estimator Estimator // nil when no estimation key is configured

	// QuoteTimeout bounds each per-symbol fetch in FetchQuoteBatch.
	QuoteTimeout time.Duration
}

// New builds an orchestrator over an ordered provider list, most
// quota-generous provider first.
func New(providers []provider.Provider, est Estimator) *Orchestrator {
	return &Orchestrator{
		Providers:    providers,
		Estimator:    est,
		QuoteTimeout: 10 * time.Second,
	}
}

// FetchQuote walks the cascade for a live quote. Exhaustion is a hard
// failure: there is deliberately no estimation fallback here.
func (o *Orchestrator) FetchQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	for _, p := range o.Providers {
		q, err := p.FetchQuote(ctx, symbol)
		if err != nil {
			o.logFailure("quote", symbol, p.Name(), err)
			continue
		}
		log.Printf("[INFO] quote for %s answered by %s", symbol, p.Name())
		return q, nil
	}
	return nil, fmt.Errorf("quote for %s: %w", symbol, ErrAllProvidersExhausted)
}

// FetchHistorical walks the cascade for a daily series. When every real
// provider fails it falls back to the estimator, tagging the result
// AI_FALLBACK with an accuracy caveat.
func (o *Orchestrator) FetchHistorical(ctx context.Context, symbol string, days int) ([]model.PriceRecord, string, error) {
	for _, p := range o.Providers {
		records, err := p.FetchHistorical(ctx, symbol, days)
		if err != nil {
			o.logFailure("historical", symbol, p.Name(), err)
			continue
		}
		log.Printf("[INFO] historical for %s answered by %s (%d points)", symbol, p.Name(), len(records))
		return records, "", nil
	}

	if o.Estimator == nil {
		return nil, "", fmt.Errorf("historical for %s: %w", symbol, ErrAllProvidersExhausted)
	}

	log.Printf("[WARN] all providers failed for %s, attempting estimation fallback", symbol)
	records, err := o.Estimator.EstimateHistorical(ctx, symbol, days)
	if err != nil {
		log.Printf("[ERROR] estimation fallback for %s: %v", symbol, err)
		return nil, "", fmt.Errorf("historical for %s: %w", symbol, ErrAllProvidersExhausted)
	}
	warning := "data estimated by a generative model; accuracy not guaranteed"
	return records, warning, nil
}

// FetchProfile walks the cascade for company fundamentals. No estimation
// fallback: a wrong estimated sector is worse than no answer.
func (o *Orchestrator) FetchProfile(ctx context.Context, symbol string) (*model.CompanyProfile, error) {
	for _, p := range o.Providers {
		pr, err := p.FetchProfile(ctx, symbol)
		if err != nil {
			o.logFailure("profile", symbol, p.Name(), err)
			continue
		}
		return pr, nil
	}
	return nil, fmt.Errorf("profile for %s: %w", symbol, ErrAllProvidersExhausted)
}

// FetchQuoteBatch fetches quotes for many symbols concurrently. Each
// symbol runs under its own timeout; one symbol failing or timing out
// never disturbs the others. Failed symbols are logged and omitted.
func (o *Orchestrator) FetchQuoteBatch(ctx context.Context, symbols []string) map[string]*model.Quote {
	type result struct {
		symbol string
		quote  *model.Quote
		err    error
	}
	ch := make(chan result, len(symbols))
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, o.QuoteTimeout)
			defer cancel()
			q, err := o.FetchQuote(fetchCtx, symbol)
			ch <- result{symbol: symbol, quote: q, err: err}
		}(symbol)
	}
	wg.Wait()
	close(ch)

	quotes := make(map[string]*model.Quote, len(symbols))
	for r := range ch {
		if r.err != nil {
			log.Printf("[WARN] batch quote %s: %v", r.symbol, r.err)
			continue
		}
		quotes[r.symbol] = r.quote
	}
	return quotes
}

func (o *Orchestrator) logFailure(kind, symbol, name string, err error) {
	if provider.IsRateLimited(err) {
		log.Printf("[WARN] %s %s: %s rate limited: %v", kind, symbol, name, err)
		return
	}
	log.Printf("[WARN] %s %s: %s failed: %v", kind, symbol, name, err)
}
