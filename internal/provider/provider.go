package provider

import (
	"context"

	"MarketVault/internal/model"
)

// Provider defines one upstream market data source. Implementations know
// only their own request shape, auth parameter and response envelope; they
// return canonical records or a typed *Error, never a raw transport error.
type Provider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (*model.Quote, error)
	FetchHistorical(ctx context.Context, symbol string, days int) ([]model.PriceRecord, error)
	FetchProfile(ctx context.Context, symbol string) (*model.CompanyProfile, error)
}
