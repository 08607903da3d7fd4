package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinnhubAPISymbol(t *testing.T) {
	p := NewFinnhub("test-key")

	tests := []struct {
		in, want string
	}{
		{"AAPL", "AAPL"},
		{"sap.de", "XETRA:SAP"},
		{"SAP.DE", "XETRA:SAP"},
		{"ZAL.DE", "XETRA:ZAL"}, // generic .DE fallback, not in the map
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.apiSymbol(tt.in), "symbol %s", tt.in)
	}
}

func TestFinnhubFetchQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XETRA:SAP", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"c":192.3,"pc":190.0,"o":190.5,"h":193.0,"l":189.8,"d":2.3,"dp":1.21,"t":1756300000}`))
	}))
	defer srv.Close()

	p := NewFinnhub("test-key")
	p.BaseURL = srv.URL

	q, err := p.FetchQuote(context.Background(), "SAP.DE")
	require.NoError(t, err)
	// The caller's symbol is preserved, not the XETRA alias.
	assert.Equal(t, "SAP.DE", q.Symbol)
	assert.Equal(t, 192.3, q.CurrentPrice)
	assert.Equal(t, 1.21, q.ChangePercent)
	assert.Equal(t, "finnhub", q.Source)
}

func TestFinnhubZeroQuoteIsNotFound(t *testing.T) {
	// Finnhub answers unknown symbols with an all-zero body, not a 404.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c":0,"pc":0,"o":0,"h":0,"l":0,"d":0,"dp":0,"t":0}`))
	}))
	defer srv.Close()

	p := NewFinnhub("test-key")
	p.BaseURL = srv.URL

	_, err := p.FetchQuote(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestFinnhubQuotaExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewFinnhub("test-key")
	p.BaseURL = srv.URL

	_, err := p.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestFinnhubHistoricalUnavailable(t *testing.T) {
	p := NewFinnhub("test-key")
	_, err := p.FetchHistorical(context.Background(), "AAPL", 30)
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestFinnhubFetchProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Apple Inc","finnhubIndustry":"Technology","exchange":"NASDAQ","currency":"USD","marketCapitalization":2900000,"country":"US"}`))
	}))
	defer srv.Close()

	p := NewFinnhub("test-key")
	p.BaseURL = srv.URL

	pr, err := p.FetchProfile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc", pr.CompanyName)
	assert.Equal(t, "Technology", pr.Sector)
	assert.Equal(t, "finnhub", pr.Source)
}
