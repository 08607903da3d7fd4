package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MarketVault/internal/model"
)

// Finnhub implements Provider using the Finnhub REST API
// (free tier: 60 requests/minute). The free tier has no daily candle
// endpoint, so historical requests fail over to the next provider.
type Finnhub struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	// SymbolMap maps internal symbols to Finnhub tickers.
	SymbolMap map[string]string
}

// NewFinnhub creates the secondary quote provider. German ".DE" symbols
// are translated to Finnhub's XETRA form.
func NewFinnhub(apiKey string) *Finnhub {
	return &Finnhub{
		BaseURL:   "https://finnhub.io/api/v1",
		APIKey:    apiKey,
		Client:    newHTTPClient(),
		SymbolMap: germanSymbolMap,
	}
}

func (p *Finnhub) Name() string { return "finnhub" }

// germanSymbolMap covers the DAX symbols the rest of the system schedules.
// Finnhub addresses XETRA listings as "XETRA:TICKER".
var germanSymbolMap = map[string]string{
	"SAP.DE":  "XETRA:SAP",
	"SIE.DE":  "XETRA:SIE",
	"ALV.DE":  "XETRA:ALV",
	"BMW.DE":  "XETRA:BMW",
	"BAS.DE":  "XETRA:BAS",
	"BAYN.DE": "XETRA:BAYN",
	"DAI.DE":  "XETRA:DAI",
	"DBK.DE":  "XETRA:DBK",
	"DTE.DE":  "XETRA:DTE",
	"VOW3.DE": "XETRA:VOW3",
	"MRK.DE":  "XETRA:MRK",
	"ADS.DE":  "XETRA:ADS",
	"IFX.DE":  "XETRA:IFX",
	"RWE.DE":  "XETRA:RWE",
}

func (p *Finnhub) apiSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	if mapped, ok := p.SymbolMap[s]; ok {
		return mapped
	}
	if strings.HasSuffix(s, ".DE") {
		return "XETRA:" + strings.TrimSuffix(s, ".DE")
	}
	return s
}

// fhQuote is the /quote envelope: c=current, pc=previous close, o/h/l,
// d=change, dp=change percent, t=unix timestamp.
type fhQuote struct {
	Current       float64 `json:"c"`
	PreviousClose float64 `json:"pc"`
	Open          float64 `json:"o"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Change        float64 `json:"d"`
	ChangePct     float64 `json:"dp"`
	Timestamp     int64   `json:"t"`
}

func (p *Finnhub) FetchQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	u := fmt.Sprintf("%s/quote?symbol=%s&token=%s",
		p.BaseURL, url.QueryEscape(p.apiSymbol(symbol)), url.QueryEscape(p.APIKey))

	var q fhQuote
	if err := getJSON(ctx, p.Client, p.Name(), u, &q); err != nil {
		return nil, err
	}
	// Finnhub answers unknown symbols with an all-zero envelope.
	if q.Current == 0 {
		return nil, NewError(p.Name(), KindNotFound, "no quote data for "+symbol, nil)
	}

	var ts time.Time
	if q.Timestamp > 0 {
		ts = time.Unix(q.Timestamp, 0).UTC()
	}
	return &model.Quote{
		Symbol:        strings.ToUpper(symbol), // original form, not the XETRA alias
		CurrentPrice:  q.Current,
		PreviousClose: q.PreviousClose,
		Open:          q.Open,
		DayHigh:       q.High,
		DayLow:        q.Low,
		Change:        q.Change,
		ChangePercent: q.ChangePct, // already a plain percent
		Timestamp:     ts,
		Source:        p.Name(),
	}, nil
}

// FetchHistorical is not available on the free tier; the cascade moves on.
func (p *Finnhub) FetchHistorical(_ context.Context, symbol string, _ int) ([]model.PriceRecord, error) {
	return nil, NewError(p.Name(), KindUnavailable, "no historical endpoint for "+symbol, nil)
}

type fhProfile struct {
	Name              string  `json:"name"`
	Industry          string  `json:"finnhubIndustry"`
	Exchange          string  `json:"exchange"`
	Currency          string  `json:"currency"`
	MarketCap         float64 `json:"marketCapitalization"`
	SharesOutstanding float64 `json:"shareOutstanding"`
	Country           string  `json:"country"`
	WebURL            string  `json:"weburl"`
}

func (p *Finnhub) FetchProfile(ctx context.Context, symbol string) (*model.CompanyProfile, error) {
	u := fmt.Sprintf("%s/stock/profile2?symbol=%s&token=%s",
		p.BaseURL, url.QueryEscape(p.apiSymbol(symbol)), url.QueryEscape(p.APIKey))

	var pr fhProfile
	if err := getJSON(ctx, p.Client, p.Name(), u, &pr); err != nil {
		return nil, err
	}
	if pr.Name == "" {
		return nil, NewError(p.Name(), KindNotFound, "no profile for "+symbol, nil)
	}
	return &model.CompanyProfile{
		Symbol:      strings.ToUpper(symbol),
		CompanyName: pr.Name,
		Sector:      pr.Industry,
		Exchange:    pr.Exchange,
		Currency:    pr.Currency,
		MarketCap:   pr.MarketCap,
		Source:      p.Name(),
	}, nil
}
