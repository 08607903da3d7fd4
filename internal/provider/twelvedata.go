package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"MarketVault/internal/model"
)

// TwelveData implements Provider using the Twelve Data REST API
// (free tier: 800 requests/day, 8 requests/minute).
type TwelveData struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewTwelveData creates the primary historical-data provider.
func NewTwelveData(apiKey string) *TwelveData {
	return &TwelveData{
		BaseURL: "https://api.twelvedata.com",
		APIKey:  apiKey,
		Client:  newHTTPClient(),
	}
}

func (p *TwelveData) Name() string { return "twelve_data" }

// tdError is embedded in every Twelve Data envelope on failure.
type tdError struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (p *TwelveData) checkEnvelope(e tdError) error {
	switch {
	case e.Code == 429:
		return NewError(p.Name(), KindRateLimited, e.Message, nil)
	case e.Code == 404 || e.Code == 400:
		return NewError(p.Name(), KindNotFound, e.Message, nil)
	case e.Status == "error":
		return NewError(p.Name(), KindUnavailable, e.Message, nil)
	}
	return nil
}

// tdQuote is the /quote response. Numeric fields arrive as strings.
type tdQuote struct {
	tdError
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Close         string `json:"close"`
	PreviousClose string `json:"previous_close"`
	Open          string `json:"open"`
	High          string `json:"high"`
	Low           string `json:"low"`
	Volume        string `json:"volume"`
	Change        string `json:"change"`
	PercentChange string `json:"percent_change"`
}

func (p *TwelveData) FetchQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	u := fmt.Sprintf("%s/quote?symbol=%s&apikey=%s",
		p.BaseURL, url.QueryEscape(strings.ToUpper(symbol)), url.QueryEscape(p.APIKey))

	var q tdQuote
	if err := getJSON(ctx, p.Client, p.Name(), u, &q); err != nil {
		return nil, err
	}
	if err := p.checkEnvelope(q.tdError); err != nil {
		return nil, err
	}
	if q.Close == "" {
		return nil, NewError(p.Name(), KindNotFound, "no quote data for "+symbol, nil)
	}

	return &model.Quote{
		Symbol:        strings.ToUpper(symbol),
		CompanyName:   q.Name,
		CurrentPrice:  parseFloat(q.Close),
		PreviousClose: parseFloat(q.PreviousClose),
		Open:          parseFloat(q.Open),
		DayHigh:       parseFloat(q.High),
		DayLow:        parseFloat(q.Low),
		Volume:        parseInt(q.Volume),
		Change:        parseFloat(q.Change),
		ChangePercent: parseFloat(q.PercentChange), // already a plain percent
		Timestamp:     time.Now().UTC(),
		Source:        p.Name(),
	}, nil
}

// tdSeries is the /time_series response, newest value first.
type tdSeries struct {
	tdError
	Values []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

func (p *TwelveData) FetchHistorical(ctx context.Context, symbol string, days int) ([]model.PriceRecord, error) {
	u := fmt.Sprintf("%s/time_series?symbol=%s&interval=1day&outputsize=%d&apikey=%s",
		p.BaseURL, url.QueryEscape(strings.ToUpper(symbol)), days, url.QueryEscape(p.APIKey))

	var s tdSeries
	if err := getJSON(ctx, p.Client, p.Name(), u, &s); err != nil {
		return nil, err
	}
	if err := p.checkEnvelope(s.tdError); err != nil {
		return nil, err
	}
	if len(s.Values) == 0 {
		return nil, NewError(p.Name(), KindNotFound, "no time series for "+symbol, nil)
	}

	records := make([]model.PriceRecord, 0, len(s.Values))
	for _, v := range s.Values {
		d, err := parseDate(v.Datetime)
		if err != nil {
			return nil, NewError(p.Name(), KindParseError, "bad datetime "+v.Datetime, err)
		}
		records = append(records, model.PriceRecord{
			Symbol: strings.ToUpper(symbol),
			Date:   d,
			Open:   parseFloat(v.Open),
			High:   parseFloat(v.High),
			Low:    parseFloat(v.Low),
			Close:  parseFloat(v.Close),
			Volume: parseInt(v.Volume),
			Source: p.Name(),
		})
	}
	// Twelve Data returns newest first; callers expect chronological order.
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

// FetchProfile is not served by Twelve Data's free tier.
func (p *TwelveData) FetchProfile(_ context.Context, symbol string) (*model.CompanyProfile, error) {
	return nil, NewError(p.Name(), KindNotFound, "no profile endpoint for "+symbol, nil)
}
