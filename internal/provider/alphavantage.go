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

// AlphaVantage implements Provider using the Alpha Vantage REST API
// (free tier: 25 requests/day — last in the cascade for a reason).
type AlphaVantage struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewAlphaVantage creates the tertiary provider.
func NewAlphaVantage(apiKey string) *AlphaVantage {
	return &AlphaVantage{
		BaseURL: "https://www.alphavantage.co",
		APIKey:  apiKey,
		Client:  newHTTPClient(),
	}
}

func (p *AlphaVantage) Name() string { return "alpha_vantage" }

// avGlobalQuote uses Alpha Vantage's numbered keys; all values are strings
// and change percent carries a trailing "%".
type avGlobalQuote struct {
	Note        string `json:"Note"`
	Information string `json:"Information"`
	Quote       struct {
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		PreviousClose string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// checkThrottle detects the "Note"/"Information" bodies Alpha Vantage sends
// with HTTP 200 once the daily quota is burned.
func (p *AlphaVantage) checkThrottle(note, info string) error {
	if note != "" {
		return NewError(p.Name(), KindRateLimited, note, nil)
	}
	if info != "" {
		return NewError(p.Name(), KindRateLimited, info, nil)
	}
	return nil
}

func (p *AlphaVantage) FetchQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	u := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		p.BaseURL, url.QueryEscape(strings.ToUpper(symbol)), url.QueryEscape(p.APIKey))

	var q avGlobalQuote
	if err := getJSON(ctx, p.Client, p.Name(), u, &q); err != nil {
		return nil, err
	}
	if err := p.checkThrottle(q.Note, q.Information); err != nil {
		return nil, err
	}
	if q.Quote.Price == "" {
		return nil, NewError(p.Name(), KindNotFound, "no quote data for "+symbol, nil)
	}

	return &model.Quote{
		Symbol:        strings.ToUpper(symbol),
		CurrentPrice:  parseFloat(q.Quote.Price),
		PreviousClose: parseFloat(q.Quote.PreviousClose),
		Open:          parseFloat(q.Quote.Open),
		DayHigh:       parseFloat(q.Quote.High),
		DayLow:        parseFloat(q.Quote.Low),
		Volume:        parseInt(q.Quote.Volume),
		Change:        parseFloat(q.Quote.Change),
		ChangePercent: parseFloat(q.Quote.ChangePercent), // "2.5%" -> 2.5
		Timestamp:     time.Now().UTC(),
		Source:        p.Name(),
	}, nil
}

type avDailySeries struct {
	Note        string `json:"Note"`
	Information string `json:"Information"`
	Series      map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
}

func (p *AlphaVantage) FetchHistorical(ctx context.Context, symbol string, days int) ([]model.PriceRecord, error) {
	// "compact" caps the payload at 100 points; "full" returns 20+ years.
	outputsize := "compact"
	if days > 100 {
		outputsize = "full"
	}
	u := fmt.Sprintf("%s/query?function=TIME_SERIES_DAILY&symbol=%s&outputsize=%s&apikey=%s",
		p.BaseURL, url.QueryEscape(strings.ToUpper(symbol)), outputsize, url.QueryEscape(p.APIKey))

	var s avDailySeries
	if err := getJSON(ctx, p.Client, p.Name(), u, &s); err != nil {
		return nil, err
	}
	if err := p.checkThrottle(s.Note, s.Information); err != nil {
		return nil, err
	}
	if len(s.Series) == 0 {
		return nil, NewError(p.Name(), KindNotFound, "no time series for "+symbol, nil)
	}

	records := make([]model.PriceRecord, 0, len(s.Series))
	for dateStr, day := range s.Series {
		d, err := parseDate(dateStr)
		if err != nil {
			return nil, NewError(p.Name(), KindParseError, "bad date "+dateStr, err)
		}
		records = append(records, model.PriceRecord{
			Symbol: strings.ToUpper(symbol),
			Date:   d,
			Open:   parseFloat(day.Open),
			High:   parseFloat(day.High),
			Low:    parseFloat(day.Low),
			Close:  parseFloat(day.Close),
			Volume: parseInt(day.Volume),
			Source: p.Name(),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	// Trim to the requested window, keeping the most recent days.
	if len(records) > days {
		records = records[len(records)-days:]
	}
	return records, nil
}

type avOverview struct {
	Note          string `json:"Note"`
	Information   string `json:"Information"`
	Symbol        string `json:"Symbol"`
	Name          string `json:"Name"`
	Sector        string `json:"Sector"`
	Industry      string `json:"Industry"`
	Description   string `json:"Description"`
	MarketCap     string `json:"MarketCapitalization"`
	PERatio       string `json:"PERatio"`
	EPS           string `json:"EPS"`
	DividendYield string `json:"DividendYield"`
	Week52High    string `json:"52WeekHigh"`
	Week52Low     string `json:"52WeekLow"`
}

func (p *AlphaVantage) FetchProfile(ctx context.Context, symbol string) (*model.CompanyProfile, error) {
	u := fmt.Sprintf("%s/query?function=OVERVIEW&symbol=%s&apikey=%s",
		p.BaseURL, url.QueryEscape(strings.ToUpper(symbol)), url.QueryEscape(p.APIKey))

	var o avOverview
	if err := getJSON(ctx, p.Client, p.Name(), u, &o); err != nil {
		return nil, err
	}
	if err := p.checkThrottle(o.Note, o.Information); err != nil {
		return nil, err
	}
	if o.Symbol == "" {
		return nil, NewError(p.Name(), KindNotFound, "no overview for "+symbol, nil)
	}

	return &model.CompanyProfile{
		Symbol:        strings.ToUpper(symbol),
		CompanyName:   o.Name,
		Sector:        o.Sector,
		Industry:      o.Industry,
		Description:   o.Description,
		MarketCap:     parseFloat(o.MarketCap),
		PERatio:       parseFloat(o.PERatio),
		EPS:           parseFloat(o.EPS),
		DividendYield: parseFloat(o.DividendYield) * 100, // fractional yield -> plain percent
		Week52High:    parseFloat(o.Week52High),
		Week52Low:     parseFloat(o.Week52Low),
		Source:        p.Name(),
	}, nil
}
