package model

import "time"

// PriceRecord is one trading day of one symbol. Close is the only mandatory
// OHLC field; estimated sources may leave the rest at zero.
type PriceRecord struct {
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"` // calendar date, time part zeroed
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Quote is the canonical real-time quote shape shared by all providers.
// Percentage fields are plain percentages (2.5 means 2.5%).
type Quote struct {
	Symbol        string    `json:"symbol"`
	CompanyName   string    `json:"company_name,omitempty"`
	CurrentPrice  float64   `json:"current_price"`
	PreviousClose float64   `json:"previous_close"`
	Open          float64   `json:"open"`
	DayHigh       float64   `json:"day_high"`
	DayLow        float64   `json:"day_low"`
	Volume        int64     `json:"volume"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
	Source        string    `json:"source"`
}

// CompanyProfile holds fundamental company data.
type CompanyProfile struct {
	Symbol        string  `json:"symbol"`
	CompanyName   string  `json:"company_name"`
	Sector        string  `json:"sector,omitempty"`
	Industry      string  `json:"industry,omitempty"`
	Description   string  `json:"description,omitempty"`
	Exchange      string  `json:"exchange,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	MarketCap     float64 `json:"market_cap,omitempty"`
	PERatio       float64 `json:"pe_ratio,omitempty"`
	EPS           float64 `json:"eps,omitempty"`
	DividendYield float64 `json:"dividend_yield,omitempty"` // plain percent
	Week52High    float64 `json:"52_week_high,omitempty"`
	Week52Low     float64 `json:"52_week_low,omitempty"`
	Source        string  `json:"source"`
}
