package model

import "time"

// Provenance tags carried in the Source field of results.
const (
	SourceLocalCache     = "local_cache"
	SourceFreshlyFetched = "freshly_fetched"
	SourceStaleCache     = "stale_cache"
	SourceAnyCache       = "any_cache"
	SourceNone           = "none"
	SourceAIFallback     = "AI_FALLBACK"
)

// HistoricalResult is what the history service hands to callers. It never
// comes with a Go error: degradation is expressed through Source, Warning
// and Err so callers can respond gracefully.
type HistoricalResult struct {
	Symbol      string        `json:"symbol"`
	Period      string        `json:"period"`
	Records     []PriceRecord `json:"data"`
	Source      string        `json:"source"`
	LastUpdated time.Time     `json:"last_updated,omitempty"`
	Warning     string        `json:"warning,omitempty"`
	Err         string        `json:"error,omitempty"`
}

// periodDays maps a period keyword to its calendar day count.
var periodDays = map[string]int{
	"1d":  1,
	"5d":  5,
	"1mo": 30,
	"3mo": 90,
	"6mo": 180,
	"1y":  365,
	"2y":  730,
	"5y":  1825,
	"max": 7300,
}

// PeriodDays returns the calendar day count for a period keyword.
// Unknown periods default to one month.
func PeriodDays(period string) int {
	if d, ok := periodDays[period]; ok {
		return d
	}
	return 30
}
