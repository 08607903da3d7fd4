package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// providerTimeout bounds every quote/history provider call.
const providerTimeout = 10 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: providerTimeout}
}

// getJSON performs a GET and decodes the JSON body into out. HTTP 429 and 403
// are surfaced as rate-limit failures because the orchestrator logs them
// differently and some callers retry on them later.
func getJSON(ctx context.Context, client *http.Client, name, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NewError(name, KindUnavailable, "build request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return NewError(name, KindUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return NewError(name, KindRateLimited, "rate limited", nil)
	case http.StatusForbidden:
		return NewError(name, KindRateLimited, "quota exhausted", nil)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return NewError(name, KindUnavailable,
			fmt.Sprintf("status %d, body: %s", resp.StatusCode, string(body)), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(name, KindParseError, "decode body", err)
	}
	return nil
}

// parseFloat converts provider string numbers ("123.45", "2.5%") to float64.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	if s[len(s)-1] == '%' {
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseInt converts provider string integers to int64.
func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// some providers send volume as "123.0"
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return n
}

// parseDate parses the YYYY-MM-DD calendar dates used by all providers.
// Twelve Data occasionally appends a time part; only the date is kept.
func parseDate(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse("2006-01-02", s)
}
