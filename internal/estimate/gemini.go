// Package estimate wraps a generative-model API as a last-resort data
// source. It is only ever consulted for historical-series requests after
// every real provider has failed; quote polling never reaches it.
package estimate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"MarketVault/internal/model"
)

// estimateTimeout is generous: estimation calls are rare and latency-tolerant.
const estimateTimeout = 90 * time.Second

// Client calls the Gemini generateContent endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

// New returns a client, or nil when no API key is configured so callers
// can treat the estimator as absent.
func New(apiKey, modelName string) *Client {
	if apiKey == "" {
		return nil
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash-exp"
	}
	return &Client{
		BaseURL: "https://generativelanguage.googleapis.com",
		APIKey:  apiKey,
		Model:   modelName,
		HTTP:    &http.Client{Timeout: estimateTimeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Estimate sends a prompt and returns the raw model text.
func (c *Client) Estimate(ctx context.Context, prompt string) (string, error) {
	req := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{Temperature: 0.1, MaxOutputTokens: 8192},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.BaseURL, c.Model, url.QueryEscape(c.APIKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("model API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty model response")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// estimatedPoint is the JSON shape the prompt asks the model for.
type estimatedPoint struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// EstimateHistorical asks the model for an approximate daily series.
// Results carry Source=AI_FALLBACK; callers must surface that caveat.
func (c *Client) EstimateHistorical(ctx context.Context, symbol string, days int) ([]model.PriceRecord, error) {
	prompt := fmt.Sprintf(
		"Provide approximate daily OHLCV stock price data for %s covering the last %d days "+
			"up to %s. Respond with ONLY a JSON array, no commentary, where each element is "+
			`{"date":"YYYY-MM-DD","open":0,"high":0,"low":0,"close":0,"volume":0}. `+
			"Use your best knowledge of recent price levels; close is required, other fields "+
			"may be 0 if unknown. Skip weekends.",
		strings.ToUpper(symbol), days, time.Now().UTC().Format("2006-01-02"))

	text, err := c.Estimate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSONArray(text)
	if err != nil {
		return nil, fmt.Errorf("no JSON array in model response: %w", err)
	}
	var points []estimatedPoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("parse estimated series: %w", err)
	}

	records := make([]model.PriceRecord, 0, len(points))
	for _, pt := range points {
		if pt.Close == 0 {
			continue
		}
		d, err := time.Parse("2006-01-02", pt.Date)
		if err != nil {
			continue
		}
		records = append(records, model.PriceRecord{
			Symbol: strings.ToUpper(symbol),
			Date:   d,
			Open:   pt.Open,
			High:   pt.High,
			Low:    pt.Low,
			Close:  pt.Close,
			Volume: pt.Volume,
			Source: model.SourceAIFallback,
		})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("estimated series contained no usable points")
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

// ExtractJSONArray pulls the first well-formed JSON array out of free text.
// Models routinely wrap payloads in prose or ``` fences.
func ExtractJSONArray(text string) (json.RawMessage, error) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return nil, fmt.Errorf("no '[' found")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				candidate := json.RawMessage(text[start : i+1])
				if !json.Valid(candidate) {
					return nil, fmt.Errorf("candidate array is not valid JSON")
				}
				return candidate, nil
			}
		}
	}
	return nil, fmt.Errorf("unterminated array")
}
