package paprika

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"coinview/internal/config"
	"coinview/internal/version"
)

var (
	// ErrNetwork wraps transport failures and upstream unavailability
	ErrNetwork = errors.New("network error")
	// ErrDecode is returned when a response is not the expected JSON shape
	ErrDecode = errors.New("decode error")
	// ErrNotFound is returned when upstream reports a missing resource
	ErrNotFound = errors.New("coin not found")
	// ErrInvalidID is returned before any request when a coin id is unusable
	ErrInvalidID = errors.New("invalid coin id")
)

const maxErrorBody = 512

// Client talks to the Coinpaprika REST API. It does not retry; the only
// timeout is the one configured on the underlying http.Client.
type Client struct {
	http       *http.Client
	baseURL    string
	historyURL string
	iconURL    string
}

// NewClient creates a client from upstream configuration
func NewClient(cfg config.UpstreamConfig) *Client {
	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		historyURL: cfg.HistoryURL,
		iconURL:    cfg.IconURL,
	}
}

// ListCoins returns every coin in upstream rank order
func (c *Client) ListCoins(ctx context.Context) ([]CoinSummary, error) {
	var coins []CoinSummary
	if err := c.getJSON(ctx, c.baseURL+"/coins", &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// GetCoinInfo returns the detail document for a coin
func (c *Client) GetCoinInfo(ctx context.Context, id string) (*CoinDetail, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	var detail CoinDetail
	if err := c.getJSON(ctx, c.baseURL+"/coins/"+url.PathEscape(id), &detail); err != nil {
		return nil, err
	}
	if detail.ID == "" {
		return nil, fmt.Errorf("%w: coin %q: response has no id", ErrDecode, id)
	}
	return &detail, nil
}

// GetCoinPrice returns the current ticker for a coin
func (c *Client) GetCoinPrice(ctx context.Context, id string) (*PriceQuote, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	var quote PriceQuote
	if err := c.getJSON(ctx, c.baseURL+"/tickers/"+url.PathEscape(id), &quote); err != nil {
		return nil, err
	}
	if quote.ID == "" {
		return nil, fmt.Errorf("%w: ticker %q: response has no id", ErrDecode, id)
	}
	return &quote, nil
}

// GetCoinHistory returns OHLCV buckets ordered by close time. A coin with no
// history yields an empty, non-nil slice.
func (c *Client) GetCoinHistory(ctx context.Context, id string) ([]HistoricalPricePoint, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.historyURL)
	if err != nil {
		return nil, fmt.Errorf("parse history url: %w", err)
	}
	q := u.Query()
	q.Set("coinId", id)
	u.RawQuery = q.Encode()

	points := []HistoricalPricePoint{}
	if err := c.getJSON(ctx, u.String(), &points); err != nil {
		return nil, err
	}
	if points == nil {
		// upstream sent a JSON null
		points = []HistoricalPricePoint{}
	}

	slices.SortStableFunc(points, func(a, b HistoricalPricePoint) int {
		switch {
		case a.TimeClose < b.TimeClose:
			return -1
		case a.TimeClose > b.TimeClose:
			return 1
		}
		return 0
	})
	return points, nil
}

// IconURL returns the icon image URL for a ticker symbol
func (c *Client) IconURL(symbol string) string {
	return fmt.Sprintf(c.iconURL, strings.ToLower(symbol))
}

// errorEnvelope is how upstream reports failures inside a 200 or 4xx body
type errorEnvelope struct {
	Error string `json:"error"`
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrNetwork, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrNetwork, req.URL.Path, err)
	}

	slog.Debug("upstream_request",
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s: %s", ErrNotFound, req.URL.Path, upstreamMessage(body))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s: %s: %s", ErrNetwork, req.URL.Path, resp.Status, upstreamMessage(body))
	}

	if err := checkEnvelope(body); err != nil {
		return fmt.Errorf("%s: %w", req.URL.Path, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, req.URL.Path, err)
	}
	return nil
}

// checkEnvelope detects an {"error": "..."} object returned with status 200
func checkEnvelope(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var env errorEnvelope
	if json.Unmarshal(trimmed, &env) != nil || env.Error == "" {
		return nil
	}
	if strings.Contains(strings.ToLower(env.Error), "not found") {
		return fmt.Errorf("%w: %s", ErrNotFound, env.Error)
	}
	return fmt.Errorf("%w: upstream error: %s", ErrDecode, env.Error)
}

func upstreamMessage(body []byte) string {
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != "" {
		return env.Error
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.ContainsAny(id, "/?# \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
