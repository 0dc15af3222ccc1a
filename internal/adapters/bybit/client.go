// Package bybit loads historical candles from the Bybit v5 REST API.
package bybit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
)

const (
	MainnetURL = "https://api.bybit.com"
	TestnetURL = "https://api-testnet.bybit.com"

	// MaxKlinesLimit is the largest page /v5/market/kline serves.
	MaxKlinesLimit = 1000
)

// Config holds configuration for the Bybit market data client.
type Config struct {
	BaseURL    string        // MainnetURL when empty
	Category   string        // spot, linear or inverse; linear when empty
	Timeout    time.Duration // per request, 10s when zero
	HTTPClient *http.Client  // overrides Timeout when set
	Logger     ports.Logger
}

// Client fetches public market data. It never signs requests.
type Client struct {
	baseURL  string
	category string
	http     *http.Client
	logger   ports.Logger
}

// New creates a new Bybit client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Bybit client: %w", ports.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = MainnetURL
	}
	switch cfg.Category {
	case "":
		cfg.Category = "linear"
	case "spot", "linear", "inverse":
	default:
		return nil, fmt.Errorf("unsupported Bybit category %q: %w", cfg.Category, ports.ErrConfiguration)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		category: cfg.Category,
		http:     httpClient,
		logger:   cfg.Logger,
	}, nil
}

// Interval maps a timeframe to the Bybit interval parameter.
func Interval(tf domain.Timeframe) (string, error) {
	switch tf {
	case domain.OneMinute:
		return "1", nil
	case domain.FiveMinutes:
		return "5", nil
	case domain.FifteenMinutes:
		return "15", nil
	case domain.OneHour:
		return "60", nil
	case domain.FourHours:
		return "240", nil
	case domain.OneDay:
		return "D", nil
	case domain.OneWeek:
		return "W", nil
	default:
		return "", fmt.Errorf("bybit interval for %q: %w: %w", tf, domain.ErrUnsupportedTimeframe, ports.ErrConfiguration)
	}
}

// GetKlines returns the candles with start <= open time <= end, oldest first.
// Bybit answers newest first and caps the answer at limit.
func (c *Client) GetKlines(ctx context.Context, symbol string, tf domain.Timeframe, start, end int64, limit int) ([]domain.Candle, error) {
	interval, err := Interval(tf)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("category", c.category)
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("start", strconv.FormatInt(start, 10))
	query.Set("end", strconv.FormatInt(end, 10))
	query.Set("limit", strconv.Itoa(min(max(limit, 1), MaxKlinesLimit)))

	body, err := c.get(ctx, "/v5/market/kline", query)
	if err != nil {
		return nil, err
	}
	candles, err := parseKlines(body, tf)
	if err != nil {
		return nil, fmt.Errorf("bybit kline %s %s: %w", symbol, tf, err)
	}
	return candles, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("bybit %s: %w: %w", path, ports.ErrInvalidRequest, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.handleError(ctx, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.handleError(ctx, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("bybit %s: %w: status %d", path, ports.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("bybit %s: %w: status %d", path, ports.ErrExchangeUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("bybit %s: %w: status %d: %s", path, ports.ErrInvalidRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// handleError classifies transport failures.
func (c *Client) handleError(ctx context.Context, path string, err error) error {
	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("bybit %s: %w: %w", path, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("bybit %s canceled: %w: %w", path, ports.ErrContextCanceled, err)
	default:
		finalErr = fmt.Errorf("bybit %s: %w: %w", path, ports.ErrConnectionFailed, err)
	}
	c.logger.Error(ctx, err, "Bybit request failed", map[string]interface{}{"path": path})
	return finalErr
}

// parseKlines decodes a /v5/market/kline response. Each row is
// [startTime, open, high, low, close, volume, turnover] as strings.
func parseKlines(body []byte, tf domain.Timeframe) ([]domain.Candle, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON response", ports.ErrExchangeUnavailable)
	}
	res := gjson.ParseBytes(body)
	if code := res.Get("retCode").Int(); code != 0 {
		return nil, fmt.Errorf("%w: retCode %d: %s", ports.ErrExchangeUnavailable, code, res.Get("retMsg").String())
	}

	width := tf.Duration().Milliseconds()
	rows := res.Get("result.list").Array()
	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		f := row.Array()
		if len(f) < 6 {
			return nil, fmt.Errorf("row %d: expected at least 6 fields, got %d", i, len(f))
		}
		open := f[0].Int()
		candle := domain.Candle{
			OpenTime:  open,
			CloseTime: open + width - 1,
			Open:      f[1].Float(),
			High:      f[2].Float(),
			Low:       f[3].Float(),
			Close:     f[4].Float(),
			Volume:    f[5].Float(),
		}
		if err := candle.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		candles = append(candles, candle)
	}
	slices.Reverse(candles)
	return candles, nil
}
