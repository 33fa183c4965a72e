// Package eodhd fetches latest stock prices from eodhd.com.
//
// It backs the price backfill of newly created tickers: answers are cached for a while (in
// Redis when configured) so that repeated writes on the same ticker do not hit the API.
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL of the eodhd API.
	DefaultBaseURL = "https://eodhd.com/api"
	// DemoKey is accepted by eodhd for a handful of tickers (AAPL.US, MCD.US...).
	DemoKey = "demo"
	// DefaultExchange is appended to symbols without an exchange suffix.
	DefaultExchange = "US"
)

// Client fetches real-time quotes. The zero value is not usable, use New.
type Client struct {
	APIKey   string
	BaseURL  string
	Exchange string
	HTTP     *http.Client
	// Cache is optional.
	Cache Cache
	TTL   time.Duration
	Log   *zap.Logger
}

// New returns a client for apiKey with default settings and no cache.
func New(apiKey string) *Client {
	if apiKey == "" {
		apiKey = DemoKey
	}
	return &Client{
		APIKey:   apiKey,
		BaseURL:  DefaultBaseURL,
		Exchange: DefaultExchange,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		TTL:      15 * time.Minute,
		Log:      zap.NewNop(),
	}
}

// quote is what gets cached.
type quote struct {
	Price decimal.Decimal `json:"price"`
	At    time.Time       `json:"at"`
}

// code returns the eodhd code of symbol, e.g. "AAPL.US".
func (c *Client) code(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(symbol, ".") || c.Exchange == "" {
		return symbol
	}
	return symbol + "." + c.Exchange
}

// Latest returns the latest known price of symbol and when it was quoted.
func (c *Client) Latest(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	code := c.code(symbol)
	if code == "" {
		return decimal.Zero, time.Time{}, fmt.Errorf("empty symbol")
	}
	key := "quote:" + code
	if q, ok := c.cached(ctx, key); ok {
		return q.Price, q.At, nil
	}

	addr := fmt.Sprintf("%s/real-time/%s?fmt=json&api_token=%s", strings.TrimRight(c.BaseURL, "/"), url.PathEscape(code), url.QueryEscape(c.APIKey))
	var jobj any
	if err := jwget(ctx, c.HTTP, addr, &jobj); err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("error retrieving %q: %w", code, err)
	}
	price, err := number(jobj, "$.close")
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("error parsing %q: %w", code, err)
	}
	if price <= 0 {
		return decimal.Zero, time.Time{}, fmt.Errorf("error parsing %q: no price quoted", code)
	}
	q := quote{Price: decimal.NewFromFloat(price), At: time.Now().UTC()}
	if ts, err := number(jobj, "$.timestamp"); err == nil && ts > 0 {
		q.At = time.Unix(int64(ts), 0).UTC()
	}
	c.store(ctx, key, q)
	c.logger().Debug("quote fetched", zap.String("code", code), zap.Stringer("price", q.Price), zap.Time("at", q.At))
	return q.Price, q.At, nil
}

// number extracts a float at path.
func number(jobj any, path string) (float64, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", path, err)
	}
	// jsonpath may answer a list of one value, keep the first one if any.
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	val, ok := jval.(float64)
	if !ok {
		return 0, fmt.Errorf("%q: not a number %v", path, jval)
	}
	return val, nil
}

func (c *Client) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// cached reads key from the cache. Cache failures count as misses.
func (c *Client) cached(ctx context.Context, key string) (quote, bool) {
	if c.Cache == nil {
		return quote{}, false
	}
	raw, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		c.logger().Warn("quote cache read failed", zap.String("key", key), zap.Error(err))
		return quote{}, false
	}
	if !ok {
		return quote{}, false
	}
	var q quote
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		c.logger().Warn("quote cache entry is corrupted", zap.String("key", key), zap.Error(err))
		return quote{}, false
	}
	return q, true
}

func (c *Client) store(ctx context.Context, key string, q quote) {
	if c.Cache == nil {
		return
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return
	}
	if err := c.Cache.Set(ctx, key, string(raw), c.TTL); err != nil {
		c.logger().Warn("quote cache write failed", zap.String("key", key), zap.Error(err))
	}
}
