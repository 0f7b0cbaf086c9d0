// Package storefront talks to the storefront's public JSON endpoints: the
// cart and the active-timer list.
package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nixlim/storetimer/internal/config"
	"github.com/nixlim/storetimer/internal/debuglog"
	"github.com/nixlim/storetimer/internal/timer"
)

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

// Client fetches cart and timer data. It implements timer.CartSource.
type Client struct {
	http           *http.Client
	baseURL        string
	cartEndpoint   string
	timersEndpoint string
	log            debuglog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the debug logger.
func WithLogger(l debuglog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client for the storefront described by cfg.
func New(cfg config.StorefrontConfig, opts ...Option) *Client {
	c := &Client{
		http:           &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		cartEndpoint:   cfg.CartEndpoint,
		timersEndpoint: cfg.TimersEndpoint,
		log:            debuglog.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ timer.CartSource = (*Client)(nil)

type cartResponse struct {
	TotalPrice int64 `json:"total_price"`
}

// Subtotal returns the cart total in currency units. Any failure yields 0.
func (c *Client) Subtotal(ctx context.Context) float64 {
	var cart cartResponse
	if err := c.getJSON(ctx, c.cartEndpoint, &cart); err != nil {
		c.log.Log("storefront", "cart fetch failed", "err", err)
		return 0
	}
	return float64(cart.TotalPrice) / 100
}

// Timers fetches the active-timer list.
func (c *Client) Timers(ctx context.Context) ([]timer.MetafieldTimer, error) {
	var list timer.List
	if err := c.getJSON(ctx, c.timersEndpoint, &list); err != nil {
		return nil, fmt.Errorf("fetching timers: %w", err)
	}
	return list.Timers, nil
}

// Resolve turns an endpoint into an absolute URL against the base URL.
// Absolute endpoints are returned unchanged.
func (c *Client) Resolve(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.IsAbs() {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Resolve(endpoint), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}
