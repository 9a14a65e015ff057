// Package binance implements the gateway facade against the Binance spot
// REST API.
package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/tradewire/gateway/config"
	"github.com/tradewire/gateway/errs"
	"github.com/tradewire/gateway/internal/clocksync"
	"github.com/tradewire/gateway/internal/precision"
	"github.com/tradewire/gateway/internal/ratelimit"
	"github.com/tradewire/gateway/internal/schema"
	"github.com/tradewire/gateway/internal/sign"
	"github.com/tradewire/gateway/internal/transport"
)

// Gateway is the Binance spot backend. One instance is shared by concurrent
// callers and owns its own symbol-filter cache and rate window.
type Gateway struct {
	baseURL        string
	creds          config.Credentials
	recvWindow     time.Duration
	quote          string
	dust           decimal.Decimal
	valuationLimit int

	http    *transport.Client
	window  *ratelimit.Window
	orders  *rate.Limiter
	clock   *clocksync.Clock
	filters *precision.Store
}

// New constructs a Gateway from cfg.
func New(cfg config.Settings) (*Gateway, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
		if cfg.Testnet {
			baseURL = testnetBaseURL
		}
	}
	orderRate := cfg.OrderRate
	if orderRate <= 0 {
		orderRate = 5
	}
	g := &Gateway{
		baseURL:        baseURL,
		creds:          cfg.Credentials,
		recvWindow:     cfg.RecvWindow,
		quote:          strings.ToUpper(strings.TrimSpace(cfg.QuoteCurrency)),
		dust:           cfg.DustThreshold,
		valuationLimit: cfg.ValuationLimit,
		http: transport.New(transport.Config{
			Venue:   venueName,
			Timeout: cfg.HTTPTimeout,
		}),
		window: ratelimit.New(ratelimit.Config{
			Venue:  venueName,
			Cap:    cfg.RateLimitCap,
			Margin: cfg.RateLimitMargin,
		}),
		orders: rate.NewLimiter(rate.Limit(orderRate), 1),
	}
	g.clock = clocksync.New(venueName, g.fetchServerTime, nil)
	g.filters = precision.NewStore(venueName, g.loadFilters)
	return g, nil
}

// Name identifies the backend.
func (g *Gateway) Name() string { return venueName }

// Close releases pooled HTTP connections.
func (g *Gateway) Close() error {
	g.http.Close()
	return nil
}

func pairToSymbol(pair string) (string, error) {
	base, quote, err := schema.SplitPair(pair)
	if err != nil {
		return "", err
	}
	return base + quote, nil
}

// public performs an unauthenticated GET. The request retries verbatim on
// transient failures.
func (g *Gateway) public(ctx context.Context, weight int, path string, params url.Values) ([]byte, error) {
	if err := g.window.Acquire(ctx, weight); err != nil {
		return nil, err
	}
	endpoint := g.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	resp, err := g.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, g.apiError(resp)
	}
	return resp.Body, nil
}

// signed performs an authenticated request. The timestamp and signature are
// regenerated inside the builder so every retry attempt signs fresh.
func (g *Gateway) signed(ctx context.Context, method string, weight int, path string, params url.Values) ([]byte, error) {
	if !g.creds.Configured() {
		return nil, errs.New(venueName, errs.CodeAuth,
			errs.WithMessage("api credentials required for private endpoints"))
	}
	if err := g.window.Acquire(ctx, weight); err != nil {
		return nil, err
	}
	resp, err := g.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		query := make(url.Values, len(params)+3)
		for key, values := range params {
			query[key] = append([]string(nil), values...)
		}
		if g.recvWindow > 0 {
			query.Set("recvWindow", strconv.FormatInt(g.recvWindow.Milliseconds(), 10))
		}
		query.Set("timestamp", strconv.FormatInt(g.clock.UnixMilli(ctx), 10))
		payload := query.Encode()
		query.Set("signature", sign.HexHMACSHA256(g.creds.APISecret, payload))

		var req *http.Request
		var err error
		if method == http.MethodPost {
			req, err = http.NewRequestWithContext(ctx, method, g.baseURL+path,
				strings.NewReader(query.Encode()))
			if err == nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		} else {
			req, err = http.NewRequestWithContext(ctx, method,
				g.baseURL+path+"?"+query.Encode(), nil)
		}
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-MBX-APIKEY", g.creds.APIKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, g.apiError(resp)
	}
	return resp.Body, nil
}

func (g *Gateway) fetchServerTime(ctx context.Context) (time.Time, error) {
	body, err := g.public(ctx, weightServerTime, pathServerTime, nil)
	if err != nil {
		return time.Time{}, err
	}
	var payload serverTimeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return time.Time{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode server time"), errs.WithCause(err))
	}
	return time.UnixMilli(payload.ServerTime).UTC(), nil
}
