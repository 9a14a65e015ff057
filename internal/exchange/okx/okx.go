// Package okx implements the gateway facade against the OKX v5 REST API.
package okx

import (
	"context"
	"net/http"
	"net/url"
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

// Gateway is the OKX spot backend. Trading runs in cash mode only; margin
// and derivatives account modes are out of scope.
type Gateway struct {
	baseURL        string
	creds          config.Credentials
	simulated      bool
	quote          string
	dust           decimal.Decimal
	valuationLimit int

	http    *transport.Client
	window  *ratelimit.Window
	orders  *rate.Limiter
	clock   *clocksync.Clock
	filters *precision.Store
}

// New constructs a Gateway from cfg. Signed operations additionally require
// the venue passphrase alongside the key pair.
func New(cfg config.Settings) (*Gateway, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	orderRate := cfg.OrderRate
	if orderRate <= 0 {
		orderRate = 5
	}
	g := &Gateway{
		baseURL:        baseURL,
		creds:          cfg.Credentials,
		simulated:      cfg.Testnet,
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

func pairToInstID(pair string) (string, error) {
	base, quote, err := schema.SplitPair(pair)
	if err != nil {
		return "", err
	}
	return base + "-" + quote, nil
}

func instIDToPair(instID string) string {
	base, quote, ok := strings.Cut(strings.TrimSpace(instID), "-")
	if !ok {
		return instID
	}
	return schema.JoinPair(base, quote)
}

// unwrap validates the double-layered response and returns the data array.
func (g *Gateway) unwrap(resp transport.Response) (json.RawMessage, error) {
	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK || env.Code != "0" {
		return nil, apiError(resp.Status, env)
	}
	return env.Data, nil
}

// public performs an unauthenticated GET.
func (g *Gateway) public(ctx context.Context, weight int, path string, params url.Values) (json.RawMessage, error) {
	if err := g.window.Acquire(ctx, weight); err != nil {
		return nil, err
	}
	endpoint := g.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	resp, err := g.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		if g.simulated {
			req.Header.Set(simulatedHeader, "1")
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	return g.unwrap(resp)
}

// signed performs an authenticated request. The signature covers the ISO
// timestamp, method, request path including query, and the JSON body, and is
// regenerated inside the builder so every retry attempt signs fresh.
func (g *Gateway) signed(ctx context.Context, method string, weight int, path string, params url.Values, body any) (json.RawMessage, error) {
	if !g.creds.Configured() || strings.TrimSpace(g.creds.Passphrase) == "" {
		return nil, errs.New(venueName, errs.CodeAuth,
			errs.WithMessage("api key, secret, and passphrase required for private endpoints"))
	}
	if err := g.window.Acquire(ctx, weight); err != nil {
		return nil, err
	}

	requestPath := path
	if len(params) > 0 {
		requestPath += "?" + params.Encode()
	}
	var encodedBody []byte
	if body != nil {
		var err error
		encodedBody, err = json.Marshal(body)
		if err != nil {
			return nil, errs.New(venueName, errs.CodeInvalid,
				errs.WithMessage("encode request body"), errs.WithCause(err))
		}
	}

	resp, err := g.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		timestamp := g.clock.Now(ctx).UTC().Format(timestampLayout)
		payload := sign.PrefixedPayload(timestamp, method, requestPath, string(encodedBody))

		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+requestPath,
			strings.NewReader(string(encodedBody)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("OK-ACCESS-KEY", g.creds.APIKey)
		req.Header.Set("OK-ACCESS-SIGN", sign.Base64HMACSHA256(g.creds.APISecret, payload))
		req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
		req.Header.Set("OK-ACCESS-PASSPHRASE", g.creds.Passphrase)
		if encodedBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if g.simulated {
			req.Header.Set(simulatedHeader, "1")
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	return g.unwrap(resp)
}

func (g *Gateway) fetchServerTime(ctx context.Context) (time.Time, error) {
	data, err := g.public(ctx, weightServerTime, pathServerTime, nil)
	if err != nil {
		return time.Time{}, err
	}
	var payload []serverTimePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return time.Time{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode server time"), errs.WithCause(err))
	}
	if len(payload) == 0 {
		return time.Time{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("empty server time response"))
	}
	return parseMillis("ts", payload[0].TS)
}
