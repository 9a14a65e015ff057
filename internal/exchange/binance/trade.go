package binance

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"github.com/tradewire/gateway/errs"
	"github.com/tradewire/gateway/internal/observability"
	"github.com/tradewire/gateway/internal/schema"
)

// MarketBuy spends quoteAmount of the quote currency at market price.
func (g *Gateway) MarketBuy(ctx context.Context, pair string, quoteAmount decimal.Decimal) (schema.Order, error) {
	symbol, err := pairToSymbol(pair)
	if err != nil {
		return schema.Order{}, err
	}
	if quoteAmount.Sign() <= 0 {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("quote amount must be positive"))
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", "BUY")
	params.Set("type", "MARKET")
	params.Set("quoteOrderQty", quoteAmount.String())
	return g.submitOrder(ctx, pair, params)
}

// MarketSell sells baseAmount of the base currency at market price; the
// quantity is rounded down to the symbol's step first.
func (g *Gateway) MarketSell(ctx context.Context, pair string, baseAmount decimal.Decimal) (schema.Order, error) {
	symbol, err := pairToSymbol(pair)
	if err != nil {
		return schema.Order{}, err
	}
	qty, err := g.filters.RoundQuantity(ctx, pair, baseAmount)
	if err != nil {
		return schema.Order{}, err
	}
	if qty.Sign() <= 0 {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("quantity rounds to zero at the symbol step"))
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", "SELL")
	params.Set("type", "MARKET")
	params.Set("quantity", qty.String())
	return g.submitOrder(ctx, pair, params)
}

// LimitBuy derives the order quantity from quoteAmount at the rounded price
// and places a good-till-cancelled buy.
func (g *Gateway) LimitBuy(ctx context.Context, pair string, quoteAmount, price decimal.Decimal) (schema.Order, error) {
	symbol, err := pairToSymbol(pair)
	if err != nil {
		return schema.Order{}, err
	}
	if quoteAmount.Sign() <= 0 || price.Sign() <= 0 {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("quote amount and price must be positive"))
	}
	limitPrice, err := g.filters.RoundPrice(ctx, pair, price)
	if err != nil {
		return schema.Order{}, err
	}
	if limitPrice.Sign() <= 0 {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("price rounds to zero at the symbol tick"))
	}
	qty, err := g.filters.RoundQuantity(ctx, pair, quoteAmount.Div(limitPrice))
	if err != nil {
		return schema.Order{}, err
	}
	return g.placeLimit(ctx, pair, symbol, "BUY", qty, limitPrice)
}

// LimitSell places a good-till-cancelled sell of baseAmount at price.
func (g *Gateway) LimitSell(ctx context.Context, pair string, baseAmount, price decimal.Decimal) (schema.Order, error) {
	symbol, err := pairToSymbol(pair)
	if err != nil {
		return schema.Order{}, err
	}
	if baseAmount.Sign() <= 0 || price.Sign() <= 0 {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("base amount and price must be positive"))
	}
	limitPrice, err := g.filters.RoundPrice(ctx, pair, price)
	if err != nil {
		return schema.Order{}, err
	}
	qty, err := g.filters.RoundQuantity(ctx, pair, baseAmount)
	if err != nil {
		return schema.Order{}, err
	}
	return g.placeLimit(ctx, pair, symbol, "SELL", qty, limitPrice)
}

func (g *Gateway) placeLimit(ctx context.Context, pair, symbol, side string, qty, price decimal.Decimal) (schema.Order, error) {
	if qty.Sign() <= 0 {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("quantity rounds to zero at the symbol step"))
	}
	if err := g.filters.CheckNotional(ctx, pair, qty, price); err != nil {
		return schema.Order{}, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("quantity", qty.String())
	params.Set("price", price.String())
	return g.submitOrder(ctx, pair, params)
}

func (g *Gateway) submitOrder(ctx context.Context, pair string, params url.Values) (schema.Order, error) {
	if err := g.orders.Wait(ctx); err != nil {
		return schema.Order{}, err
	}
	params.Set("newClientOrderId", "tw-"+uuid.NewString())
	params.Set("newOrderRespType", "FULL")
	body, err := g.signed(ctx, http.MethodPost, weightOrder, pathOrder, params)
	if err != nil {
		return schema.Order{}, err
	}
	var raw orderResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return schema.Order{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode order response"), errs.WithCause(err))
	}
	return normalizeOrder(raw, pair)
}

// CancelOrder cancels a resting order. The venue requires the symbol.
func (g *Gateway) CancelOrder(ctx context.Context, orderID, pair string) (schema.Order, error) {
	if strings.TrimSpace(pair) == "" {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("cancel requires the order's symbol"),
			errs.WithCanonicalCode(errs.CanonicalMissingSymbol))
	}
	symbol, err := pairToSymbol(pair)
	if err != nil {
		return schema.Order{}, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	body, err := g.signed(ctx, http.MethodDelete, weightOrder, pathOrder, params)
	if err != nil {
		return schema.Order{}, err
	}
	var raw orderResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return schema.Order{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode cancel response"), errs.WithCause(err))
	}
	return normalizeOrder(raw, pair)
}

// QueryOrder re-fetches the venue's view of an order.
func (g *Gateway) QueryOrder(ctx context.Context, orderID, pair string) (schema.Order, error) {
	if strings.TrimSpace(pair) == "" {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("query requires the order's symbol"),
			errs.WithCanonicalCode(errs.CanonicalMissingSymbol))
	}
	symbol, err := pairToSymbol(pair)
	if err != nil {
		return schema.Order{}, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	body, err := g.signed(ctx, http.MethodGet, weightOrder, pathOrder, params)
	if err != nil {
		return schema.Order{}, err
	}
	var raw orderResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return schema.Order{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode order query"), errs.WithCause(err))
	}
	return normalizeOrder(raw, pair)
}

// OpenOrders lists resting orders, optionally restricted to pair.
func (g *Gateway) OpenOrders(ctx context.Context, pair string) ([]schema.Order, error) {
	params := url.Values{}
	weight := weightOpenOrdersAll
	if strings.TrimSpace(pair) != "" {
		symbol, err := pairToSymbol(pair)
		if err != nil {
			return nil, err
		}
		params.Set("symbol", symbol)
		weight = weightOpenOrders
	}
	body, err := g.signed(ctx, http.MethodGet, weight, pathOpenOrders, params)
	if err != nil {
		return nil, err
	}
	var raws []orderResponse
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode open orders"), errs.WithCause(err))
	}
	orders := make([]schema.Order, 0, len(raws))
	for _, raw := range raws {
		orderPair := pair
		if orderPair == "" {
			orderPair = raw.Symbol
		}
		order, err := normalizeOrder(raw, orderPair)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// Balances returns held assets above the dust threshold plus a best-effort
// total valued in the reference quote currency. Valuation prices at most
// valuationLimit assets, largest raw balances first, to conserve the shared
// rate budget; a failed lookup for one asset skips that asset only.
func (g *Gateway) Balances(ctx context.Context) (schema.BalanceSheet, error) {
	body, err := g.signed(ctx, http.MethodGet, weightAccount, pathAccount, nil)
	if err != nil {
		return schema.BalanceSheet{}, err
	}
	var payload accountResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return schema.BalanceSheet{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode account"), errs.WithCause(err))
	}

	sheet := schema.BalanceSheet{
		Balances: make(map[string]decimal.Decimal, len(payload.Balances)),
		Quote:    g.quote,
	}
	for _, bal := range payload.Balances {
		asset := strings.ToUpper(strings.TrimSpace(bal.Asset))
		if asset == "" {
			continue
		}
		free, err := parseField("free", bal.Free)
		if err != nil {
			return schema.BalanceSheet{}, err
		}
		locked, err := parseField("locked", bal.Locked)
		if err != nil {
			return schema.BalanceSheet{}, err
		}
		amount := free.Add(locked)
		if amount.LessThanOrEqual(g.dust) {
			continue
		}
		sheet.Balances[asset] = amount
	}
	sheet.Total = g.valueBalances(ctx, sheet.Balances)
	return sheet, nil
}

func (g *Gateway) valueBalances(ctx context.Context, balances map[string]decimal.Decimal) decimal.Decimal {
	type holding struct {
		asset  string
		amount decimal.Decimal
	}
	total := decimal.Zero
	candidates := make([]holding, 0, len(balances))
	for asset, amount := range balances {
		if asset == g.quote {
			total = total.Add(amount)
			continue
		}
		candidates = append(candidates, holding{asset: asset, amount: amount})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].amount.GreaterThan(candidates[j].amount)
	})
	limit := g.valuationLimit
	if limit <= 0 {
		limit = 10
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	var mu sync.Mutex
	var wg conc.WaitGroup
	for _, c := range candidates {
		c := c
		wg.Go(func() {
			ticker, err := g.Ticker(ctx, schema.JoinPair(c.asset, g.quote))
			if err != nil {
				observability.Log().Debug("balance valuation lookup failed",
					observability.F("venue", venueName),
					observability.F("asset", c.asset),
					observability.F("error", err.Error()))
				return
			}
			mu.Lock()
			total = total.Add(c.amount.Mul(ticker.Last))
			mu.Unlock()
		})
	}
	wg.Wait()
	return total
}
