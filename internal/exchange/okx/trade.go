package okx

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

type orderRequest struct {
	InstID  string `json:"instId"`
	TdMode  string `json:"tdMode"`
	ClOrdID string `json:"clOrdId"`
	Side    string `json:"side"`
	OrdType string `json:"ordType"`
	Sz      string `json:"sz"`
	Px      string `json:"px,omitempty"`
	TgtCcy  string `json:"tgtCcy,omitempty"`
}

// MarketBuy spends quoteAmount of the quote currency at market price. The
// size is denominated in quote currency via tgtCcy.
func (g *Gateway) MarketBuy(ctx context.Context, pair string, quoteAmount decimal.Decimal) (schema.Order, error) {
	instID, err := pairToInstID(pair)
	if err != nil {
		return schema.Order{}, err
	}
	if quoteAmount.Sign() <= 0 {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("quote amount must be positive"))
	}
	return g.submitOrder(ctx, pair, orderRequest{
		InstID:  instID,
		Side:    "buy",
		OrdType: "market",
		Sz:      quoteAmount.String(),
		TgtCcy:  "quote_ccy",
	})
}

// MarketSell sells baseAmount of the base currency at market price; the
// quantity is rounded down to the instrument's lot size first.
func (g *Gateway) MarketSell(ctx context.Context, pair string, baseAmount decimal.Decimal) (schema.Order, error) {
	instID, err := pairToInstID(pair)
	if err != nil {
		return schema.Order{}, err
	}
	qty, err := g.filters.RoundQuantity(ctx, pair, baseAmount)
	if err != nil {
		return schema.Order{}, err
	}
	if qty.Sign() <= 0 {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("quantity rounds to zero at the lot size"))
	}
	return g.submitOrder(ctx, pair, orderRequest{
		InstID:  instID,
		Side:    "sell",
		OrdType: "market",
		Sz:      qty.String(),
	})
}

// LimitBuy derives the order quantity from quoteAmount at the rounded price
// and places a good-till-cancelled buy.
func (g *Gateway) LimitBuy(ctx context.Context, pair string, quoteAmount, price decimal.Decimal) (schema.Order, error) {
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
			errs.WithMessage("price rounds to zero at the tick size"))
	}
	qty, err := g.filters.RoundQuantity(ctx, pair, quoteAmount.Div(limitPrice))
	if err != nil {
		return schema.Order{}, err
	}
	return g.placeLimit(ctx, pair, "buy", qty, limitPrice)
}

// LimitSell places a good-till-cancelled sell of baseAmount at price.
func (g *Gateway) LimitSell(ctx context.Context, pair string, baseAmount, price decimal.Decimal) (schema.Order, error) {
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
	return g.placeLimit(ctx, pair, "sell", qty, limitPrice)
}

func (g *Gateway) placeLimit(ctx context.Context, pair, side string, qty, price decimal.Decimal) (schema.Order, error) {
	instID, err := pairToInstID(pair)
	if err != nil {
		return schema.Order{}, err
	}
	if qty.Sign() <= 0 {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("quantity rounds to zero at the lot size"))
	}
	if err := g.filters.CheckNotional(ctx, pair, qty, price); err != nil {
		return schema.Order{}, err
	}
	return g.submitOrder(ctx, pair, orderRequest{
		InstID:  instID,
		Side:    side,
		OrdType: "limit",
		Sz:      qty.String(),
		Px:      price.String(),
	})
}

// submitOrder places the order and re-queries it once so the caller gets a
// fill snapshot instead of the venue's bare acknowledgement.
func (g *Gateway) submitOrder(ctx context.Context, pair string, req orderRequest) (schema.Order, error) {
	if err := g.orders.Wait(ctx); err != nil {
		return schema.Order{}, err
	}
	req.TdMode = "cash"
	req.ClOrdID = newClientOrderID()
	data, err := g.signed(ctx, http.MethodPost, weightOrder, pathOrder, nil, req)
	if err != nil {
		return schema.Order{}, err
	}
	ack, err := decodeAck(data)
	if err != nil {
		return schema.Order{}, err
	}
	return g.QueryOrder(ctx, ack.OrdID, pair)
}

// newClientOrderID generates a venue-safe idempotency token. The venue only
// accepts alphanumeric client identifiers, so the UUID dashes are stripped.
func newClientOrderID() string {
	return "tw" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func decodeAck(data json.RawMessage) (orderAckPayload, error) {
	var acks []orderAckPayload
	if err := json.Unmarshal(data, &acks); err != nil {
		return orderAckPayload{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode order ack"), errs.WithCause(err))
	}
	if len(acks) == 0 {
		return orderAckPayload{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("empty order ack"))
	}
	ack := acks[0]
	if ack.SCode != "" && ack.SCode != "0" {
		return orderAckPayload{}, apiError(http.StatusOK, envelope{Code: ack.SCode, Msg: ack.SMsg})
	}
	return ack, nil
}

// CancelOrder cancels a resting order and returns its re-queried state. The
// venue requires the instrument alongside the order identifier.
func (g *Gateway) CancelOrder(ctx context.Context, orderID, pair string) (schema.Order, error) {
	if strings.TrimSpace(pair) == "" {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("cancel requires the order's instrument"),
			errs.WithCanonicalCode(errs.CanonicalMissingSymbol))
	}
	instID, err := pairToInstID(pair)
	if err != nil {
		return schema.Order{}, err
	}
	body := map[string]string{"instId": instID, "ordId": orderID}
	data, err := g.signed(ctx, http.MethodPost, weightOrder, pathCancelOrder, nil, body)
	if err != nil {
		return schema.Order{}, err
	}
	if _, err := decodeAck(data); err != nil {
		return schema.Order{}, err
	}
	return g.QueryOrder(ctx, orderID, pair)
}

// QueryOrder re-fetches the venue's view of an order.
func (g *Gateway) QueryOrder(ctx context.Context, orderID, pair string) (schema.Order, error) {
	if strings.TrimSpace(pair) == "" {
		return schema.Order{}, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("query requires the order's instrument"),
			errs.WithCanonicalCode(errs.CanonicalMissingSymbol))
	}
	instID, err := pairToInstID(pair)
	if err != nil {
		return schema.Order{}, err
	}
	params := url.Values{}
	params.Set("instId", instID)
	params.Set("ordId", orderID)
	data, err := g.signed(ctx, http.MethodGet, weightOrder, pathOrder, params, nil)
	if err != nil {
		return schema.Order{}, err
	}
	var raws []orderPayload
	if err := json.Unmarshal(data, &raws); err != nil {
		return schema.Order{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode order query"), errs.WithCause(err))
	}
	if len(raws) == 0 {
		return schema.Order{}, errs.New(venueName, errs.CodeNotFound,
			errs.WithMessage("order not found: "+orderID),
			errs.WithCanonicalCode(errs.CanonicalOrderNotFound))
	}
	return normalizeOrder(raws[0], pair)
}

// OpenOrders lists resting orders, optionally restricted to pair.
func (g *Gateway) OpenOrders(ctx context.Context, pair string) ([]schema.Order, error) {
	params := url.Values{}
	params.Set("instType", instTypeSpot)
	if strings.TrimSpace(pair) != "" {
		instID, err := pairToInstID(pair)
		if err != nil {
			return nil, err
		}
		params.Set("instId", instID)
	}
	data, err := g.signed(ctx, http.MethodGet, weightOpenOrders, pathOpenOrders, params, nil)
	if err != nil {
		return nil, err
	}
	var raws []orderPayload
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode open orders"), errs.WithCause(err))
	}
	orders := make([]schema.Order, 0, len(raws))
	for _, raw := range raws {
		order, err := normalizeOrder(raw, instIDToPair(raw.InstID))
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// Balances returns held assets above the dust threshold plus a best-effort
// total valued in the reference quote currency.
func (g *Gateway) Balances(ctx context.Context) (schema.BalanceSheet, error) {
	data, err := g.signed(ctx, http.MethodGet, weightBalance, pathBalance, nil, nil)
	if err != nil {
		return schema.BalanceSheet{}, err
	}
	var payloads []balancePayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return schema.BalanceSheet{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode balance"), errs.WithCause(err))
	}

	sheet := schema.BalanceSheet{
		Balances: make(map[string]decimal.Decimal),
		Quote:    g.quote,
	}
	for _, payload := range payloads {
		for _, detail := range payload.Details {
			asset := strings.ToUpper(strings.TrimSpace(detail.Ccy))
			if asset == "" {
				continue
			}
			cash, err := parseField("cashBal", detail.CashBal)
			if err != nil {
				return schema.BalanceSheet{}, err
			}
			if cash.LessThanOrEqual(g.dust) {
				continue
			}
			sheet.Balances[asset] = cash
		}
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
