// Package schema defines the canonical market-data and trading shapes emitted
// by every gateway backend. Callers never see venue-native field names,
// identifier types, or error codes.
package schema

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradewire/gateway/errs"
)

// Side identifies the direction of an order.
type Side string

const (
	// SideBuy marks a buy order.
	SideBuy Side = "BUY"
	// SideSell marks a sell order.
	SideSell Side = "SELL"
)

// OrderType identifies the execution style of an order.
type OrderType string

const (
	// OrderTypeMarket marks an order executed at the prevailing price.
	OrderTypeMarket OrderType = "MARKET"
	// OrderTypeLimit marks a good-till-cancelled limit order.
	OrderTypeLimit OrderType = "LIMIT"
)

// OrderStatus captures the canonical lifecycle state of an order.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusUnknown         OrderStatus = "UNKNOWN"
)

// Order is the canonical order acknowledgement shape. OrderID is always a
// string regardless of the venue's native identifier type. The gateway never
// infers fills out-of-band; an Order only changes by re-querying the venue or
// cancelling.
type Order struct {
	OrderID        string
	Pair           string
	Status         OrderStatus
	Side           Side
	Type           OrderType
	RequestedQty   decimal.Decimal
	FilledBaseQty  decimal.Decimal
	FilledQuoteQty decimal.Decimal
	AvgFillPrice   decimal.Decimal
}

// Ticker is a read-only market snapshot, freshly fetched on every call.
type Ticker struct {
	Pair      string
	Last      decimal.Decimal
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	High24h   decimal.Decimal
	Low24h    decimal.Decimal
	Volume24h decimal.Decimal
	Timestamp time.Time
}

// Candle is a single OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// BookLevel is a single price level of an order book side.
type BookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook holds both sides of a depth snapshot, best prices first.
type OrderBook struct {
	Pair string
	Bids []BookLevel
	Asks []BookLevel
}

// BalanceSheet maps held assets to amounts and carries a best-effort total
// valued in the reference quote currency.
type BalanceSheet struct {
	Balances map[string]decimal.Decimal
	Quote    string
	Total    decimal.Decimal
}

// AveragePrice computes cumulativeQuote / executedQty, returning zero when
// nothing executed.
func AveragePrice(cumulativeQuote, executedQty decimal.Decimal) decimal.Decimal {
	if executedQty.Sign() <= 0 {
		return decimal.Zero
	}
	return cumulativeQuote.Div(executedQty)
}

// SplitPair decomposes standard BASE/QUOTE pair notation.
func SplitPair(pair string) (base, quote string, err error) {
	parts := strings.Split(strings.TrimSpace(pair), "/")
	if len(parts) != 2 {
		return "", "", errs.New("", errs.CodeInvalid,
			errs.WithMessage("pair must use BASE/QUOTE notation: "+pair),
			errs.WithCanonicalCode(errs.CanonicalInvalidSymbol))
	}
	base = strings.ToUpper(strings.TrimSpace(parts[0]))
	quote = strings.ToUpper(strings.TrimSpace(parts[1]))
	if base == "" || quote == "" {
		return "", "", errs.New("", errs.CodeInvalid,
			errs.WithMessage("pair has empty base or quote: "+pair),
			errs.WithCanonicalCode(errs.CanonicalInvalidSymbol))
	}
	return base, quote, nil
}

// JoinPair renders base and quote in standard notation.
func JoinPair(base, quote string) string {
	return strings.ToUpper(strings.TrimSpace(base)) + "/" + strings.ToUpper(strings.TrimSpace(quote))
}
