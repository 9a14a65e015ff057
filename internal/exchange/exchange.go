// Package exchange defines the venue-neutral gateway contract. One concrete
// implementation exists per venue; callers depend only on this interface and
// the canonical schema shapes.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tradewire/gateway/internal/schema"
)

// Exchange is the gateway facade. Every method is synchronous from the
// caller's perspective and safe to cancel through ctx; shared state is never
// corrupted by a cancelled call. Pairs use BASE/QUOTE notation.
type Exchange interface {
	// Name identifies the venue backend.
	Name() string

	// Ticker returns a fresh market snapshot for pair.
	Ticker(ctx context.Context, pair string) (schema.Ticker, error)

	// Candles returns up to limit OHLCV bars at the given granularity.
	Candles(ctx context.Context, pair string, intervalMinutes, limit int) ([]schema.Candle, error)

	// OrderBook returns a depth snapshot. Oversized depth is clamped to the
	// venue maximum, never rejected.
	OrderBook(ctx context.Context, pair string, depth int) (schema.OrderBook, error)

	// Balances returns held assets above the dust threshold plus a
	// best-effort total valued in the reference quote currency.
	Balances(ctx context.Context) (schema.BalanceSheet, error)

	// MarketBuy spends quoteAmount of the quote currency at market.
	MarketBuy(ctx context.Context, pair string, quoteAmount decimal.Decimal) (schema.Order, error)

	// MarketSell sells baseAmount of the base currency at market; the
	// quantity is rounded down to the symbol's step first.
	MarketSell(ctx context.Context, pair string, baseAmount decimal.Decimal) (schema.Order, error)

	// LimitBuy places a good-till-cancelled buy derived from quoteAmount at
	// the given price; quantity and price are rounded to step and tick.
	LimitBuy(ctx context.Context, pair string, quoteAmount, price decimal.Decimal) (schema.Order, error)

	// LimitSell places a good-till-cancelled sell of baseAmount at price.
	LimitSell(ctx context.Context, pair string, baseAmount, price decimal.Decimal) (schema.Order, error)

	// CancelOrder cancels an order. Backends that require a symbol return a
	// missing_symbol error when pair is empty.
	CancelOrder(ctx context.Context, orderID, pair string) (schema.Order, error)

	// QueryOrder re-fetches the venue's view of an order.
	QueryOrder(ctx context.Context, orderID, pair string) (schema.Order, error)

	// OpenOrders lists resting orders, optionally restricted to pair.
	OpenOrders(ctx context.Context, pair string) ([]schema.Order, error)

	// AllPairs lists tradable pairs quoted in the given currency.
	AllPairs(ctx context.Context, quote string) ([]string, error)

	// TradablePairs filters AllPairs by trailing 24h quote volume.
	TradablePairs(ctx context.Context, quote string, minVolume decimal.Decimal) ([]string, error)

	// Close releases the pooled HTTP transport.
	Close() error
}
