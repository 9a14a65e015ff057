package okx

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tradewire/gateway/errs"
	"github.com/tradewire/gateway/internal/precision"
	"github.com/tradewire/gateway/internal/schema"
)

// Ticker returns the 24h market snapshot for pair.
func (g *Gateway) Ticker(ctx context.Context, pair string) (schema.Ticker, error) {
	instID, err := pairToInstID(pair)
	if err != nil {
		return schema.Ticker{}, err
	}
	params := url.Values{}
	params.Set("instId", instID)
	data, err := g.public(ctx, weightTicker, pathTicker, params)
	if err != nil {
		return schema.Ticker{}, err
	}
	var payload []tickerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return schema.Ticker{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode ticker"), errs.WithCause(err))
	}
	if len(payload) == 0 {
		return schema.Ticker{}, errs.New(venueName, errs.CodeNotFound,
			errs.WithMessage("no market data for "+pair),
			errs.WithCanonicalCode(errs.CanonicalInvalidSymbol))
	}
	return tickerFromPayload(payload[0], pair)
}

func tickerFromPayload(payload tickerPayload, pair string) (schema.Ticker, error) {
	ticker := schema.Ticker{Pair: pair}
	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"last", payload.Last, &ticker.Last},
		{"bidPx", payload.BidPx, &ticker.Bid},
		{"askPx", payload.AskPx, &ticker.Ask},
		{"high24h", payload.High24h, &ticker.High24h},
		{"low24h", payload.Low24h, &ticker.Low24h},
		{"vol24h", payload.Vol24h, &ticker.Volume24h},
	}
	for _, f := range fields {
		d, err := parseField(f.name, f.value)
		if err != nil {
			return schema.Ticker{}, err
		}
		*f.dst = d
	}
	if ticker.Last.IsZero() && ticker.Bid.IsZero() && ticker.Ask.IsZero() {
		return schema.Ticker{}, errs.New(venueName, errs.CodeNotFound,
			errs.WithMessage("no market data for "+pair),
			errs.WithCanonicalCode(errs.CanonicalInvalidSymbol))
	}
	ts, err := parseMillis("ts", payload.TS)
	if err != nil {
		return schema.Ticker{}, err
	}
	ticker.Timestamp = ts
	return ticker, nil
}

// Candles returns up to limit OHLCV bars, oldest first. The venue emits
// newest-first rows; the order is reversed before returning.
func (g *Gateway) Candles(ctx context.Context, pair string, intervalMinutes, limit int) ([]schema.Candle, error) {
	instID, err := pairToInstID(pair)
	if err != nil {
		return nil, err
	}
	bar, ok := barNames[intervalMinutes]
	if !ok {
		return nil, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("no native bar for "+strconv.Itoa(intervalMinutes)+" minutes"),
			errs.WithCanonicalCode(errs.CanonicalUnsupportedInterval))
	}
	if limit <= 0 || limit > maxCandleLimit {
		limit = maxCandleLimit
	}
	params := url.Values{}
	params.Set("instId", instID)
	params.Set("bar", bar)
	params.Set("limit", strconv.Itoa(limit))
	data, err := g.public(ctx, weightCandles, pathCandles, params)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode candles"), errs.WithCause(err))
	}
	candles := make([]schema.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		candle, err := candleFromRow(rows[i])
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func candleFromRow(row []string) (schema.Candle, error) {
	if len(row) < 6 {
		return schema.Candle{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("candle row too short"))
	}
	openTime, err := parseMillis("ts", row[0])
	if err != nil {
		return schema.Candle{}, err
	}
	values := make([]decimal.Decimal, 5)
	names := []string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		d, err := parseField(names[i], row[i+1])
		if err != nil {
			return schema.Candle{}, err
		}
		values[i] = d
	}
	return schema.Candle{
		OpenTime: openTime,
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
	}, nil
}

// OrderBook returns a depth snapshot; depth is clamped to the venue maximum.
func (g *Gateway) OrderBook(ctx context.Context, pair string, depth int) (schema.OrderBook, error) {
	instID, err := pairToInstID(pair)
	if err != nil {
		return schema.OrderBook{}, err
	}
	if depth <= 0 {
		depth = defaultBookDepth
	}
	if depth > maxOrderBookDepth {
		depth = maxOrderBookDepth
	}
	params := url.Values{}
	params.Set("instId", instID)
	params.Set("sz", strconv.Itoa(depth))
	data, err := g.public(ctx, weightBooks, pathBooks, params)
	if err != nil {
		return schema.OrderBook{}, err
	}
	var payload []bookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return schema.OrderBook{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode books"), errs.WithCause(err))
	}
	if len(payload) == 0 {
		return schema.OrderBook{Pair: pair}, nil
	}
	bids, err := bookLevels(payload[0].Bids)
	if err != nil {
		return schema.OrderBook{}, err
	}
	asks, err := bookLevels(payload[0].Asks)
	if err != nil {
		return schema.OrderBook{}, err
	}
	return schema.OrderBook{Pair: pair, Bids: bids, Asks: asks}, nil
}

func bookLevels(raw [][]string) ([]schema.BookLevel, error) {
	out := make([]schema.BookLevel, 0, len(raw))
	for _, level := range raw {
		if len(level) < 2 {
			continue
		}
		price, err := parseField("price", level[0])
		if err != nil {
			return nil, err
		}
		qty, err := parseField("quantity", level[1])
		if err != nil {
			return nil, err
		}
		out = append(out, schema.BookLevel{Price: price, Quantity: qty})
	}
	return out, nil
}

// AllPairs lists live spot pairs quoted in quote.
func (g *Gateway) AllPairs(ctx context.Context, quote string) ([]string, error) {
	quote = strings.ToUpper(strings.TrimSpace(quote))
	instruments, err := g.fetchInstruments(ctx, "")
	if err != nil {
		return nil, err
	}
	pairs := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		if !strings.EqualFold(inst.State, "live") {
			continue
		}
		if !strings.EqualFold(inst.QuoteCcy, quote) {
			continue
		}
		pairs = append(pairs, schema.JoinPair(inst.BaseCcy, inst.QuoteCcy))
	}
	sort.Strings(pairs)
	return pairs, nil
}

// TradablePairs filters AllPairs by trailing 24h quote volume.
func (g *Gateway) TradablePairs(ctx context.Context, quote string, minVolume decimal.Decimal) ([]string, error) {
	pairs, err := g.AllPairs(ctx, quote)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		instID, err := pairToInstID(pair)
		if err != nil {
			continue
		}
		wanted[instID] = pair
	}

	params := url.Values{}
	params.Set("instType", instTypeSpot)
	data, err := g.public(ctx, weightTickers, pathTickers, params)
	if err != nil {
		return nil, err
	}
	var tickers []tickerPayload
	if err := json.Unmarshal(data, &tickers); err != nil {
		return nil, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode ticker list"), errs.WithCause(err))
	}

	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		pair, ok := wanted[strings.ToUpper(strings.TrimSpace(t.InstID))]
		if !ok {
			continue
		}
		volume, err := parseField("volCcy24h", t.VolCcy24h)
		if err != nil {
			continue
		}
		if volume.GreaterThanOrEqual(minVolume) {
			out = append(out, pair)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (g *Gateway) fetchInstruments(ctx context.Context, instID string) ([]instrumentPayload, error) {
	params := url.Values{}
	params.Set("instType", instTypeSpot)
	if instID != "" {
		params.Set("instId", instID)
	}
	data, err := g.public(ctx, weightInstruments, pathInstruments, params)
	if err != nil {
		return nil, err
	}
	var instruments []instrumentPayload
	if err := json.Unmarshal(data, &instruments); err != nil {
		return nil, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode instruments"), errs.WithCause(err))
	}
	return instruments, nil
}

// loadFilters fetches the numeric constraints for one symbol. The venue
// publishes no minimum notional; that check is a no-op for this backend.
func (g *Gateway) loadFilters(ctx context.Context, pair string) (precision.Filters, error) {
	instID, err := pairToInstID(pair)
	if err != nil {
		return precision.Filters{}, err
	}
	instruments, err := g.fetchInstruments(ctx, instID)
	if err != nil {
		return precision.Filters{}, err
	}
	if len(instruments) == 0 {
		return precision.Filters{}, errs.New(venueName, errs.CodeNotFound,
			errs.WithMessage("no instrument metadata for "+pair),
			errs.WithCanonicalCode(errs.CanonicalInvalidSymbol))
	}
	inst := instruments[0]

	var out precision.Filters
	assign := func(dst *decimal.Decimal, name, value string) error {
		d, err := parseField(name, value)
		if err != nil {
			return err
		}
		if d.Sign() > 0 {
			*dst = d
		}
		return nil
	}
	if err := assign(&out.QuantityStep, "lotSz", inst.LotSz); err != nil {
		return precision.Filters{}, err
	}
	if err := assign(&out.QuantityMin, "minSz", inst.MinSz); err != nil {
		return precision.Filters{}, err
	}
	if err := assign(&out.QuantityMax, "maxLmtSz", inst.MaxLmtSz); err != nil {
		return precision.Filters{}, err
	}
	if err := assign(&out.PriceTick, "tickSz", inst.TickSz); err != nil {
		return precision.Filters{}, err
	}
	return out, nil
}
