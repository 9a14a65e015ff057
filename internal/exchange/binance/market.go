package binance

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tradewire/gateway/errs"
	"github.com/tradewire/gateway/internal/precision"
	"github.com/tradewire/gateway/internal/schema"
)

// Ticker returns the 24h market snapshot for pair.
func (g *Gateway) Ticker(ctx context.Context, pair string) (schema.Ticker, error) {
	symbol, err := pairToSymbol(pair)
	if err != nil {
		return schema.Ticker{}, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := g.public(ctx, weightTicker, pathTicker24h, params)
	if err != nil {
		return schema.Ticker{}, err
	}
	var payload ticker24hResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return schema.Ticker{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode ticker"), errs.WithCause(err))
	}
	return tickerFromPayload(payload, pair)
}

func tickerFromPayload(payload ticker24hResponse, pair string) (schema.Ticker, error) {
	ticker := schema.Ticker{Pair: pair}
	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"lastPrice", payload.LastPrice, &ticker.Last},
		{"bidPrice", payload.BidPrice, &ticker.Bid},
		{"askPrice", payload.AskPrice, &ticker.Ask},
		{"highPrice", payload.HighPrice, &ticker.High24h},
		{"lowPrice", payload.LowPrice, &ticker.Low24h},
		{"volume", payload.Volume, &ticker.Volume24h},
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
	if payload.CloseTime > 0 {
		ticker.Timestamp = time.UnixMilli(payload.CloseTime).UTC()
	}
	return ticker, nil
}

// Candles returns up to limit OHLCV bars for pair at the requested
// granularity.
func (g *Gateway) Candles(ctx context.Context, pair string, intervalMinutes, limit int) ([]schema.Candle, error) {
	symbol, err := pairToSymbol(pair)
	if err != nil {
		return nil, err
	}
	interval, ok := intervalNames[intervalMinutes]
	if !ok {
		return nil, errs.New(venueName, errs.CodeInvalid,
			errs.WithMessage("no native interval for "+strconv.Itoa(intervalMinutes)+" minutes"),
			errs.WithCanonicalCode(errs.CanonicalUnsupportedInterval))
	}
	if limit <= 0 {
		limit = defaultCandleLimit
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	body, err := g.public(ctx, weightKlines, pathKlines, params)
	if err != nil {
		return nil, err
	}
	var rows [][]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode klines"), errs.WithCause(err))
	}
	candles := make([]schema.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := candleFromRow(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func candleFromRow(row []any) (schema.Candle, error) {
	if len(row) < 6 {
		return schema.Candle{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("kline row too short"))
	}
	openTime, ok := row[0].(float64)
	if !ok {
		return schema.Candle{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("kline open time has unexpected type"))
	}
	values := make([]decimal.Decimal, 5)
	names := []string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		str, ok := row[i+1].(string)
		if !ok {
			return schema.Candle{}, errs.New(venueName, errs.CodeExchange,
				errs.WithMessage("kline "+names[i]+" has unexpected type"))
		}
		d, err := parseField(names[i], str)
		if err != nil {
			return schema.Candle{}, err
		}
		values[i] = d
	}
	return schema.Candle{
		OpenTime: time.UnixMilli(int64(openTime)).UTC(),
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
	}, nil
}

// OrderBook returns a depth snapshot; depth is clamped to the venue maximum.
func (g *Gateway) OrderBook(ctx context.Context, pair string, depth int) (schema.OrderBook, error) {
	symbol, err := pairToSymbol(pair)
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
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(depth))
	body, err := g.public(ctx, depthWeight(depth), pathDepth, params)
	if err != nil {
		return schema.OrderBook{}, err
	}
	var payload depthResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return schema.OrderBook{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode depth"), errs.WithCause(err))
	}
	bids, err := bookLevels(payload.Bids)
	if err != nil {
		return schema.OrderBook{}, err
	}
	asks, err := bookLevels(payload.Asks)
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

// AllPairs lists pairs quoted in quote that are currently trading.
func (g *Gateway) AllPairs(ctx context.Context, quote string) ([]string, error) {
	quote = strings.ToUpper(strings.TrimSpace(quote))
	body, err := g.public(ctx, weightExchangeInfo, pathExchangeInfo, nil)
	if err != nil {
		return nil, err
	}
	var payload exchangeInfoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode exchange info"), errs.WithCause(err))
	}
	pairs := make([]string, 0, len(payload.Symbols))
	for _, sym := range payload.Symbols {
		if !strings.EqualFold(sym.Status, "TRADING") {
			continue
		}
		if !strings.EqualFold(sym.QuoteAsset, quote) {
			continue
		}
		pairs = append(pairs, schema.JoinPair(sym.BaseAsset, sym.QuoteAsset))
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
		symbol, err := pairToSymbol(pair)
		if err != nil {
			continue
		}
		wanted[symbol] = pair
	}

	body, err := g.public(ctx, weightTickerAll, pathTicker24h, nil)
	if err != nil {
		return nil, err
	}
	var tickers []ticker24hResponse
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode ticker list"), errs.WithCause(err))
	}

	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		pair, ok := wanted[strings.ToUpper(strings.TrimSpace(t.Symbol))]
		if !ok {
			continue
		}
		volume, err := parseField("quoteVolume", t.QuoteVolume)
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

// loadFilters fetches the numeric constraints for one symbol.
func (g *Gateway) loadFilters(ctx context.Context, pair string) (precision.Filters, error) {
	symbol, err := pairToSymbol(pair)
	if err != nil {
		return precision.Filters{}, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := g.public(ctx, weightExchangeInfo, pathExchangeInfo, params)
	if err != nil {
		return precision.Filters{}, err
	}
	var payload exchangeInfoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return precision.Filters{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode exchange info"), errs.WithCause(err))
	}
	if len(payload.Symbols) == 0 {
		return precision.Filters{}, errs.New(venueName, errs.CodeNotFound,
			errs.WithMessage("no symbol metadata for "+pair),
			errs.WithCanonicalCode(errs.CanonicalInvalidSymbol))
	}
	return filtersFromSymbol(payload.Symbols[0])
}

func filtersFromSymbol(sym exchangeInfoSymbol) (precision.Filters, error) {
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
	for _, filter := range sym.Filters {
		switch strings.ToUpper(strings.TrimSpace(filter.FilterType)) {
		case "LOT_SIZE":
			if err := assign(&out.QuantityStep, "stepSize", filter.StepSize); err != nil {
				return precision.Filters{}, err
			}
			if err := assign(&out.QuantityMin, "minQty", filter.MinQty); err != nil {
				return precision.Filters{}, err
			}
			if err := assign(&out.QuantityMax, "maxQty", filter.MaxQty); err != nil {
				return precision.Filters{}, err
			}
		case "PRICE_FILTER":
			if err := assign(&out.PriceTick, "tickSize", filter.TickSize); err != nil {
				return precision.Filters{}, err
			}
			if err := assign(&out.PriceMin, "minPrice", filter.MinPrice); err != nil {
				return precision.Filters{}, err
			}
			if err := assign(&out.PriceMax, "maxPrice", filter.MaxPrice); err != nil {
				return precision.Filters{}, err
			}
		case "MIN_NOTIONAL", "NOTIONAL":
			if err := assign(&out.MinNotional, "minNotional", filter.MinNotional); err != nil {
				return precision.Filters{}, err
			}
		}
	}
	return out, nil
}
