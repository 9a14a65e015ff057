package okx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tradewire/gateway/config"
	"github.com/tradewire/gateway/errs"
	"github.com/tradewire/gateway/internal/sign"
)

const (
	testAPIKey     = "test-api-key"
	testAPISecret  = "test-api-secret"
	testPassphrase = "test-passphrase"
)

type fakeVenue struct {
	t   *testing.T
	mux *http.ServeMux
	srv *httptest.Server

	lastBookSize  string
	lastOrderBody map[string]string
}

func newFakeVenue(t *testing.T) *fakeVenue {
	t.Helper()
	v := &fakeVenue{t: t, mux: http.NewServeMux()}
	v.srv = httptest.NewServer(v.mux)
	t.Cleanup(v.srv.Close)

	v.mux.HandleFunc(pathServerTime, func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, `[{"ts":"`+strconv.FormatInt(time.Now().UnixMilli(), 10)+`"}]`)
	})
	return v
}

func writeData(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"code":"0","msg":"","data":` + data + `}`))
}

func writeVenueError(w http.ResponseWriter, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"code":"` + code + `","msg":"` + msg + `","data":[]}`))
}

// requireSigned checks the auth headers and recomputes the signature over the
// timestamp, method, request path with query, and body.
func (v *fakeVenue) requireSigned(r *http.Request) []byte {
	v.t.Helper()
	require.Equal(v.t, testAPIKey, r.Header.Get("OK-ACCESS-KEY"))
	require.Equal(v.t, testPassphrase, r.Header.Get("OK-ACCESS-PASSPHRASE"))

	timestamp := r.Header.Get("OK-ACCESS-TIMESTAMP")
	require.NotEmpty(v.t, timestamp)
	_, err := time.Parse(timestampLayout, timestamp)
	require.NoError(v.t, err)

	body, err := io.ReadAll(r.Body)
	require.NoError(v.t, err)

	payload := sign.PrefixedPayload(timestamp, r.Method, r.URL.RequestURI(), string(body))
	require.Equal(v.t, sign.Base64HMACSHA256(testAPISecret, payload),
		r.Header.Get("OK-ACCESS-SIGN"))
	return body
}

func newTestGateway(t *testing.T, v *fakeVenue) *Gateway {
	t.Helper()
	cfg := config.Default()
	cfg.Exchange = config.ExchangeOKX
	cfg.BaseURL = v.srv.URL
	cfg.Credentials = config.Credentials{
		APIKey:     testAPIKey,
		APISecret:  testAPISecret,
		Passphrase: testPassphrase,
	}
	cfg.HTTPTimeout = 2 * time.Second
	cfg.OrderRate = 100
	g, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestTickerNormalizesPayload(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathTicker, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "BTC-USDT", r.URL.Query().Get("instId"))
		writeData(w, `[{"instId":"BTC-USDT","last":"30000.5","bidPx":"30000",
			"askPx":"30001","high24h":"31000","low24h":"29000","vol24h":"1234.5",
			"volCcy24h":"37000000","ts":"1700000000000"}]`)
	})
	g := newTestGateway(t, v)

	ticker, err := g.Ticker(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	require.Equal(t, "BTC/USDT", ticker.Pair)
	require.True(t, ticker.Last.Equal(decimal.RequireFromString("30000.5")))
	require.True(t, ticker.Bid.Equal(decimal.RequireFromString("30000")))
	require.True(t, ticker.Volume24h.Equal(decimal.RequireFromString("1234.5")))
	require.Equal(t, int64(1700000000000), ticker.Timestamp.UnixMilli())
}

func TestTickerUnknownInstrument(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathTicker, func(w http.ResponseWriter, _ *http.Request) {
		// The venue reports this with HTTP 200 and a non-zero envelope code.
		writeVenueError(w, "51001", "Instrument ID does not exist.")
	})
	g := newTestGateway(t, v)

	_, err := g.Ticker(context.Background(), "NOPE/USDT")
	require.Error(t, err)
	require.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
	require.Equal(t, errs.CanonicalInvalidSymbol, errs.CanonicalOf(err))
}

func TestCandlesUnsupportedInterval(t *testing.T) {
	v := newFakeVenue(t)
	g := newTestGateway(t, v)

	_, err := g.Candles(context.Background(), "BTC/USDT", 7, 10)
	require.Error(t, err)
	require.Equal(t, errs.CanonicalUnsupportedInterval, errs.CanonicalOf(err))
}

func TestCandlesReversedOldestFirst(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathCandles, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1H", r.URL.Query().Get("bar"))
		writeData(w, `[
			["1700003600000","105","120","100","118","8.25","900000","900000","1"],
			["1700000000000","100","110","90","105","12.5","1300000","1300000","1"]]`)
	})
	g := newTestGateway(t, v)

	candles, err := g.Candles(context.Background(), "ETH/USDT", 60, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Equal(t, int64(1700000000000), candles[0].OpenTime.UnixMilli())
	require.Equal(t, int64(1700003600000), candles[1].OpenTime.UnixMilli())
	require.True(t, candles[0].Open.Equal(decimal.RequireFromString("100")))
}

func TestOrderBookClampsDepth(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathBooks, func(w http.ResponseWriter, r *http.Request) {
		v.lastBookSize = r.URL.Query().Get("sz")
		writeData(w, `[{"bids":[["30000","1.5","0","1"]],"asks":[["30001","2","0","1"]],
			"ts":"1700000000000"}]`)
	})
	g := newTestGateway(t, v)

	book, err := g.OrderBook(context.Background(), "BTC/USDT", 9999)
	require.NoError(t, err)
	require.Equal(t, "400", v.lastBookSize)
	require.Len(t, book.Bids, 1)
	require.True(t, book.Asks[0].Price.Equal(decimal.RequireFromString("30001")))
}

func TestSignedRequestCarriesValidSignature(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathBalance, func(w http.ResponseWriter, r *http.Request) {
		v.requireSigned(r)
		writeData(w, `[{"details":[]}]`)
	})
	g := newTestGateway(t, v)

	_, err := g.Balances(context.Background())
	require.NoError(t, err)
}

func TestSignedRequestWithoutPassphrase(t *testing.T) {
	v := newFakeVenue(t)
	cfg := config.Default()
	cfg.Exchange = config.ExchangeOKX
	cfg.BaseURL = v.srv.URL
	cfg.Credentials = config.Credentials{APIKey: testAPIKey, APISecret: testAPISecret}
	g, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	_, err = g.Balances(context.Background())
	require.Error(t, err)
	require.True(t, errs.IsAuth(err))
}

func TestMarketBuyPlacesAndRequeries(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathOrder, func(w http.ResponseWriter, r *http.Request) {
		body := v.requireSigned(r)
		if r.Method == http.MethodPost {
			var req map[string]string
			require.NoError(t, json.Unmarshal(body, &req))
			v.lastOrderBody = req
			require.Equal(t, "cash", req["tdMode"])
			require.Equal(t, "market", req["ordType"])
			require.Equal(t, "quote_ccy", req["tgtCcy"])
			require.Equal(t, "100", req["sz"])
			require.True(t, strings.HasPrefix(req["clOrdId"], "tw"))
			require.NotContains(t, req["clOrdId"], "-")
			writeData(w, `[{"ordId":"555","clOrdId":"`+req["clOrdId"]+`","sCode":"0","sMsg":""}]`)
			return
		}
		require.Equal(t, "555", r.URL.Query().Get("ordId"))
		writeData(w, `[{"instId":"BTC-USDT","ordId":"555","side":"buy","ordType":"market",
			"sz":"100","state":"filled","accFillSz":"0.00333","avgPx":"30000"}]`)
	})
	g := newTestGateway(t, v)

	order, err := g.MarketBuy(context.Background(), "BTC/USDT", decimal.RequireFromString("100"))
	require.NoError(t, err)
	require.Equal(t, "555", order.OrderID)
	require.Equal(t, "FILLED", string(order.Status))
	require.True(t, order.FilledBaseQty.Equal(decimal.RequireFromString("0.00333")))
	require.True(t, order.AvgFillPrice.Equal(decimal.RequireFromString("30000")))
	require.True(t, order.FilledQuoteQty.Equal(decimal.RequireFromString("99.9")))
}

func TestOrderAckFailureSurfacesVenueCode(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathOrder, func(w http.ResponseWriter, r *http.Request) {
		v.requireSigned(r)
		writeData(w, `[{"ordId":"","clOrdId":"","sCode":"51008","sMsg":"Insufficient balance"}]`)
	})
	g := newTestGateway(t, v)

	_, err := g.MarketBuy(context.Background(), "BTC/USDT", decimal.RequireFromString("1000000"))
	require.Error(t, err)
	require.Equal(t, errs.CodeExchange, errs.CodeOf(err))
	require.Equal(t, errs.CanonicalInsufficientBalance, errs.CanonicalOf(err))
}

func instrumentsBody() string {
	return `[{"instId":"BTC-USDT","baseCcy":"BTC","quoteCcy":"USDT","state":"live",
		"lotSz":"0.001","tickSz":"0.01","minSz":"0.00001","maxLmtSz":"9000"}]`
}

func TestLimitSellRoundsQuantityAndPrice(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathInstruments, func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, instrumentsBody())
	})
	v.mux.HandleFunc(pathOrder, func(w http.ResponseWriter, r *http.Request) {
		body := v.requireSigned(r)
		if r.Method == http.MethodPost {
			var req map[string]string
			require.NoError(t, json.Unmarshal(body, &req))
			v.lastOrderBody = req
			require.Equal(t, "limit", req["ordType"])
			require.Equal(t, "sell", req["side"])
			writeData(w, `[{"ordId":"7","clOrdId":"`+req["clOrdId"]+`","sCode":"0","sMsg":""}]`)
			return
		}
		writeData(w, `[{"instId":"BTC-USDT","ordId":"7","side":"sell","ordType":"limit",
			"sz":"`+v.lastOrderBody["sz"]+`","px":"`+v.lastOrderBody["px"]+`",
			"state":"live","accFillSz":"0","avgPx":""}]`)
	})
	g := newTestGateway(t, v)

	order, err := g.LimitSell(context.Background(), "BTC/USDT",
		decimal.RequireFromString("0.5009"), decimal.RequireFromString("30000.009"))
	require.NoError(t, err)

	// Quantity truncates to the 0.001 lot, price to the 0.01 tick.
	require.Equal(t, "0.5", v.lastOrderBody["sz"])
	require.Equal(t, "30000", v.lastOrderBody["px"])
	require.Equal(t, "NEW", string(order.Status))
	require.True(t, order.AvgFillPrice.IsZero())
}

func TestCancelOrderRequiresSymbol(t *testing.T) {
	v := newFakeVenue(t)
	g := newTestGateway(t, v)

	_, err := g.CancelOrder(context.Background(), "555", "")
	require.Error(t, err)
	require.Equal(t, errs.CanonicalMissingSymbol, errs.CanonicalOf(err))
}

func TestQueryOrderNotFound(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathOrder, func(w http.ResponseWriter, r *http.Request) {
		v.requireSigned(r)
		writeVenueError(w, "51603", "Order does not exist")
	})
	g := newTestGateway(t, v)

	_, err := g.QueryOrder(context.Background(), "999", "BTC/USDT")
	require.Error(t, err)
	require.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
	require.Equal(t, errs.CanonicalOrderNotFound, errs.CanonicalOf(err))
}

func TestOpenOrdersMapsInstruments(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathOpenOrders, func(w http.ResponseWriter, r *http.Request) {
		v.requireSigned(r)
		require.Equal(t, instTypeSpot, r.URL.Query().Get("instType"))
		writeData(w, `[{"instId":"ETH-USDT","ordId":"9","side":"sell","ordType":"limit",
			"sz":"2","px":"2000","state":"partially_filled","accFillSz":"0.5","avgPx":"2000"}]`)
	})
	g := newTestGateway(t, v)

	orders, err := g.OpenOrders(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, "ETH/USDT", orders[0].Pair)
	require.Equal(t, "PARTIALLY_FILLED", string(orders[0].Status))
	require.True(t, orders[0].FilledQuoteQty.Equal(decimal.RequireFromString("1000")))
}

func TestBalancesFiltersDustAndValues(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathBalance, func(w http.ResponseWriter, r *http.Request) {
		v.requireSigned(r)
		writeData(w, `[{"details":[
			{"ccy":"USDT","cashBal":"100","frozenBal":"0"},
			{"ccy":"BTC","cashBal":"0.5","frozenBal":"0"},
			{"ccy":"SHIB","cashBal":"0.00000001","frozenBal":"0"}]}]`)
	})
	v.mux.HandleFunc(pathTicker, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "BTC-USDT", r.URL.Query().Get("instId"))
		writeData(w, `[{"instId":"BTC-USDT","last":"30000","bidPx":"29999","askPx":"30001",
			"high24h":"31000","low24h":"29000","vol24h":"10","volCcy24h":"300000",
			"ts":"1700000000000"}]`)
	})
	g := newTestGateway(t, v)

	sheet, err := g.Balances(context.Background())
	require.NoError(t, err)
	require.Len(t, sheet.Balances, 2)
	require.NotContains(t, sheet.Balances, "SHIB")
	require.True(t, sheet.Total.Equal(decimal.RequireFromString("15100")))
}

func TestAllPairsFiltersByQuoteAndState(t *testing.T) {
	v := newFakeVenue(t)
	v.mux.HandleFunc(pathInstruments, func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, `[
			{"instId":"BTC-USDT","baseCcy":"BTC","quoteCcy":"USDT","state":"live"},
			{"instId":"ETH-USDT","baseCcy":"ETH","quoteCcy":"USDT","state":"live"},
			{"instId":"OLD-USDT","baseCcy":"OLD","quoteCcy":"USDT","state":"suspend"},
			{"instId":"BTC-EUR","baseCcy":"BTC","quoteCcy":"EUR","state":"live"}]`)
	})
	g := newTestGateway(t, v)

	pairs, err := g.AllPairs(context.Background(), "usdt")
	require.NoError(t, err)
	require.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, pairs)
}

func TestSimulatedTradingHeader(t *testing.T) {
	v := newFakeVenue(t)
	var gotHeader string
	v.mux.HandleFunc(pathTicker, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(simulatedHeader)
		writeData(w, `[{"instId":"BTC-USDT","last":"1","bidPx":"1","askPx":"1",
			"high24h":"1","low24h":"1","vol24h":"1","volCcy24h":"1","ts":"1700000000000"}]`)
	})
	cfg := config.Default()
	cfg.Exchange = config.ExchangeOKX
	cfg.BaseURL = v.srv.URL
	cfg.Testnet = true
	g, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	_, err = g.Ticker(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	require.Equal(t, "1", gotHeader)
}
