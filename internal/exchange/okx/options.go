package okx

const (
	venueName         = "okx"
	defaultBaseURL    = "https://www.okx.com"
	maxOrderBookDepth = 400
	defaultBookDepth  = 100
	maxCandleLimit    = 300
	instTypeSpot      = "SPOT"

	// simulatedHeader routes requests to the demo-trading environment.
	simulatedHeader = "x-simulated-trading"

	// timestampLayout is the ISO-8601 millisecond format the venue signs over.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

const (
	pathServerTime  = "/api/v5/public/time"
	pathInstruments = "/api/v5/public/instruments"
	pathTicker      = "/api/v5/market/ticker"
	pathTickers     = "/api/v5/market/tickers"
	pathCandles     = "/api/v5/market/candles"
	pathBooks       = "/api/v5/market/books"
	pathBalance     = "/api/v5/account/balance"
	pathOrder       = "/api/v5/trade/order"
	pathCancelOrder = "/api/v5/trade/cancel-order"
	pathOpenOrders  = "/api/v5/trade/orders-pending"
)

// The venue throttles per endpoint rather than against a shared weight
// budget; unit weights still meter total request volume through the window.
const (
	weightServerTime  = 1
	weightInstruments = 1
	weightTicker      = 1
	weightTickers     = 1
	weightCandles     = 1
	weightBooks       = 1
	weightBalance     = 1
	weightOrder       = 1
	weightOpenOrders  = 1
)

// barNames maps minute granularities onto venue-native candle bars.
var barNames = map[int]string{
	1:     "1m",
	3:     "3m",
	5:     "5m",
	15:    "15m",
	30:    "30m",
	60:    "1H",
	120:   "2H",
	240:   "4H",
	360:   "6H",
	720:   "12H",
	1440:  "1D",
	4320:  "3D",
	10080: "1W",
	43200: "1M",
}
