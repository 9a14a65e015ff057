package binance

const (
	venueName          = "binance"
	defaultBaseURL     = "https://api.binance.com"
	testnetBaseURL     = "https://testnet.binance.vision"
	maxOrderBookDepth  = 5000
	defaultBookDepth   = 100
	defaultCandleLimit = 500
	maxCandleLimit     = 1000
)

const (
	pathServerTime   = "/api/v3/time"
	pathExchangeInfo = "/api/v3/exchangeInfo"
	pathTicker24h    = "/api/v3/ticker/24hr"
	pathKlines       = "/api/v3/klines"
	pathDepth        = "/api/v3/depth"
	pathAccount      = "/api/v3/account"
	pathOrder        = "/api/v3/order"
	pathOpenOrders   = "/api/v3/openOrders"
)

// Request weights follow the venue's published per-endpoint costs against the
// shared one-minute budget.
const (
	weightServerTime    = 1
	weightTicker        = 1
	weightTickerAll     = 40
	weightKlines        = 2
	weightExchangeInfo  = 20
	weightAccount       = 10
	weightOrder         = 1
	weightOpenOrders    = 3
	weightOpenOrdersAll = 40
)

func depthWeight(limit int) int {
	switch {
	case limit <= 100:
		return 1
	case limit <= 500:
		return 5
	case limit <= 1000:
		return 10
	default:
		return 50
	}
}

// intervalNames maps minute granularities onto venue-native kline intervals.
var intervalNames = map[int]string{
	1:     "1m",
	3:     "3m",
	5:     "5m",
	15:    "15m",
	30:    "30m",
	60:    "1h",
	120:   "2h",
	240:   "4h",
	360:   "6h",
	480:   "8h",
	720:   "12h",
	1440:  "1d",
	4320:  "3d",
	10080: "1w",
	43200: "1M",
}
