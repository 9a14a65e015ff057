package binance

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tradewire/gateway/errs"
	"github.com/tradewire/gateway/internal/schema"
	"github.com/tradewire/gateway/internal/transport"
)

type apiErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

type ticker24hResponse struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	BidPrice    string `json:"bidPrice"`
	AskPrice    string `json:"askPrice"`
	HighPrice   string `json:"highPrice"`
	LowPrice    string `json:"lowPrice"`
	Volume      string `json:"volume"`
	QuoteVolume string `json:"quoteVolume"`
	CloseTime   int64  `json:"closeTime"`
}

type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

type exchangeInfoResponse struct {
	Symbols []exchangeInfoSymbol `json:"symbols"`
}

type exchangeInfoSymbol struct {
	Symbol     string               `json:"symbol"`
	Status     string               `json:"status"`
	BaseAsset  string               `json:"baseAsset"`
	QuoteAsset string               `json:"quoteAsset"`
	Filters    []exchangeInfoFilter `json:"filters"`
}

type exchangeInfoFilter struct {
	FilterType  string `json:"filterType"`
	MinPrice    string `json:"minPrice"`
	MaxPrice    string `json:"maxPrice"`
	TickSize    string `json:"tickSize"`
	MinQty      string `json:"minQty"`
	MaxQty      string `json:"maxQty"`
	StepSize    string `json:"stepSize"`
	MinNotional string `json:"minNotional"`
}

type accountResponse struct {
	Balances []accountBalance `json:"balances"`
}

type accountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type orderResponse struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	Status              string `json:"status"`
	Side                string `json:"side"`
	Type                string `json:"type"`
	Price               string `json:"price"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
}

func (g *Gateway) apiError(resp transport.Response) error {
	var payload apiErrorResponse
	_ = json.Unmarshal(resp.Body, &payload)

	code := errs.CodeExchange
	canonical := errs.CanonicalUnknown
	switch {
	case resp.Status == 401 || resp.Status == 403,
		payload.Code == -1022, payload.Code == -2014, payload.Code == -2015:
		code = errs.CodeAuth
	case payload.Code == -1121:
		code = errs.CodeNotFound
		canonical = errs.CanonicalInvalidSymbol
	case payload.Code == -2013:
		code = errs.CodeNotFound
		canonical = errs.CanonicalOrderNotFound
	case payload.Code == -2010:
		canonical = errs.CanonicalInsufficientBalance
	}

	opts := []errs.Option{errs.WithHTTP(resp.Status), errs.WithCanonicalCode(canonical)}
	if payload.Code != 0 {
		opts = append(opts, errs.WithRawCode(strconv.Itoa(payload.Code)))
	}
	if payload.Msg != "" {
		opts = append(opts, errs.WithRawMessage(payload.Msg))
	} else if trimmed := strings.TrimSpace(string(resp.Body)); trimmed != "" {
		opts = append(opts, errs.WithRawMessage(trimmed))
	}
	return errs.New(venueName, code, opts...)
}

func parseField(name, value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("unexpected "+name+" in venue payload: "+value),
			errs.WithCause(err))
	}
	return d, nil
}

func normalizeOrder(raw orderResponse, pair string) (schema.Order, error) {
	requested, err := parseField("origQty", raw.OrigQty)
	if err != nil {
		return schema.Order{}, err
	}
	executed, err := parseField("executedQty", raw.ExecutedQty)
	if err != nil {
		return schema.Order{}, err
	}
	cumQuote, err := parseField("cummulativeQuoteQty", raw.CummulativeQuoteQty)
	if err != nil {
		return schema.Order{}, err
	}
	return schema.Order{
		OrderID:        strconv.FormatInt(raw.OrderID, 10),
		Pair:           pair,
		Status:         orderStatus(raw.Status),
		Side:           orderSide(raw.Side),
		Type:           orderType(raw.Type),
		RequestedQty:   requested,
		FilledBaseQty:  executed,
		FilledQuoteQty: cumQuote,
		AvgFillPrice:   schema.AveragePrice(cumQuote, executed),
	}, nil
}

func orderStatus(status string) schema.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "NEW":
		return schema.StatusNew
	case "PARTIALLY_FILLED":
		return schema.StatusPartiallyFilled
	case "FILLED":
		return schema.StatusFilled
	case "CANCELED", "PENDING_CANCEL":
		return schema.StatusCanceled
	case "REJECTED":
		return schema.StatusRejected
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return schema.StatusExpired
	default:
		return schema.StatusUnknown
	}
}

func orderSide(side string) schema.Side {
	if strings.EqualFold(strings.TrimSpace(side), "SELL") {
		return schema.SideSell
	}
	return schema.SideBuy
}

func orderType(kind string) schema.OrderType {
	if strings.EqualFold(strings.TrimSpace(kind), "LIMIT") {
		return schema.OrderTypeLimit
	}
	return schema.OrderTypeMarket
}
