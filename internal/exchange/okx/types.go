package okx

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tradewire/gateway/errs"
	"github.com/tradewire/gateway/internal/schema"
	"github.com/tradewire/gateway/internal/transport"
)

// envelope is the uniform response wrapper. The venue reports most failures
// with HTTP 200 and a non-zero code, so both layers are inspected.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type serverTimePayload struct {
	TS string `json:"ts"`
}

type tickerPayload struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	BidPx     string `json:"bidPx"`
	AskPx     string `json:"askPx"`
	High24h   string `json:"high24h"`
	Low24h    string `json:"low24h"`
	Vol24h    string `json:"vol24h"`
	VolCcy24h string `json:"volCcy24h"`
	TS        string `json:"ts"`
}

type bookPayload struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	TS   string     `json:"ts"`
}

type instrumentPayload struct {
	InstID   string `json:"instId"`
	BaseCcy  string `json:"baseCcy"`
	QuoteCcy string `json:"quoteCcy"`
	State    string `json:"state"`
	LotSz    string `json:"lotSz"`
	TickSz   string `json:"tickSz"`
	MinSz    string `json:"minSz"`
	MaxLmtSz string `json:"maxLmtSz"`
}

type balancePayload struct {
	Details []balanceDetail `json:"details"`
}

type balanceDetail struct {
	Ccy       string `json:"ccy"`
	CashBal   string `json:"cashBal"`
	FrozenBal string `json:"frozenBal"`
}

type orderAckPayload struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

type orderPayload struct {
	InstID    string `json:"instId"`
	OrdID     string `json:"ordId"`
	ClOrdID   string `json:"clOrdId"`
	Px        string `json:"px"`
	Sz        string `json:"sz"`
	OrdType   string `json:"ordType"`
	Side      string `json:"side"`
	TgtCcy    string `json:"tgtCcy"`
	State     string `json:"state"`
	AccFillSz string `json:"accFillSz"`
	AvgPx     string `json:"avgPx"`
}

// apiError classifies a failed call from the envelope code, falling back to
// the HTTP status for unauthenticated rejections.
func apiError(status int, env envelope) error {
	code := errs.CodeExchange
	canonical := errs.CanonicalUnknown
	switch {
	case status == 401 || status == 403,
		env.Code == "50105", env.Code == "50111", env.Code == "50113", env.Code == "50114":
		code = errs.CodeAuth
	case env.Code == "51001":
		code = errs.CodeNotFound
		canonical = errs.CanonicalInvalidSymbol
	case env.Code == "51603":
		code = errs.CodeNotFound
		canonical = errs.CanonicalOrderNotFound
	case env.Code == "51008":
		canonical = errs.CanonicalInsufficientBalance
	}

	opts := []errs.Option{errs.WithCanonicalCode(canonical)}
	if status != 200 {
		opts = append(opts, errs.WithHTTP(status))
	}
	if env.Code != "" && env.Code != "0" {
		opts = append(opts, errs.WithRawCode(env.Code))
	}
	if env.Msg != "" {
		opts = append(opts, errs.WithRawMessage(env.Msg))
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

func parseMillis(name, value string) (time.Time, error) {
	d, err := parseField(name, value)
	if err != nil {
		return time.Time{}, err
	}
	if d.IsZero() {
		return time.Time{}, nil
	}
	return time.UnixMilli(d.IntPart()).UTC(), nil
}

func normalizeOrder(raw orderPayload, pair string) (schema.Order, error) {
	requested, err := parseField("sz", raw.Sz)
	if err != nil {
		return schema.Order{}, err
	}
	filled, err := parseField("accFillSz", raw.AccFillSz)
	if err != nil {
		return schema.Order{}, err
	}
	avgPx, err := parseField("avgPx", raw.AvgPx)
	if err != nil {
		return schema.Order{}, err
	}
	return schema.Order{
		OrderID:        raw.OrdID,
		Pair:           pair,
		Status:         orderStatus(raw.State),
		Side:           orderSide(raw.Side),
		Type:           orderKind(raw.OrdType),
		RequestedQty:   requested,
		FilledBaseQty:  filled,
		FilledQuoteQty: filled.Mul(avgPx),
		AvgFillPrice:   avgPx,
	}, nil
}

func orderStatus(state string) schema.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "live":
		return schema.StatusNew
	case "partially_filled":
		return schema.StatusPartiallyFilled
	case "filled":
		return schema.StatusFilled
	case "canceled", "mmp_canceled":
		return schema.StatusCanceled
	default:
		return schema.StatusUnknown
	}
}

func orderSide(side string) schema.Side {
	if strings.EqualFold(strings.TrimSpace(side), "sell") {
		return schema.SideSell
	}
	return schema.SideBuy
}

func orderKind(kind string) schema.OrderType {
	if strings.EqualFold(strings.TrimSpace(kind), "limit") {
		return schema.OrderTypeLimit
	}
	return schema.OrderTypeMarket
}

func decodeEnvelope(resp transport.Response) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return envelope{}, errs.New(venueName, errs.CodeExchange,
			errs.WithMessage("decode response envelope"),
			errs.WithHTTP(resp.Status),
			errs.WithCause(err))
	}
	return env, nil
}
