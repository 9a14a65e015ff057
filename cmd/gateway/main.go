// Command gateway runs one venue operation from the command line. It is the
// operational probe for the gateway library: credentials and venue selection
// come from the environment, the operation and its arguments from flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tradewire/gateway/config"
	"github.com/tradewire/gateway/internal/exchange"
	"github.com/tradewire/gateway/internal/observability"
	"github.com/tradewire/gateway/lib/telemetry"
)

type flags struct {
	op       string
	pair     string
	quote    string
	amount   string
	price    string
	orderID  string
	interval int
	limit    int
	depth    int
}

func main() {
	f := parseFlags()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogFile)
	observability.SetLogger(observability.NewSlogLogger(logger))

	_, shutdownTelemetry, err := telemetry.Init(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Error("initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	venue, err := exchange.New(cfg)
	if err != nil {
		logger.Error("construct exchange", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := venue.Close(); err != nil {
			logger.Warn("close exchange", "error", err)
		}
	}()
	logger.Info("gateway ready", "venue", venue.Name(), "testnet", cfg.Testnet)

	result, err := runOp(ctx, venue, cfg, f)
	if err != nil {
		logger.Error("operation failed", "op", f.op, "error", err)
		os.Exit(1)
	}
	printResult(result)
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.op, "op", "ticker",
		"operation: ticker, candles, book, balances, pairs, tradable, buy, sell, limit-buy, limit-sell, cancel, query, open")
	flag.StringVar(&f.pair, "pair", "BTC/USDT", "trading pair in BASE/QUOTE notation")
	flag.StringVar(&f.quote, "quote", "", "quote currency for pair listings (defaults to the configured one)")
	flag.StringVar(&f.amount, "amount", "", "order amount; quote currency for buys, base for sells")
	flag.StringVar(&f.price, "price", "", "limit price")
	flag.StringVar(&f.orderID, "order-id", "", "venue order identifier for cancel and query")
	flag.IntVar(&f.interval, "interval", 60, "candle granularity in minutes")
	flag.IntVar(&f.limit, "limit", 100, "maximum candles to fetch")
	flag.IntVar(&f.depth, "depth", 20, "order book depth")
	flag.Parse()
	return f
}

func newLogger(logFile string) *slog.Logger {
	var out io.Writer = os.Stderr
	if strings.TrimSpace(logFile) != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	return slog.New(slog.NewJSONHandler(out, nil))
}

func runOp(ctx context.Context, venue exchange.Exchange, cfg config.Settings, f flags) (any, error) {
	quote := strings.TrimSpace(f.quote)
	if quote == "" {
		quote = cfg.QuoteCurrency
	}
	switch f.op {
	case "ticker":
		return venue.Ticker(ctx, f.pair)
	case "candles":
		return venue.Candles(ctx, f.pair, f.interval, f.limit)
	case "book":
		return venue.OrderBook(ctx, f.pair, f.depth)
	case "balances":
		return venue.Balances(ctx)
	case "pairs":
		return venue.AllPairs(ctx, quote)
	case "tradable":
		minVolume, err := parseAmount(f.amount, "min 24h quote volume")
		if err != nil {
			return nil, err
		}
		return venue.TradablePairs(ctx, quote, minVolume)
	case "buy":
		amount, err := parseAmount(f.amount, "quote amount")
		if err != nil {
			return nil, err
		}
		return venue.MarketBuy(ctx, f.pair, amount)
	case "sell":
		amount, err := parseAmount(f.amount, "base amount")
		if err != nil {
			return nil, err
		}
		return venue.MarketSell(ctx, f.pair, amount)
	case "limit-buy":
		amount, err := parseAmount(f.amount, "quote amount")
		if err != nil {
			return nil, err
		}
		price, err := parseAmount(f.price, "price")
		if err != nil {
			return nil, err
		}
		return venue.LimitBuy(ctx, f.pair, amount, price)
	case "limit-sell":
		amount, err := parseAmount(f.amount, "base amount")
		if err != nil {
			return nil, err
		}
		price, err := parseAmount(f.price, "price")
		if err != nil {
			return nil, err
		}
		return venue.LimitSell(ctx, f.pair, amount, price)
	case "cancel":
		return venue.CancelOrder(ctx, f.orderID, f.pair)
	case "query":
		return venue.QueryOrder(ctx, f.orderID, f.pair)
	case "open":
		// -pair "" lists open orders across all pairs.
		return venue.OpenOrders(ctx, f.pair)
	default:
		return nil, fmt.Errorf("unknown operation %q", f.op)
	}
}

func parseAmount(raw, what string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("missing %s (-amount/-price)", what)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s: %w", what, err)
	}
	return d, nil
}

func printResult(result any) {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}
