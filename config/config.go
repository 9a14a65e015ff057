// Package config centralises runtime configuration for the gateway.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Exchange names a supported venue integration.
type Exchange string

const (
	// ExchangeBinance selects the Binance spot backend.
	ExchangeBinance Exchange = "binance"
	// ExchangeOKX selects the OKX spot backend.
	ExchangeOKX Exchange = "okx"
)

// Credentials captures API credentials used for authenticated requests.
// Absent credentials degrade the gateway to public operations only.
type Credentials struct {
	APIKey     string `yaml:"apiKey"`
	APISecret  string `yaml:"apiSecret"`
	Passphrase string `yaml:"passphrase"`
}

// Configured reports whether signed operations are possible.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APISecret) != ""
}

// Settings contains the gateway configuration tree loaded from defaults,
// an optional YAML overlay, and environment overrides.
type Settings struct {
	Exchange    Exchange    `yaml:"exchange"`
	Testnet     bool        `yaml:"testnet"`
	Credentials Credentials `yaml:"credentials"`

	// BaseURL overrides the venue default REST endpoint when set.
	BaseURL     string        `yaml:"baseURL"`
	HTTPTimeout time.Duration `yaml:"httpTimeout"`
	RecvWindow  time.Duration `yaml:"recvWindow"`

	// QuoteCurrency is the reference currency for balance valuation.
	QuoteCurrency string `yaml:"quoteCurrency"`
	// DustThreshold drops balances at or below this amount from balance
	// sheets.
	DustThreshold decimal.Decimal `yaml:"dustThreshold"`
	// ValuationLimit bounds how many held assets get a secondary ticker
	// lookup when valuing a balance sheet. Largest balances first.
	ValuationLimit int `yaml:"valuationLimit"`

	// RateLimitCap is the request-weight budget per trailing minute.
	RateLimitCap int `yaml:"rateLimitCap"`
	// RateLimitMargin pads the computed wait when the window saturates.
	RateLimitMargin time.Duration `yaml:"rateLimitMargin"`
	// OrderRate throttles order submissions per second.
	OrderRate float64 `yaml:"orderRate"`

	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
	LogFile      string `yaml:"logFile"`
}

// Default returns the default gateway configuration.
func Default() Settings {
	return Settings{
		Exchange:        ExchangeBinance,
		Testnet:         false,
		HTTPTimeout:     10 * time.Second,
		RecvWindow:      5 * time.Second,
		QuoteCurrency:   "USDT",
		DustThreshold:   decimal.RequireFromString("0.0000001"),
		ValuationLimit:  10,
		RateLimitCap:    1200,
		RateLimitMargin: 500 * time.Millisecond,
		OrderRate:       5,
		ServiceName:     "tradewire-gateway",
	}
}

// FromEnv loads configuration values from environment variables, overriding
// defaults and any YAML overlay named by GATEWAY_CONFIG_FILE.
func FromEnv() (Settings, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("GATEWAY_CONFIG_FILE")); path != "" {
		loaded, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		cfg = loaded
	}

	if v := strings.TrimSpace(os.Getenv("GATEWAY_EXCHANGE")); v != "" {
		cfg.Exchange = Exchange(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_TESTNET")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, fmt.Errorf("parse GATEWAY_TESTNET: %w", err)
		}
		cfg.Testnet = parsed
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_API_KEY")); v != "" {
		cfg.Credentials.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_API_SECRET")); v != "" {
		cfg.Credentials.APISecret = v
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_API_PASSPHRASE")); v != "" {
		cfg.Credentials.Passphrase = v
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_HTTP_TIMEOUT")); v != "" {
		dur, err := time.ParseDuration(v)
		if err != nil {
			return Settings{}, fmt.Errorf("parse GATEWAY_HTTP_TIMEOUT: %w", err)
		}
		cfg.HTTPTimeout = dur
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_RECV_WINDOW")); v != "" {
		dur, err := time.ParseDuration(v)
		if err != nil {
			return Settings{}, fmt.Errorf("parse GATEWAY_RECV_WINDOW: %w", err)
		}
		cfg.RecvWindow = dur
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_QUOTE_CURRENCY")); v != "" {
		cfg.QuoteCurrency = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_DUST_THRESHOLD")); v != "" {
		dust, err := decimal.NewFromString(v)
		if err != nil {
			return Settings{}, fmt.Errorf("parse GATEWAY_DUST_THRESHOLD: %w", err)
		}
		cfg.DustThreshold = dust
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_VALUATION_LIMIT")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("parse GATEWAY_VALUATION_LIMIT: %w", err)
		}
		cfg.ValuationLimit = limit
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_RATE_LIMIT_CAP")); v != "" {
		budget, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("parse GATEWAY_RATE_LIMIT_CAP: %w", err)
		}
		cfg.RateLimitCap = budget
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_ORDER_RATE")); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Settings{}, fmt.Errorf("parse GATEWAY_ORDER_RATE: %w", err)
		}
		cfg.OrderRate = rate
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_OTLP_ENDPOINT")); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_SERVICE_NAME")); v != "" {
		cfg.ServiceName = v
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_LOG_FILE")); v != "" {
		cfg.LogFile = v
	}
	return cfg, nil
}

// FromFile layers a YAML document over the defaults.
func FromFile(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Settings{}, fmt.Errorf("parse config file: %w", err)
	}
	cfg.Exchange = Exchange(strings.ToLower(strings.TrimSpace(string(cfg.Exchange))))
	return cfg, nil
}
