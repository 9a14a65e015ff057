package exchange

import (
	"github.com/tradewire/gateway/config"
	"github.com/tradewire/gateway/errs"
	"github.com/tradewire/gateway/internal/exchange/binance"
	"github.com/tradewire/gateway/internal/exchange/okx"
)

// New constructs the backend selected by cfg.Exchange.
func New(cfg config.Settings) (Exchange, error) {
	switch cfg.Exchange {
	case config.ExchangeBinance:
		return binance.New(cfg)
	case config.ExchangeOKX:
		return okx.New(cfg)
	default:
		return nil, errs.New(string(cfg.Exchange), errs.CodeInvalid,
			errs.WithMessage("unknown exchange selector"))
	}
}
