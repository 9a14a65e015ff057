package schema

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tradewire/gateway/errs"
)

func TestAveragePrice(t *testing.T) {
	quote := decimal.RequireFromString("100")
	base := decimal.RequireFromString("0.0025")
	require.True(t, AveragePrice(quote, base).Equal(decimal.RequireFromString("40000")))
}

func TestAveragePriceZeroExecuted(t *testing.T) {
	require.True(t, AveragePrice(decimal.RequireFromString("100"), decimal.Zero).IsZero())
	require.True(t, AveragePrice(decimal.Zero, decimal.Zero).IsZero())
}

func TestSplitPair(t *testing.T) {
	base, quote, err := SplitPair("btc/usdt")
	require.NoError(t, err)
	require.Equal(t, "BTC", base)
	require.Equal(t, "USDT", quote)

	_, _, err = SplitPair("BTCUSDT")
	require.Error(t, err)
	require.Equal(t, errs.CodeInvalid, errs.CodeOf(err))

	_, _, err = SplitPair("/USDT")
	require.Error(t, err)
}

func TestJoinPair(t *testing.T) {
	require.Equal(t, "ETH/BTC", JoinPair(" eth ", "btc"))
}
