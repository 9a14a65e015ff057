package precision

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tradewire/gateway/errs"
)

func btcFilters() Filters {
	return Filters{
		QuantityStep: decimal.RequireFromString("0.00001"),
		QuantityMin:  decimal.RequireFromString("0.00001"),
		QuantityMax:  decimal.RequireFromString("9000"),
		PriceTick:    decimal.RequireFromString("0.01"),
		MinNotional:  decimal.RequireFromString("10"),
	}
}

func TestGetFetchesOncePerSymbol(t *testing.T) {
	var loads atomic.Int32
	store := NewStore("testvenue", func(_ context.Context, pair string) (Filters, error) {
		loads.Add(1)
		return btcFilters(), nil
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Get(ctx, "BTC/USDT")
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), loads.Load())

	_, err := store.Get(ctx, "ETH/USDT")
	require.NoError(t, err)
	require.Equal(t, int32(2), loads.Load())
}

func TestLoadErrorIsNotCached(t *testing.T) {
	var loads atomic.Int32
	store := NewStore("testvenue", func(context.Context, string) (Filters, error) {
		if loads.Add(1) == 1 {
			return Filters{}, errors.New("metadata unavailable")
		}
		return btcFilters(), nil
	})

	ctx := context.Background()
	_, err := store.Get(ctx, "BTC/USDT")
	require.Error(t, err)
	_, err = store.Get(ctx, "BTC/USDT")
	require.NoError(t, err)
	require.Equal(t, int32(2), loads.Load())
}

func TestRounding(t *testing.T) {
	store := NewStore("testvenue", func(context.Context, string) (Filters, error) {
		return btcFilters(), nil
	})
	ctx := context.Background()

	qty, err := store.RoundQuantity(ctx, "BTC/USDT", decimal.RequireFromString("0.01234567"))
	require.NoError(t, err)
	require.True(t, qty.Equal(decimal.RequireFromString("0.01234")))

	price, err := store.RoundPrice(ctx, "BTC/USDT", decimal.RequireFromString("70000.555"))
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("70000.55")))
}

func TestCheckNotional(t *testing.T) {
	store := NewStore("testvenue", func(context.Context, string) (Filters, error) {
		return btcFilters(), nil
	})
	ctx := context.Background()

	err := store.CheckNotional(ctx, "BTC/USDT",
		decimal.RequireFromString("0.0001"), decimal.RequireFromString("50000"))
	require.Error(t, err)
	require.Equal(t, errs.CanonicalBelowMinNotional, errs.CanonicalOf(err))

	err = store.CheckNotional(ctx, "BTC/USDT",
		decimal.RequireFromString("0.001"), decimal.RequireFromString("50000"))
	require.NoError(t, err)
}

func TestCheckNotionalUnknownFilterPasses(t *testing.T) {
	store := NewStore("testvenue", func(context.Context, string) (Filters, error) {
		// A venue that publishes steps but no minimum notional.
		return Filters{
			QuantityStep: decimal.RequireFromString("0.001"),
			PriceTick:    decimal.RequireFromString("0.01"),
		}, nil
	})
	err := store.CheckNotional(context.Background(), "XYZ/USDT",
		decimal.RequireFromString("0.0000001"), decimal.RequireFromString("1"))
	require.NoError(t, err)
}

func TestEmptyFiltersRejectedAndNotCached(t *testing.T) {
	var loads atomic.Int32
	store := NewStore("testvenue", func(context.Context, string) (Filters, error) {
		if loads.Add(1) == 1 {
			return Filters{}, nil
		}
		return btcFilters(), nil
	})

	ctx := context.Background()
	_, err := store.RoundQuantity(ctx, "XYZ/USDT", decimal.RequireFromString("1"))
	require.Error(t, err)
	require.Equal(t, errs.CodeExchange, errs.CodeOf(err))

	// The empty result must not poison the cache.
	qty, err := store.RoundQuantity(ctx, "XYZ/USDT", decimal.RequireFromString("0.012345"))
	require.NoError(t, err)
	require.True(t, qty.Equal(decimal.RequireFromString("0.01234")))
	require.Equal(t, int32(2), loads.Load())
}
