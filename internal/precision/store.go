// Package precision caches per-symbol trading filters and applies venue
// rounding rules before orders are submitted.
package precision

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tradewire/gateway/errs"
	"github.com/tradewire/gateway/internal/numeric"
)

// Filters carries the numeric constraints a venue imposes on one symbol.
type Filters struct {
	QuantityStep decimal.Decimal
	QuantityMin  decimal.Decimal
	QuantityMax  decimal.Decimal
	PriceTick    decimal.Decimal
	PriceMin     decimal.Decimal
	PriceMax     decimal.Decimal
	MinNotional  decimal.Decimal
}

// Empty reports whether no constraint is populated.
func (f Filters) Empty() bool {
	return f.QuantityStep.IsZero() && f.QuantityMin.IsZero() && f.QuantityMax.IsZero() &&
		f.PriceTick.IsZero() && f.PriceMin.IsZero() && f.PriceMax.IsZero() &&
		f.MinNotional.IsZero()
}

// Loader fetches filters for a pair from the venue's metadata endpoint.
type Loader func(ctx context.Context, pair string) (Filters, error)

// Store lazily fetches and caches filters per symbol for the lifetime of one
// gateway instance. The cache is owned by the instance, never process-global,
// so multi-account deployments and tests cannot leak state across gateways.
type Store struct {
	venue string
	load  Loader

	mu      sync.Mutex
	filters map[string]Filters
}

// NewStore constructs an empty store backed by load.
func NewStore(venue string, load Loader) *Store {
	return &Store{
		venue:   venue,
		load:    load,
		filters: make(map[string]Filters),
	}
}

// Get returns the filters for pair, fetching them on first use. The lock is
// held across the fetch so concurrent first uses trigger a single venue call.
// A symbol whose metadata carries no constraints at all is an error, not a
// silent rounding default; the result is not cached so a later fetch can
// succeed.
func (s *Store) Get(ctx context.Context, pair string) (Filters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.filters[pair]; ok {
		return f, nil
	}
	if s.load == nil {
		return Filters{}, errs.New(s.venue, errs.CodeInvalid,
			errs.WithMessage("no filter loader configured"))
	}
	f, err := s.load(ctx, pair)
	if err != nil {
		return Filters{}, err
	}
	if f.Empty() {
		return Filters{}, errs.New(s.venue, errs.CodeExchange,
			errs.WithMessage("venue reported no trading filters for "+pair))
	}
	s.filters[pair] = f
	return f, nil
}

// RoundQuantity rounds qty down to the symbol's quantity step. An unknown or
// zero step returns qty unchanged.
func (s *Store) RoundQuantity(ctx context.Context, pair string, qty decimal.Decimal) (decimal.Decimal, error) {
	f, err := s.Get(ctx, pair)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return numeric.RoundDownToStep(qty, f.QuantityStep), nil
}

// RoundPrice rounds price down to the symbol's tick size.
func (s *Store) RoundPrice(ctx context.Context, pair string, price decimal.Decimal) (decimal.Decimal, error) {
	f, err := s.Get(ctx, pair)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return numeric.RoundDownToStep(price, f.PriceTick), nil
}

// CheckNotional rejects orders whose value is under the symbol's minimum
// before any order request leaves the gateway. A zero MinNotional filter
// means the constraint is unknown and the check passes.
func (s *Store) CheckNotional(ctx context.Context, pair string, qty, price decimal.Decimal) error {
	f, err := s.Get(ctx, pair)
	if err != nil {
		return err
	}
	if f.MinNotional.Sign() <= 0 {
		return nil
	}
	if qty.Mul(price).LessThan(f.MinNotional) {
		return errs.New(s.venue, errs.CodeInvalid,
			errs.WithMessage("order notional below the symbol minimum"),
			errs.WithCanonicalCode(errs.CanonicalBelowMinNotional))
	}
	return nil
}
