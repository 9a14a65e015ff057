// Package ratelimit implements a weighted sliding-window request budget.
//
// The window is a local approximation of the venue's server-side limiter: it
// tracks the trailing sixty seconds of request cost for one gateway instance
// and does not persist across restarts.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tradewire/gateway/errs"
	"github.com/tradewire/gateway/internal/observability"
)

const (
	windowSpan      = time.Minute
	warnUtilization = 0.8
	defaultMargin   = 500 * time.Millisecond
)

type entry struct {
	at     time.Time
	weight int
}

// Config parameterizes a Window.
type Config struct {
	// Venue labels log lines and metrics.
	Venue string
	// Cap is the maximum summed weight admitted within the trailing window.
	Cap int
	// Margin is added to the computed wait so the venue-side window has
	// rolled past the oldest entry before the retry.
	Margin time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// Sleep overrides the suspension primitive, for tests.
	Sleep func(context.Context, time.Duration) error
}

// Window admits weighted requests while keeping the trailing one-minute cost
// at or under the configured cap. Admission-check-and-append is a single
// critical section; a spent weight is never retracted.
type Window struct {
	venue  string
	cap    int
	margin time.Duration
	clock  func() time.Time
	sleep  func(context.Context, time.Duration) error

	mu      sync.Mutex
	entries []entry
	warned  bool

	admitted    metric.Int64Counter
	utilization metric.Float64Gauge
}

// New constructs a Window from cfg, applying defaults for unset fields.
func New(cfg Config) *Window {
	if cfg.Cap <= 0 {
		cfg.Cap = 1200
	}
	if cfg.Margin <= 0 {
		cfg.Margin = defaultMargin
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	w := &Window{
		venue:  cfg.Venue,
		cap:    cfg.Cap,
		margin: cfg.Margin,
		clock:  cfg.Clock,
		sleep:  cfg.Sleep,
	}
	meter := otel.Meter("gateway.ratelimit")
	w.admitted, _ = meter.Int64Counter("gateway_ratelimit_weight_admitted",
		metric.WithDescription("Total request weight admitted through the sliding window"),
		metric.WithUnit("{weight}"))
	w.utilization, _ = meter.Float64Gauge("gateway_ratelimit_utilization",
		metric.WithDescription("Fraction of the one-minute weight budget currently in use"))
	return w
}

// Acquire blocks until weight can be admitted without pushing the trailing
// window over the cap, then records it. Saturation is absorbed as a
// suspension, transparent to the caller; the only error cases are context
// cancellation and a weight that can never fit.
func (w *Window) Acquire(ctx context.Context, weight int) error {
	if weight <= 0 {
		weight = 1
	}
	if weight > w.cap {
		return errs.New(w.venue, errs.CodeInvalid,
			errs.WithMessage("request weight exceeds the window cap"))
	}

	for {
		w.mu.Lock()
		now := w.clock()
		w.prune(now)
		if w.total()+weight <= w.cap {
			w.admit(ctx, now, weight)
			w.mu.Unlock()
			return nil
		}
		// Wait for the then-oldest entry to roll out of the window, then
		// re-check. A single wait is not enough: younger entries may keep
		// the window saturated, so each pass recomputes from whatever is
		// oldest at that point. The sleep happens outside the mutex so a
		// blocked caller does not serialize every other operation.
		wait := windowSpan - now.Sub(w.entries[0].at) + w.margin
		w.mu.Unlock()

		observability.Log().Info("rate window saturated, pausing",
			observability.F("venue", w.venue),
			observability.F("wait", wait.String()),
			observability.F("weight", weight))
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// admit appends the entry and updates metrics. Callers hold the mutex.
func (w *Window) admit(ctx context.Context, now time.Time, weight int) {
	w.entries = append(w.entries, entry{at: now, weight: weight})
	total := w.total()
	util := float64(total) / float64(w.cap)
	if w.admitted != nil {
		w.admitted.Add(ctx, int64(weight), metric.WithAttributes(attribute.String("venue", w.venue)))
	}
	if w.utilization != nil {
		w.utilization.Record(ctx, util, metric.WithAttributes(attribute.String("venue", w.venue)))
	}
	if util >= warnUtilization {
		if !w.warned {
			w.warned = true
			observability.Log().Warn("rate window above 80% of cap",
				observability.F("venue", w.venue),
				observability.F("used", total),
				observability.F("cap", w.cap))
		}
	} else {
		w.warned = false
	}
}

// Used reports the summed weight currently inside the trailing window.
func (w *Window) Used() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.clock())
	return w.total()
}

func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-windowSpan)
	idx := 0
	for idx < len(w.entries) && !w.entries[idx].at.After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.entries = append(w.entries[:0], w.entries[idx:]...)
	}
}

func (w *Window) total() int {
	sum := 0
	for _, e := range w.entries {
		sum += e.weight
	}
	return sum
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
