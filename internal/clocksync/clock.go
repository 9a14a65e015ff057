// Package clocksync estimates the skew between the local clock and a venue's
// server clock so that timestamped authentication does not fail on drift.
package clocksync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tradewire/gateway/internal/observability"
)

// ServerTimeFunc fetches the venue's current server time.
type ServerTimeFunc func(ctx context.Context) (time.Time, error)

// Clock tracks a signed millisecond offset (server − local). Synchronization
// runs once, lazily, on the first timestamp request. A failed sync logs a
// warning and leaves the offset at zero rather than blocking the caller: a
// wrong offset is self-correcting because every retry regenerates its
// timestamp.
type Clock struct {
	venue    string
	fetch    ServerTimeFunc
	now      func() time.Time
	once     sync.Once
	offsetMS atomic.Int64
}

// New constructs a Clock for the venue. A nil now falls back to time.Now.
func New(venue string, fetch ServerTimeFunc, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{venue: venue, fetch: fetch, now: now}
}

// Sync measures the offset once. Local time is sampled immediately before and
// after the server-time call and the midpoint is used to cancel out
// round-trip latency.
func (c *Clock) Sync(ctx context.Context) {
	c.once.Do(func() {
		if c.fetch == nil {
			return
		}
		before := c.now()
		server, err := c.fetch(ctx)
		after := c.now()
		if err != nil {
			observability.Log().Warn("server time sync failed, assuming zero offset",
				observability.F("venue", c.venue),
				observability.F("error", err.Error()))
			return
		}
		midpoint := before.Add(after.Sub(before) / 2)
		offset := server.Sub(midpoint)
		c.offsetMS.Store(offset.Milliseconds())
		observability.Log().Debug("server clock offset measured",
			observability.F("venue", c.venue),
			observability.F("offset_ms", offset.Milliseconds()))
	})
}

// Offset returns the measured skew.
func (c *Clock) Offset() time.Duration {
	return time.Duration(c.offsetMS.Load()) * time.Millisecond
}

// Now returns the skew-adjusted current time, synchronizing first if needed.
func (c *Clock) Now(ctx context.Context) time.Time {
	c.Sync(ctx)
	return c.now().Add(c.Offset())
}

// UnixMilli returns the skew-adjusted timestamp in milliseconds.
func (c *Clock) UnixMilli(ctx context.Context) int64 {
	return c.Now(ctx).UnixMilli()
}
