package clocksync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOffsetFromServerAhead(t *testing.T) {
	local := time.Unix(1_700_000_000, 0)
	calls := 0
	now := func() time.Time {
		// Each sample advances local time by 20ms to simulate round-trip.
		calls++
		return local.Add(time.Duration(calls-1) * 20 * time.Millisecond)
	}
	fetch := func(context.Context) (time.Time, error) {
		return local.Add(10*time.Millisecond + 500*time.Millisecond), nil
	}

	c := New("testvenue", fetch, now)
	c.Sync(context.Background())

	// Server reports midpoint+500ms, so the measured offset should be 500ms.
	require.InDelta(t, 500, c.Offset().Milliseconds(), 25)
}

func TestSyncFailureKeepsZeroOffset(t *testing.T) {
	fetch := func(context.Context) (time.Time, error) {
		return time.Time{}, errors.New("boom")
	}
	c := New("testvenue", fetch, nil)
	c.Sync(context.Background())
	require.Equal(t, time.Duration(0), c.Offset())
}

func TestSyncRunsOnce(t *testing.T) {
	calls := 0
	fetch := func(context.Context) (time.Time, error) {
		calls++
		return time.Now(), nil
	}
	c := New("testvenue", fetch, nil)
	for i := 0; i < 5; i++ {
		c.Sync(context.Background())
	}
	require.Equal(t, 1, calls)
}

func TestNowAppliesOffset(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	now := func() time.Time { return base }
	fetch := func(context.Context) (time.Time, error) {
		return base.Add(2 * time.Second), nil
	}
	c := New("testvenue", fetch, now)
	got := c.Now(context.Background())
	require.Equal(t, base.Add(2*time.Second).UnixMilli(), got.UnixMilli())
}
