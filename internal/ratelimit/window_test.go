package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTime drives the window with a manually advanced clock. Sleep advances
// the clock instead of blocking.
type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Unix(1_700_000_000, 0)}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeTime) Sleep(_ context.Context, d time.Duration) error {
	f.Advance(d)
	return nil
}

func newTestWindow(t *testing.T, cap int) (*Window, *fakeTime) {
	t.Helper()
	ft := newFakeTime()
	w := New(Config{
		Venue:  "testvenue",
		Cap:    cap,
		Margin: 100 * time.Millisecond,
		Clock:  ft.Now,
		Sleep:  ft.Sleep,
	})
	return w, ft
}

func TestAcquireNeverExceedsCap(t *testing.T) {
	w, ft := newTestWindow(t, 10)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Acquire(ctx, 2))
		require.LessOrEqual(t, w.Used(), 10)
		ft.Advance(time.Second)
	}
	require.Equal(t, 10, w.Used())

	// The next acquisition must wait for the oldest entry to roll out of the
	// window before it is admitted; the fake sleep advances the clock.
	require.NoError(t, w.Acquire(ctx, 2))
	require.LessOrEqual(t, w.Used(), 10)
}

func TestWindowForgetsAfterSixtyOneSeconds(t *testing.T) {
	w, ft := newTestWindow(t, 10)
	ctx := context.Background()

	require.NoError(t, w.Acquire(ctx, 10))
	require.Equal(t, 10, w.Used())

	ft.Advance(61 * time.Second)
	require.Equal(t, 0, w.Used())
	require.NoError(t, w.Acquire(ctx, 10))
	require.Equal(t, 10, w.Used())
}

func TestAcquireSuspendsAcrossMultipleExpiries(t *testing.T) {
	w, ft := newTestWindow(t, 10)
	ctx := context.Background()

	// Two entries of different ages: w=2 at t=0 and w=8 at t=59.
	require.NoError(t, w.Acquire(ctx, 2))
	ft.Advance(59 * time.Second)
	require.NoError(t, w.Acquire(ctx, 8))
	ft.Advance(500 * time.Millisecond)

	// Expiring only the oldest entry is not enough for another w=8; the
	// acquisition must keep suspending until the t=59 entry also rolls out,
	// and must never surface saturation as an error.
	require.NoError(t, w.Acquire(ctx, 8))
	require.Equal(t, 8, w.Used())
}

func TestAcquireWeightAboveCap(t *testing.T) {
	w, _ := newTestWindow(t, 10)
	err := w.Acquire(context.Background(), 11)
	require.Error(t, err)
}

func TestAcquireHonoursContextCancellation(t *testing.T) {
	ft := newFakeTime()
	w := New(Config{
		Venue: "testvenue",
		Cap:   5,
		Clock: ft.Now,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Acquire(ctx, 5))
	cancel()
	err := w.Acquire(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentAcquireStaysUnderCap(t *testing.T) {
	w, _ := newTestWindow(t, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Acquire(ctx, 2)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, w.Used(), 50)
}
