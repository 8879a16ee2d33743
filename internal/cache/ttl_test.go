package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestTTLReusesValueUntilExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var loads int32
	c := NewTTL(5*time.Minute, func(ctx context.Context) (int32, error) {
		return atomic.AddInt32(&loads, 1), nil
	}, WithClock[int32](clock.Now))

	ctx := context.Background()
	v, err := c.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	clock.Advance(4*time.Minute + 59*time.Second)
	v, err = c.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v, "still inside the window")

	clock.Advance(time.Second)
	v, err = c.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v, "expiry forces a reload")
}

func TestTTLDoesNotCacheErrors(t *testing.T) {
	calls := 0
	c := NewTTL(time.Minute, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("secret store unavailable")
		}
		return "client", nil
	})

	_, err := c.Get(context.Background())
	require.Error(t, err)

	v, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "client", v)
	assert.Equal(t, 2, calls)
}

func TestTTLSingleFlightRefresh(t *testing.T) {
	var loads int32
	release := make(chan struct{})
	c := NewTTL(time.Minute, func(ctx context.Context) (int32, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return 7, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background())
			assert.NoError(t, err)
			assert.EqualValues(t, 7, v)
		}()
	}

	// let the goroutines pile up on the in-flight load
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&loads))
}

func TestTTLInvalidate(t *testing.T) {
	var loads int32
	c := NewTTL(time.Hour, func(ctx context.Context) (int32, error) {
		return atomic.AddInt32(&loads, 1), nil
	})

	_, _ = c.Get(context.Background())
	c.Invalidate()
	v, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestTTLLoadIgnoresCallerCancellation(t *testing.T) {
	c := NewTTL(time.Minute, func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "client", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "client", v)
}
