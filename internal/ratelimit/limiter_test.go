package ratelimit_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zecgate/gateway/internal/ratelimit"
)

// TestMain verifies that no background goroutine (the sweeper) outlives a
// test once the limiter it belongs to has been stopped.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type manualClock struct {
	now atomic.Int64
}

func newManualClock(start time.Time) *manualClock {
	c := &manualClock{}
	c.now.Store(start.UnixNano())
	return c
}

func (c *manualClock) Now() time.Time { return time.Unix(0, c.now.Load()) }
func (c *manualClock) Advance(d time.Duration) {
	c.now.Add(int64(d))
}

func newLimiter(t *testing.T, cfg ratelimit.Config, clock *manualClock) *ratelimit.Limiter {
	t.Helper()
	cfg.Now = clock.Now
	l := ratelimit.New(cfg)
	t.Cleanup(l.Stop)
	return l
}

// Invariant 4 (spec §8): within a window, at most burst+ceil(rate*window)
// requests are admitted; once exhausted, Allow reports false until refill.
func TestLimiter_Allow_BoundsRequestsToCapacity(t *testing.T) {
	clock := newManualClock(time.Now())
	l := newLimiter(t, ratelimit.Config{Default: ratelimit.Rate{PerSecond: 1, Burst: 3}}, clock)

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("caller-a", "getinfo", 1.0)
		assert.True(t, ok, "request %d within burst must be admitted", i)
	}

	ok, retryAfter := l.Allow("caller-a", "getinfo", 1.0)
	assert.False(t, ok, "request beyond burst capacity must be refused")
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestLimiter_Allow_RefillsOverTime(t *testing.T) {
	clock := newManualClock(time.Now())
	l := newLimiter(t, ratelimit.Config{Default: ratelimit.Rate{PerSecond: 1, Burst: 1}}, clock)

	ok, _ := l.Allow("caller-a", "getinfo", 1.0)
	require.True(t, ok)

	ok, _ = l.Allow("caller-a", "getinfo", 1.0)
	require.False(t, ok, "bucket must be empty immediately after consuming the only token")

	clock.Advance(2 * time.Second)
	ok, _ = l.Allow("caller-a", "getinfo", 1.0)
	assert.True(t, ok, "bucket must refill after enough elapsed time")
}

func TestLimiter_Allow_PerCallerBucketsAreIndependent(t *testing.T) {
	clock := newManualClock(time.Now())
	l := newLimiter(t, ratelimit.Config{Default: ratelimit.Rate{PerSecond: 1, Burst: 1}}, clock)

	ok, _ := l.Allow("caller-a", "getinfo", 1.0)
	require.True(t, ok)

	ok, _ = l.Allow("caller-b", "getinfo", 1.0)
	assert.True(t, ok, "a different caller must have its own independent bucket")
}

func TestLimiter_Allow_PerMethodOverrideAppliesInAdditionToPrimary(t *testing.T) {
	clock := newManualClock(time.Now())
	l := newLimiter(t, ratelimit.Config{
		Default:   ratelimit.Rate{PerSecond: 100, Burst: 100},
		PerMethod: map[string]ratelimit.Rate{"z_sendmany": {PerSecond: 1, Burst: 1}},
	}, clock)

	ok, _ := l.Allow("caller-a", "z_sendmany", 1.0)
	require.True(t, ok)

	ok, _ = l.Allow("caller-a", "z_sendmany", 1.0)
	assert.False(t, ok, "the stricter per-method secondary bucket must still gate admission")

	// A different method not covered by PerMethod only consults the primary
	// bucket, which still has ample capacity.
	ok, _ = l.Allow("caller-a", "getinfo", 1.0)
	assert.True(t, ok)
}

func TestLimiter_RateMultiplier_ParsesMarkerPermission(t *testing.T) {
	assert.Equal(t, 1.0, ratelimit.RateMultiplier(nil))
	assert.Equal(t, 1.0, ratelimit.RateMultiplier([]string{"read"}))
	assert.Equal(t, 2.5, ratelimit.RateMultiplier([]string{"read", "rate_multiplier_2.5"}))
	assert.Equal(t, 1.0, ratelimit.RateMultiplier([]string{"rate_multiplier_not-a-number"}))
}

func TestLimiter_Allow_MultiplierExpandsCapacity(t *testing.T) {
	clock := newManualClock(time.Now())
	l := newLimiter(t, ratelimit.Config{Default: ratelimit.Rate{PerSecond: 1, Burst: 1}}, clock)

	ok, _ := l.Allow("caller-a", "getinfo", 2.0)
	require.True(t, ok)
	ok, _ = l.Allow("caller-a", "getinfo", 2.0)
	assert.True(t, ok, "a 2x multiplier must double effective burst capacity")
}

func TestLimiter_AllowIssuance_IndependentFromPrimaryBucket(t *testing.T) {
	clock := newManualClock(time.Now())
	l := newLimiter(t, ratelimit.Config{
		Default:  ratelimit.Rate{PerSecond: 0.001, Burst: 1},
		Issuance: ratelimit.Rate{PerSecond: 1, Burst: 5},
	}, clock)

	ok, _ := l.Allow("caller-a", "getinfo", 1.0)
	require.True(t, ok)

	ok, _ = l.AllowIssuance("caller-a")
	assert.True(t, ok, "issuance bucket must not share capacity with the primary bucket")
}

func TestLimiter_Stop_IsIdempotent(t *testing.T) {
	clock := newManualClock(time.Now())
	l := ratelimit.New(ratelimit.Config{Default: ratelimit.Rate{PerSecond: 1, Burst: 1}, Now: clock.Now})
	l.Stop()
	assert.NotPanics(t, l.Stop)
}
