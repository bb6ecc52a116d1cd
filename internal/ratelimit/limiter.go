package ratelimit

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Rate describes a token bucket's steady-state refill rate and burst capacity.
type Rate struct {
	PerSecond float64
	Burst     float64
}

// Config configures a Limiter.
type Config struct {
	// Default is the per-caller bucket rate used when no per-method override applies.
	Default Rate
	// PerMethod holds stricter secondary buckets keyed by method name.
	PerMethod map[string]Rate
	// Issuance is the independent, tighter bucket for token-issuance endpoints.
	Issuance Rate
	// CleanupInterval controls how often the sweeper runs.
	CleanupInterval time.Duration
	// IdleTTL is how long a bucket may sit unused before the sweeper evicts it.
	IdleTTL time.Duration
	// Now overrides time.Now, for deterministic tests.
	Now func() time.Time
}

// Limiter is a concurrent, per-caller token-bucket rate limiter with
// optional per-method secondary buckets. Buckets are lazily created on first
// observation and evicted by a background sweeper when idle.
type Limiter struct {
	cfg       Config
	callers   sync.Map // string(caller) -> *bucket
	perMethod sync.Map // string(caller+"\x00"+method) -> *bucket
	issuance  sync.Map // string(caller) -> *bucket
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// New constructs a Limiter and starts its background sweeper.
func New(cfg Config) *Limiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	l := &Limiter{cfg: cfg, now: cfg.Now, stop: make(chan struct{})}
	go l.sweepLoop()
	return l
}

// RateMultiplier parses a "rate_multiplier_<factor>" permission marker into
// its numeric factor. Returns 1.0 if no such marker is present.
func RateMultiplier(permissions []string) float64 {
	const prefix = "rate_multiplier_"
	for _, p := range permissions {
		if strings.HasPrefix(p, prefix) {
			if f, err := strconv.ParseFloat(strings.TrimPrefix(p, prefix), 64); err == nil && f > 0 {
				return f
			}
		}
	}
	return 1.0
}

// Allow consumes one token from caller's primary bucket and, if method has a
// configured override, also from the per-(caller, method) secondary bucket.
// Both must have capacity for the request to be admitted.
func (l *Limiter) Allow(caller, method string, multiplier float64) (bool, time.Duration) {
	now := l.now()

	primary := l.bucketFor(&l.callers, caller, l.cfg.Default, multiplier, now)
	ok, retryAfter := primary.allow(now)
	if !ok {
		return false, retryAfter
	}

	if rate, hasOverride := l.cfg.PerMethod[method]; hasOverride {
		key := caller + "\x00" + method
		secondary := l.bucketFor(&l.perMethod, key, rate, multiplier, now)
		if ok, retryAfter := secondary.allow(now); !ok {
			return false, retryAfter
		}
	}
	return true, 0
}

// AllowIssuance consumes one token from caller's independent issuance
// bucket, used by token-issuance and challenge-issuance endpoints.
func (l *Limiter) AllowIssuance(caller string) (bool, time.Duration) {
	now := l.now()
	b := l.bucketFor(&l.issuance, caller, l.cfg.Issuance, 1.0, now)
	return b.allow(now)
}

func (l *Limiter) bucketFor(m *sync.Map, key string, rate Rate, multiplier float64, now time.Time) *bucket {
	if existing, ok := m.Load(key); ok {
		b := existing.(*bucket)
		b.setMultiplier(multiplier)
		return b
	}
	b := newBucket(rate.PerSecond, rate.Burst, multiplier, now)
	actual, _ := m.LoadOrStore(key, b)
	return actual.(*bucket)
}

// Stop halts the background sweeper. Safe to call multiple times.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	now := l.now()
	evict := func(m *sync.Map) {
		m.Range(func(key, value any) bool {
			b := value.(*bucket)
			if b.idleSince(now) > l.cfg.IdleTTL {
				m.Delete(key)
			}
			return true
		})
	}
	evict(&l.callers)
	evict(&l.perMethod)
	evict(&l.issuance)
}
