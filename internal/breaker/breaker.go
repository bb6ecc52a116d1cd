// Package breaker wraps sony/gobreaker into the three-state protector
// between the gateway and the backend daemon, adding a half-open probe
// counter and structured logging on every state transition.
package breaker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/zecgate/gateway/internal/observability"
)

// State mirrors gobreaker.State with the gateway's own naming.
type State string

// Circuit breaker states.
const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrOpen is returned by Execute when the breaker is open or the half-open
// probe budget is exhausted.
var ErrOpen = errors.New("breaker: circuit open")

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from closed to open.
	FailureThreshold uint32
	// RecoveryTimeout is how long the breaker stays open before allowing a
	// half-open probe.
	RecoveryTimeout time.Duration
	// HalfOpenMaxProbes bounds the number of concurrent requests admitted
	// while half-open.
	HalfOpenMaxProbes uint32
}

var (
	stateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_breaker_state",
		Help: "Circuit breaker state: 0=closed 1=open 2=half-open",
	}, []string{"name"})
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_breaker_transitions_total",
		Help: "Circuit breaker state transitions",
	}, []string{"name", "from", "to"})
	halfOpenProbesInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_breaker_half_open_probes_in_flight",
		Help: "Probes currently admitted while the breaker is half-open",
	}, []string{"name"})
)

// Breaker protects a single backend dependency.
type Breaker struct {
	name     string
	gb       *gobreaker.CircuitBreaker
	settings gobreaker.Settings
	logger   observability.Logger
	probes   atomic.Int64
	probeCap int64
}

// New constructs a Breaker named name.
func New(name string, cfg Config, logger observability.Logger) *Breaker {
	b := &Breaker{name: name, logger: logger, probeCap: int64(cfg.HalfOpenMaxProbes)}
	b.settings = gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxProbes,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.onStateChange(from, to)
		},
	}
	b.gb = gobreaker.NewCircuitBreaker(b.settings)
	stateGauge.WithLabelValues(name).Set(0)
	return b
}

// Reset forces the breaker back to closed, discarding its failure counts.
// gobreaker exposes no in-place reset, so this swaps in a fresh
// CircuitBreaker built from the same settings; used by the admin breaker
// reset endpoint for manual recovery after a confirmed backend fix.
func (b *Breaker) Reset() {
	b.gb = gobreaker.NewCircuitBreaker(b.settings)
	stateGauge.WithLabelValues(b.name).Set(stateToFloat(StateClosed))
	b.logger.Info("circuit breaker manually reset", observability.String("name", b.name))
}

// Execute runs fn under breaker protection. Returns ErrOpen without calling
// fn if the circuit is open or the half-open probe budget is exhausted.
func (b *Breaker) Execute(ctx context.Context, fn func() (any, error)) (any, error) {
	if b.State() == StateHalfOpen {
		b.probes.Add(1)
		halfOpenProbesInFlight.WithLabelValues(b.name).Set(float64(b.probes.Load()))
		defer func() {
			b.probes.Add(-1)
			halfOpenProbesInFlight.WithLabelValues(b.name).Set(float64(b.probes.Load()))
		}()
	}

	result, err := b.gb.Execute(func() (any, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	return result, err
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	switch b.gb.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string { return b.name }

func (b *Breaker) onStateChange(from, to gobreaker.State) {
	fromState, toState := goState(from), goState(to)
	stateGauge.WithLabelValues(b.name).Set(stateToFloat(toState))
	transitionsTotal.WithLabelValues(b.name, string(fromState), string(toState)).Inc()

	if b.logger == nil {
		return
	}
	b.logger.Info("circuit breaker state changed",
		observability.String("name", b.name),
		observability.String("from", string(fromState)),
		observability.String("to", string(toState)),
	)
}

func goState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

func stateToFloat(s State) float64 {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	default:
		return 0
	}
}
