package codectx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrSourceUnavailable is returned by a [GuardedSource] while its breaker is
// open.
var ErrSourceUnavailable = errors.New("codectx: source unavailable")

// BreakerState is the operating mode of a [GuardedSource].
type BreakerState int

const (
	// BreakerClosed forwards every capture to the wrapped source.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects captures with [ErrSourceUnavailable] until the
	// retry delay has elapsed.
	BreakerOpen

	// BreakerHalfOpen lets a single probe capture through. Success closes
	// the breaker, failure opens it again.
	BreakerHalfOpen
)

// String returns the human-readable name of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	// DefaultMaxFailures is the number of consecutive capture failures that
	// open the breaker.
	DefaultMaxFailures = 3

	// DefaultRetryAfter is how long an open breaker rejects captures.
	DefaultRetryAfter = 30 * time.Second
)

// GuardOption is a functional option for configuring a [GuardedSource].
type GuardOption func(*GuardedSource)

// WithMaxFailures sets the consecutive failures that open the breaker.
func WithMaxFailures(n int) GuardOption {
	return func(g *GuardedSource) {
		if n > 0 {
			g.maxFailures = n
		}
	}
}

// WithRetryAfter sets how long the breaker stays open before probing.
func WithRetryAfter(d time.Duration) GuardOption {
	return func(g *GuardedSource) {
		if d > 0 {
			g.retryAfter = d
		}
	}
}

// WithGuardClock replaces time.Now, for tests.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *GuardedSource) { g.now = now }
}

// GuardedSource wraps a [Source] that may fail persistently, such as a
// screen reader that lost its window, and stops calling it after repeated
// failures. It is safe for concurrent use.
type GuardedSource struct {
	name        string
	source      Source
	maxFailures int
	retryAfter  time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// Guard wraps src in a [GuardedSource]. name labels log messages.
func Guard(name string, src Source, opts ...GuardOption) *GuardedSource {
	g := &GuardedSource{
		name:        name,
		source:      src,
		maxFailures: DefaultMaxFailures,
		retryAfter:  DefaultRetryAfter,
		now:         time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Capture forwards to the wrapped source unless the breaker is open.
// Cancelled contexts do not count as source failures.
func (g *GuardedSource) Capture(ctx context.Context) (string, error) {
	g.mu.Lock()
	switch g.state {
	case BreakerOpen:
		if g.now().Sub(g.openedAt) < g.retryAfter {
			g.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrSourceUnavailable, g.name)
		}
		g.state = BreakerHalfOpen
		g.probing = false
		slog.Info("context source breaker half-open", "source", g.name)
	}
	if g.state == BreakerHalfOpen {
		if g.probing {
			g.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrSourceUnavailable, g.name)
		}
		g.probing = true
	}
	g.mu.Unlock()

	text, err := g.source.Capture(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.probing = false
	switch {
	case err == nil:
		if g.state != BreakerClosed {
			slog.Info("context source breaker closed", "source", g.name)
		}
		g.state = BreakerClosed
		g.failures = 0
	case ctx.Err() != nil:
		if g.state == BreakerHalfOpen {
			g.state = BreakerOpen
		}
	default:
		g.failures++
		if g.state == BreakerHalfOpen || g.failures >= g.maxFailures {
			g.state = BreakerOpen
			g.openedAt = g.now()
			slog.Warn("context source breaker opened",
				"source", g.name,
				"consecutive_failures", g.failures,
				"err", err,
			)
		}
	}
	return text, err
}

// State returns the current breaker state. An open breaker whose retry
// delay has elapsed reports [BreakerHalfOpen].
func (g *GuardedSource) State() BreakerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == BreakerOpen && g.now().Sub(g.openedAt) >= g.retryAfter {
		return BreakerHalfOpen
	}
	return g.state
}

// Reset closes the breaker and clears the failure count.
func (g *GuardedSource) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = BreakerClosed
	g.failures = 0
	g.probing = false
}
