package codectx

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/MrWong99/codevox/internal/identifier"
	"github.com/MrWong99/codevox/internal/observe"
)

const (
	// DefaultTTL is how long captured identifiers are served before the
	// source is captured again.
	DefaultTTL = 5 * time.Second

	// DefaultMaxIdentifiers caps the captured identifiers kept per capture.
	DefaultMaxIdentifiers = 50
)

// CacheOption is a functional option for configuring a [Cache].
type CacheOption func(*Cache)

// WithTTL sets the capture time-to-live. Zero disables caching.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = max(d, 0) }
}

// WithMaxIdentifiers keeps only the n most significant captured identifiers.
// Zero or a negative value keeps all of them.
func WithMaxIdentifiers(n int) CacheOption {
	return func(c *Cache) { c.maxIdentifiers = n }
}

// WithClassifier sets the classifier applied to captured text.
func WithClassifier(cl *identifier.Classifier) CacheOption {
	return func(c *Cache) {
		if cl != nil {
			c.classifier = cl
		}
	}
}

// WithStatic sets identifiers that are always served ahead of the captured
// ones, e.g. a project's known-identifier list.
func WithStatic(ids []identifier.Identifier) CacheOption {
	return func(c *Cache) { c.static = slices.Clone(ids) }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) CacheOption {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// Cache serves the identifiers of the current code context. Captures are
// serialised: concurrent callers wait for a single capture instead of
// starting their own. Captured text whose fingerprint did not change since
// the previous capture is not classified again.
type Cache struct {
	source         Source
	classifier     *identifier.Classifier
	static         []identifier.Identifier
	ttl            time.Duration
	maxIdentifiers int
	metrics        *observe.Metrics
	now            func() time.Time

	mu       sync.Mutex
	fetched  time.Time
	valid    bool
	sum      uint64
	captured []identifier.Identifier
}

// NewCache returns a [Cache] capturing from src. src may be nil when only a
// static list is used.
func NewCache(src Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source:         src,
		classifier:     identifier.NewClassifier(),
		ttl:            DefaultTTL,
		maxIdentifiers: DefaultMaxIdentifiers,
		now:            time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Identifiers returns the static identifiers followed by the captured ones,
// deduplicated by normalized key. When the capture fails the static
// identifiers are returned together with the error.
func (c *Cache) Identifiers(ctx context.Context) ([]identifier.Identifier, error) {
	if c.source == nil {
		if len(c.static) == 0 {
			return nil, ErrNoSource
		}
		return slices.Clone(c.static), nil
	}

	captured, err := c.capture(ctx)
	if err != nil {
		return slices.Clone(c.static), err
	}
	if len(c.static) == 0 {
		return captured, nil
	}
	return identifier.Dedupe(append(slices.Clone(c.static), captured...)), nil
}

// Invalidate forces the next [Cache.Identifiers] call to capture again.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// capture returns a copy of the captured identifiers, refreshing them when
// the time-to-live has expired.
func (c *Cache) capture(ctx context.Context) ([]identifier.Identifier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.valid && now.Sub(c.fetched) < c.ttl {
		c.metrics.RecordContextCapture(ctx, "hit")
		return slices.Clone(c.captured), nil
	}

	text, err := c.source.Capture(ctx)
	if err != nil {
		c.metrics.RecordContextCapture(ctx, "error")
		return nil, fmt.Errorf("codectx: capture: %w", err)
	}

	sum := xxhash.Sum64String(text)
	if c.valid && sum == c.sum {
		c.fetched = now
		c.metrics.RecordContextCapture(ctx, "unchanged")
		return slices.Clone(c.captured), nil
	}

	start := time.Now()
	ids := c.classifier.Classify(text)
	c.metrics.ClassifyDuration.Record(ctx, time.Since(start).Seconds())
	if c.maxIdentifiers > 0 && len(ids) > c.maxIdentifiers {
		ids = ids[:c.maxIdentifiers]
	}

	c.captured = ids
	c.sum = sum
	c.fetched = now
	c.valid = true
	c.metrics.RecordContextCapture(ctx, "miss")
	c.metrics.ContextIdentifiers.Record(ctx, int64(len(ids)))
	observe.Logger(ctx).Debug("context captured",
		"bytes", len(text),
		"identifiers", len(ids),
	)
	return slices.Clone(ids), nil
}
