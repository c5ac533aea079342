package codectx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/codevox/internal/codectx"
)

func TestGuardedSource_OpensAfterFailures(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	errLost := errors.New("window lost")
	src := &countingSource{err: errLost}
	g := codectx.Guard("screen", src,
		codectx.WithMaxFailures(2),
		codectx.WithRetryAfter(time.Minute),
		codectx.WithGuardClock(clock.Now),
	)

	ctx := context.Background()
	for range 2 {
		if _, err := g.Capture(ctx); !errors.Is(err, errLost) {
			t.Fatalf("err = %v, want %v", err, errLost)
		}
	}
	if g.State() != codectx.BreakerOpen {
		t.Fatalf("state = %v, want open", g.State())
	}

	_, err := g.Capture(ctx)
	if !errors.Is(err, codectx.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("source calls = %d, want 2", n)
	}
}

func TestGuardedSource_ProbeRecovers(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	src := &countingSource{err: errors.New("boom")}
	g := codectx.Guard("file", src,
		codectx.WithMaxFailures(1),
		codectx.WithRetryAfter(time.Minute),
		codectx.WithGuardClock(clock.Now),
	)

	ctx := context.Background()
	_, _ = g.Capture(ctx)
	if g.State() != codectx.BreakerOpen {
		t.Fatalf("state = %v, want open", g.State())
	}

	clock.Advance(time.Minute)
	if g.State() != codectx.BreakerHalfOpen {
		t.Fatalf("state = %v, want half-open", g.State())
	}

	// A failed probe opens the breaker again.
	if _, err := g.Capture(ctx); err == nil || errors.Is(err, codectx.ErrSourceUnavailable) {
		t.Fatalf("probe err = %v, want source error", err)
	}
	if g.State() != codectx.BreakerOpen {
		t.Fatalf("state after failed probe = %v, want open", g.State())
	}

	clock.Advance(time.Minute)
	src.set("fetchUserData()", nil)
	text, err := g.Capture(ctx)
	if err != nil || text != "fetchUserData()" {
		t.Fatalf("Capture = %q, %v", text, err)
	}
	if g.State() != codectx.BreakerClosed {
		t.Errorf("state after successful probe = %v, want closed", g.State())
	}
}

func TestGuardedSource_CancelDoesNotCount(t *testing.T) {
	t.Parallel()

	src := codectx.SourceFunc(func(ctx context.Context) (string, error) {
		return "", ctx.Err()
	})
	g := codectx.Guard("slow", src, codectx.WithMaxFailures(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if g.State() != codectx.BreakerClosed {
		t.Errorf("state = %v, want closed", g.State())
	}
}

func TestGuardedSource_Reset(t *testing.T) {
	t.Parallel()

	g := codectx.Guard("file", &countingSource{err: errors.New("boom")},
		codectx.WithMaxFailures(1),
		codectx.WithRetryAfter(time.Hour),
	)
	_, _ = g.Capture(context.Background())
	if g.State() != codectx.BreakerOpen {
		t.Fatalf("state = %v, want open", g.State())
	}
	g.Reset()
	if g.State() != codectx.BreakerClosed {
		t.Errorf("state after Reset = %v, want closed", g.State())
	}
}

func TestBreakerState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state codectx.BreakerState
		want  string
	}{
		{codectx.BreakerClosed, "closed"},
		{codectx.BreakerOpen, "open"},
		{codectx.BreakerHalfOpen, "half-open"},
		{codectx.BreakerState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("BreakerState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestCache_GuardedSourceFallsBackToStatic(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	g := codectx.Guard("file", codectx.FileSource{Path: "/nonexistent/buffer.go"},
		codectx.WithMaxFailures(1),
		codectx.WithRetryAfter(time.Hour),
	)
	c := codectx.NewCache(g,
		codectx.WithMetrics(m),
		codectx.WithTTL(0),
		codectx.WithStatic(nil),
	)

	ctx := context.Background()
	if _, err := c.Identifiers(ctx); err == nil {
		t.Fatal("expected capture error")
	}
	_, err := c.Identifiers(ctx)
	if !errors.Is(err, codectx.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
	if st := captureStatuses(t, reader); st["error"] != 2 {
		t.Errorf("capture statuses = %v, want error=2", st)
	}
}
