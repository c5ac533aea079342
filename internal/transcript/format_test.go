package transcript_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/codevox/internal/identifier"
	"github.com/MrWong99/codevox/internal/observe"
	"github.com/MrWong99/codevox/internal/transcript"
	"github.com/MrWong99/codevox/pkg/types"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func makeTranscript(text string, words ...types.WordDetail) types.Transcript {
	return types.Transcript{
		Text:       text,
		IsFinal:    true,
		Confidence: 0.85,
		Words:      words,
		Timestamp:  time.Second,
		Duration:   3 * time.Second,
	}
}

func staticSource(raws ...string) transcript.IdentifierSource {
	return transcript.IdentifierSourceFunc(func(context.Context) ([]identifier.Identifier, error) {
		return identifier.FromStrings(raws), nil
	})
}

func TestPipeline_FormatsSuppliedIdentifiers(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	p := transcript.NewPipeline(transcript.WithMetrics(m))

	tr := makeTranscript("use clear pasteboard data to clear")
	ids := identifier.FromStrings([]string{"clearPasteboardData", "clearPasteboard", "clear"})

	got, err := p.Format(context.Background(), tr, ids)
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if got.Text != "use `clearPasteboardData` to `clear`" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Original.Text != tr.Text {
		t.Errorf("Original.Text = %q, want %q", got.Original.Text, tr.Text)
	}
	if got.Identifiers != 3 {
		t.Errorf("Identifiers = %d, want 3", got.Identifiers)
	}

	want := []transcript.Replacement{
		{Start: 4, End: 25, Original: "clear pasteboard data", Identifier: "clearPasteboardData", Source: "literal"},
		{Start: 29, End: 34, Original: "clear", Identifier: "clear", Source: "literal"},
	}
	if !slices.Equal(got.Replacements, want) {
		t.Errorf("Replacements = %+v\nwant %+v", got.Replacements, want)
	}
}

func TestPipeline_NoReplacementsIsNonNil(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	p := transcript.NewPipeline(transcript.WithMetrics(m))

	got, err := p.FormatText(context.Background(), "nothing to see here", []string{"clearPasteboard"})
	if err != nil {
		t.Fatalf("FormatText returned error: %v", err)
	}
	if got.Replacements == nil {
		t.Error("Replacements is nil, want non-nil empty slice")
	}
	if got.Text != "nothing to see here" {
		t.Errorf("Text = %q, want input unchanged", got.Text)
	}
}

func TestPipeline_MergesContextIdentifiers(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	p := transcript.NewPipeline(
		transcript.WithMetrics(m),
		transcript.WithIdentifierSource(staticSource("fetchUserData", "user_name")),
	)

	got, err := p.FormatText(context.Background(), "fetch user data by user name", []string{"userName"})
	if err != nil {
		t.Fatalf("FormatText returned error: %v", err)
	}
	// The supplied spelling wins over the context spelling of the same key.
	if want := "`fetchUserData` by `userName`"; got.Text != want {
		t.Errorf("Text = %q, want %q", got.Text, want)
	}
	if got.Identifiers != 2 {
		t.Errorf("Identifiers = %d, want 2", got.Identifiers)
	}
}

func TestPipeline_CaptureFailureDegradesGracefully(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	failing := transcript.IdentifierSourceFunc(func(context.Context) ([]identifier.Identifier, error) {
		return nil, errors.New("screen capture unavailable")
	})
	p := transcript.NewPipeline(transcript.WithMetrics(m), transcript.WithIdentifierSource(failing))

	got, err := p.FormatText(context.Background(), "reset the state", []string{"reset"})
	if err != nil {
		t.Fatalf("FormatText returned error: %v", err)
	}
	if got.Text != "`reset` the state" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestPipeline_CancelledContext(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	p := transcript.NewPipeline(transcript.WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.FormatText(ctx, "reset", []string{"reset"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPipeline_UncertainWords(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	p := transcript.NewPipeline(transcript.WithMetrics(m))

	tr := makeTranscript("clear pasteboard and frobnicate",
		types.WordDetail{Word: "clear", Confidence: 0.9},
		types.WordDetail{Word: "pasteboard", Confidence: 0.3},
		types.WordDetail{Word: "and", Confidence: 0.95},
		types.WordDetail{Word: "frobnicate", Confidence: 0.2},
	)
	got, err := p.Format(context.Background(), tr, identifier.FromStrings([]string{"clearPasteboard"}))
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if !slices.Equal(got.Uncertain, []string{"frobnicate"}) {
		t.Errorf("Uncertain = %q, want [frobnicate]", got.Uncertain)
	}
}

func TestPipeline_RecordsMetrics(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	p := transcript.NewPipeline(transcript.WithMetrics(m))

	for _, text := range []string{"reset and clear paste board", "reset again"} {
		if _, err := p.FormatText(context.Background(), text, []string{"reset", "clearPasteboard"}); err != nil {
			t.Fatalf("FormatText(%q): %v", text, err)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var sawDuration bool
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			switch met.Name {
			case "codevox.format.duration":
				hist := met.Data.(metricdata.Histogram[float64])
				sawDuration = len(hist.DataPoints) == 1 && hist.DataPoints[0].Count == 2
			case "codevox.format.replacements":
				for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
					v, _ := dp.Attributes.Value("source")
					counts[v.AsString()] = dp.Value
				}
			}
		}
	}
	if !sawDuration {
		t.Error("format duration not recorded twice")
	}
	if counts["literal"] != 2 || counts["window"] != 1 {
		t.Errorf("replacement counts = %v, want literal=2 window=1", counts)
	}
}

func TestPipeline_ConcurrentUse(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	p := transcript.NewPipeline(transcript.WithMetrics(m))

	lists := [][]string{{"reset"}, {"reset", "clearPasteboard"}}
	done := make(chan string, 20)
	for i := range 20 {
		go func() {
			res, err := p.FormatText(context.Background(), "reset it", lists[i%2])
			if err != nil {
				done <- err.Error()
				return
			}
			done <- res.Text
		}()
	}
	for range 20 {
		if got := <-done; got != "`reset` it" {
			t.Errorf("concurrent FormatText = %q", got)
		}
	}
}
