package transcript

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/codevox/internal/identifier"
	"github.com/MrWong99/codevox/internal/observe"
	"github.com/MrWong99/codevox/internal/transcript/codespan"
	"github.com/MrWong99/codevox/pkg/types"
)

const defaultUncertainThreshold = 0.5

// PipelineOption is a functional option for configuring a [Pipeline].
type PipelineOption func(*Pipeline)

// WithFormatter sets the span formatter. Default: [codespan.New] with its
// defaults.
func WithFormatter(f *codespan.Formatter) PipelineOption {
	return func(p *Pipeline) {
		if f != nil {
			p.formatter = f
		}
	}
}

// WithIdentifierSource attaches a source of context identifiers. Its
// identifiers are appended after the caller-supplied ones, so a caller
// spelling wins when both name the same identifier.
func WithIdentifierSource(src IdentifierSource) PipelineOption {
	return func(p *Pipeline) {
		p.source = src
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithUncertainThreshold sets the per-word recogniser confidence below which
// an unreplaced word is reported in [FormattedTranscript.Uncertain].
// Default: 0.5.
func WithUncertainThreshold(threshold float64) PipelineOption {
	return func(p *Pipeline) {
		p.uncertainThreshold = threshold
	}
}

// Pipeline formats transcripts. It is safe for concurrent use.
type Pipeline struct {
	formatter          *codespan.Formatter
	source             IdentifierSource
	metrics            *observe.Metrics
	uncertainThreshold float64

	// last caches the most recently prepared identifier set; consecutive
	// transcripts usually share one.
	last atomic.Pointer[preparedSet]
}

type preparedSet struct {
	sum uint64
	set *codespan.Prepared
}

// NewPipeline constructs a [Pipeline] with the supplied options.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		formatter:          codespan.New(),
		uncertainThreshold: defaultUncertainThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Format rewrites the identifier mentions in t.Text.
//
// Pipeline flow:
//  1. When an [IdentifierSource] is configured, its identifiers are appended
//     to ids. A capture failure is logged and formatting continues with ids
//     and whatever fallback identifiers the source returned.
//  2. The combined list is deduplicated and compiled (cached across calls
//     with the same list).
//  3. The span formatter locates, filters and rewrites the mentions.
//
// Format only fails when ctx is already done.
func (p *Pipeline) Format(ctx context.Context, t types.Transcript, ids []identifier.Identifier) (*FormattedTranscript, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("transcript: format: %w", err)
	}

	ctx, span := observe.StartSpan(ctx, "transcript.format")
	defer span.End()
	start := time.Now()

	if p.source != nil {
		extra, err := p.source.Identifiers(ctx)
		if err != nil {
			observe.SpanError(span, err)
			observe.Logger(ctx).Warn("context capture failed, formatting without captured identifiers",
				"err", err,
				"supplied", len(ids),
				"fallback", len(extra),
			)
		}
		if len(extra) > 0 {
			ids = append(ids[:len(ids):len(ids)], extra...)
		}
	}

	set := p.prepare(ids)
	res := p.formatter.ApplyPrepared(t.Text, set)

	out := &FormattedTranscript{
		Original:     t,
		Text:         res.Text,
		Replacements: make([]Replacement, 0, len(res.Spans)),
		Uncertain:    uncertainWords(t, res.Spans, p.uncertainThreshold),
		Identifiers:  set.Len(),
	}
	for _, s := range res.Spans {
		out.Replacements = append(out.Replacements, Replacement{
			Start:      s.Start,
			End:        s.End,
			Original:   s.Text,
			Identifier: s.Identifier.Raw,
			Source:     s.Source.String(),
		})
		p.metrics.RecordReplacement(ctx, s.Source.String())
	}

	elapsed := time.Since(start)
	p.metrics.FormatDuration.Record(ctx, elapsed.Seconds())
	span.SetAttributes(
		attribute.Int("codevox.identifiers", out.Identifiers),
		attribute.Int("codevox.replacements", len(out.Replacements)),
	)
	observe.Logger(ctx).Debug("transcript formatted",
		"identifiers", out.Identifiers,
		"replacements", len(out.Replacements),
		"duration", elapsed,
	)
	return out, nil
}

// FormatText is [Pipeline.Format] for plain text and raw identifier
// spellings.
func (p *Pipeline) FormatText(ctx context.Context, text string, raws []string) (*FormattedTranscript, error) {
	return p.Format(ctx, types.Transcript{Text: text, IsFinal: true}, identifier.FromStrings(raws))
}

// prepare compiles ids, reusing the previous compilation when the list is
// unchanged.
func (p *Pipeline) prepare(ids []identifier.Identifier) *codespan.Prepared {
	d := xxhash.New()
	for _, id := range ids {
		_, _ = d.WriteString(id.Raw)
		_, _ = d.Write([]byte{0})
	}
	sum := d.Sum64()

	if last := p.last.Load(); last != nil && last.sum == sum {
		return last.set
	}
	set := p.formatter.Prepare(ids)
	p.last.Store(&preparedSet{sum: sum, set: set})
	return set
}

// uncertainWords returns the low-confidence words of t that do not occur in
// any replaced fragment.
func uncertainWords(t types.Transcript, spans []codespan.Span, threshold float64) []string {
	low := t.LowConfidenceWords(threshold)
	if len(low) == 0 {
		return nil
	}
	var out []string
	for _, w := range low {
		covered := false
		for _, s := range spans {
			if strings.Contains(strings.ToLower(s.Text), strings.ToLower(w)) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, w)
		}
	}
	return out
}
