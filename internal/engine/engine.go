// Package engine bundles the recognition components of codevox into one
// immutable unit built from a [config.RecognitionConfig].
//
// An [Engine] owns the classifier, the phrase matcher, the span formatter and
// the transcript pipeline that ties them to a context identifier source. It
// is never modified after construction; on configuration reload the
// application builds a new Engine and swaps it in atomically, so requests
// that already hold the old Engine finish with consistent settings.
//
// This package lives under internal/ because it encapsulates application-private
// wiring and is not intended to be imported by external code.
package engine

import (
	"github.com/MrWong99/codevox/internal/config"
	"github.com/MrWong99/codevox/internal/identifier"
	"github.com/MrWong99/codevox/internal/observe"
	"github.com/MrWong99/codevox/internal/transcript"
	"github.com/MrWong99/codevox/internal/transcript/codespan"
	"github.com/MrWong99/codevox/internal/transcript/match"
)

// Option is a functional option for configuring an [Engine].
type Option func(*options)

type options struct {
	classifier *identifier.Classifier
	source     transcript.IdentifierSource
	metrics    *observe.Metrics
}

// WithClassifier uses cl instead of building one from the config. The
// context cache and the engine should share one classifier.
func WithClassifier(cl *identifier.Classifier) Option {
	return func(o *options) { o.classifier = cl }
}

// WithIdentifierSource sets the source of context identifiers merged into
// every formatted transcript.
func WithIdentifierSource(src transcript.IdentifierSource) Option {
	return func(o *options) { o.source = src }
}

// WithMetrics sets the metrics sink passed to the pipeline.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Engine is the set of recognition components for one configuration.
// It is safe for concurrent use.
type Engine struct {
	cfg        config.RecognitionConfig
	classifier *identifier.Classifier
	matcher    *match.Matcher
	formatter  *codespan.Formatter
	pipeline   *transcript.Pipeline
}

// New builds an Engine from rc. Zero fields of rc fall back to the defaults
// of [config.ApplyDefaults].
func New(rc config.RecognitionConfig, opts ...Option) *Engine {
	defaults := config.Default().Recognition
	if rc.MinLength == 0 {
		rc.MinLength = defaults.MinLength
	}
	if rc.MatchThreshold == 0 {
		rc.MatchThreshold = defaults.MatchThreshold
	}
	if rc.PhoneticThreshold == 0 {
		rc.PhoneticThreshold = defaults.PhoneticThreshold
	}
	if rc.WindowThreshold == 0 {
		rc.WindowThreshold = defaults.WindowThreshold
	}
	if rc.MaxWindowWords == 0 {
		rc.MaxWindowWords = defaults.MaxWindowWords
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{cfg: rc}
	e.classifier = o.classifier
	if e.classifier == nil {
		e.classifier = NewClassifier(rc)
	}
	e.matcher = e.MatcherWithThreshold(rc.MatchThreshold)

	// The window pass never uses the phonetic stage: a sound-alike phrase in
	// running prose is too weak a signal to rewrite it.
	e.formatter = codespan.New(
		codespan.WithWindowMatcher(match.New(match.WithThreshold(rc.WindowThreshold))),
		codespan.WithMaxWindowWords(rc.MaxWindowWords),
	)

	popts := []transcript.PipelineOption{transcript.WithFormatter(e.formatter)}
	if o.source != nil {
		popts = append(popts, transcript.WithIdentifierSource(o.source))
	}
	if o.metrics != nil {
		popts = append(popts, transcript.WithMetrics(o.metrics))
	}
	e.pipeline = transcript.NewPipeline(popts...)
	return e
}

// NewClassifier builds the classifier described by rc.
func NewClassifier(rc config.RecognitionConfig) *identifier.Classifier {
	vocab := identifier.DefaultVocabulary()
	if rc.MinLength > 0 {
		vocab = vocab.WithMinLength(rc.MinLength)
	}
	if len(rc.ExtraStopwords) > 0 {
		vocab = vocab.WithStopwords(rc.ExtraStopwords...)
	}
	return identifier.NewClassifier(identifier.WithVocabulary(vocab))
}

// Config returns the recognition settings the engine was built with, with
// defaults filled in.
func (e *Engine) Config() config.RecognitionConfig { return e.cfg }

// Classifier returns the identifier classifier.
func (e *Engine) Classifier() *identifier.Classifier { return e.classifier }

// Matcher returns the phrase matcher using the configured threshold.
func (e *Engine) Matcher() *match.Matcher { return e.matcher }

// Formatter returns the span formatter.
func (e *Engine) Formatter() *codespan.Formatter { return e.formatter }

// Pipeline returns the transcript pipeline.
func (e *Engine) Pipeline() *transcript.Pipeline { return e.pipeline }

// MatcherWithThreshold returns a matcher with the engine's phonetic settings
// and the given fuzzy threshold.
func (e *Engine) MatcherWithThreshold(threshold float64) *match.Matcher {
	opts := []match.Option{match.WithThreshold(threshold)}
	if e.cfg.PhoneticFallback {
		opts = append(opts, match.WithPhoneticFallback(e.cfg.PhoneticThreshold))
	}
	return match.New(opts...)
}
