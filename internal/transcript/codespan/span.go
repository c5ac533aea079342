package codespan

import "github.com/MrWong99/codevox/internal/identifier"

// SpanSource tells which pass of the [Formatter] found a span.
type SpanSource uint8

const (
	// SourceLiteral spans were found by scanning for a spoken form.
	SourceLiteral SpanSource = iota

	// SourceWindow spans were found by matching a run of words against the
	// identifier set.
	SourceWindow
)

// String returns "literal" or "window".
func (s SpanSource) String() string {
	switch s {
	case SourceLiteral:
		return "literal"
	case SourceWindow:
		return "window"
	}
	return "unknown"
}

// MarshalText implements [encoding.TextMarshaler].
func (s SpanSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Span is a half-open byte range [Start, End) of the input text that will be
// replaced by the backtick-quoted raw spelling of Identifier.
type Span struct {
	Start int
	End   int

	// Identifier is the identifier the span resolves to.
	Identifier identifier.Identifier

	// Text is the fragment of the input that was found.
	Text string

	Source SpanSource
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Result is the outcome of [Formatter.Apply].
type Result struct {
	// Text is the rewritten text.
	Text string

	// Spans are the accepted replacements in ascending offset order. Offsets
	// refer to the input text, not to Text.
	Spans []Span
}
