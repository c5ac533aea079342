// Package transcript turns raw speech-to-text output into text where code
// identifiers are written the way they appear in source.
//
// Dictated programming talk is full of identifiers spoken as plain words:
// "call clear pasteboard then reset user data". The [Pipeline] resolves each
// mention against a list of known identifiers and rewrites it to its
// canonical spelling in backticks ("call `clearPasteboard` then ..."), using
// the span formatter in [codespan]. Identifiers come from the caller, from
// an optional [IdentifierSource] (for example the code currently on screen),
// or both.
//
// Each [Replacement] records what was rewritten and how it was found, so
// callers can audit, display, or selectively roll back changes.
package transcript

import (
	"context"

	"github.com/MrWong99/codevox/internal/identifier"
	"github.com/MrWong99/codevox/pkg/types"
)

// Replacement captures a single identifier substitution made by the pipeline.
type Replacement struct {
	// Start and End are the byte offsets of the replaced fragment in the
	// original transcript text.
	Start int
	End   int

	// Original is the fragment as produced by the recogniser.
	Original string

	// Identifier is the canonical spelling that replaced it (without the
	// surrounding backticks).
	Identifier string

	// Source describes which formatter pass found the fragment.
	// Well-known values:
	//   "literal": a spoken form of the identifier occurred verbatim.
	//   "window":  a run of words matched the identifier as a whole.
	Source string
}

// FormattedTranscript is the output of a [Pipeline.Format] call.
type FormattedTranscript struct {
	// Original is the raw [types.Transcript] as received.
	Original types.Transcript

	// Text is the transcript text with every accepted identifier mention
	// rewritten.
	Text string

	// Replacements lists the substitutions in text order. An empty (non-nil)
	// slice means nothing was rewritten.
	Replacements []Replacement

	// Uncertain lists the words the recogniser reported with low confidence
	// that were not covered by a replacement. Empty when the transcript has
	// no per-word detail.
	Uncertain []string

	// Identifiers is the number of distinct identifiers that were considered.
	Identifiers int
}

// IdentifierSource supplies the identifiers visible in the user's current
// code context. Implementations must be safe for concurrent use.
type IdentifierSource interface {
	// Identifiers returns the identifiers of the current context, most
	// significant first. An error means the context could not be captured;
	// the source may still return fallback identifiers alongside it.
	Identifiers(ctx context.Context) ([]identifier.Identifier, error)
}

// IdentifierSourceFunc adapts a function to [IdentifierSource].
type IdentifierSourceFunc func(ctx context.Context) ([]identifier.Identifier, error)

// Identifiers calls f(ctx).
func (f IdentifierSourceFunc) Identifiers(ctx context.Context) ([]identifier.Identifier, error) {
	return f(ctx)
}
