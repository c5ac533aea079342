// Package identifier recognises source-code identifiers in free text and
// derives the natural-language renderings a speaker would use for them.
//
// The package has three entry points:
//
//   - [New] builds an [Identifier] from a known raw spelling (e.g. an entry of
//     a caller-supplied identifier list). No text scanning is involved.
//   - [Classifier.Classify] discovers identifier-like tokens in a block of
//     text (OCR output, an open source file, ...) and ranks them by how
//     identifier-like they look.
//   - [SpokenForms] expands an [Identifier] into the phrases a speech-to-text
//     engine is likely to produce for it ("clearPasteboard" → "clear
//     pasteboard").
//
// Everything in this package is pure: values are immutable after construction
// and all functions are safe for concurrent use.
package identifier

import (
	"strings"
	"unicode"
)

// Signal is a bit set of contextual hints observed next to a token. Signals
// raise an identifier's significance but never define a naming convention of
// their own.
type Signal uint8

const (
	// SignalFunctionCall marks a token that was directly followed by "(".
	SignalFunctionCall Signal = 1 << iota

	// SignalNamespace marks a namespace-access chain such as "os.path" or
	// "std::vector".
	SignalNamespace
)

// Has reports whether every bit of flag is set in s.
func (s Signal) Has(flag Signal) bool {
	return s&flag == flag
}

// Identifier is an immutable description of a single code-level name.
//
// Words is shared between copies of the value and must not be modified.
type Identifier struct {
	// Raw is the canonical spelling, e.g. "clearPasteboard".
	Raw string

	// Key is the normalized comparison form of Raw (see [Normalize]).
	Key string

	// Convention is the naming convention Raw follows.
	Convention Convention

	// Words are the lowercase component words of Raw in order.
	Words []string

	// Score is the significance score. Higher values are more
	// identifier-like. Only meaningful for ranking within one result set.
	Score float64

	// Signals records the contextual hints observed for this identifier.
	Signals Signal
}

// New builds an [Identifier] for a known raw spelling. It is the entry point
// for callers that already hold a list of identifiers and do not need
// classification. The score is computed with [DefaultWeights].
func New(raw string) Identifier {
	return build(raw, 0, DefaultWeights())
}

// FromStrings converts a list of raw spellings into identifiers, dropping
// blank entries and later duplicates of the same normalized key. The first
// occurrence's spelling wins.
func FromStrings(raws []string) []Identifier {
	out := make([]Identifier, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id := New(raw)
		if id.Key == "" {
			continue
		}
		if _, dup := seen[id.Key]; dup {
			continue
		}
		seen[id.Key] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Dedupe returns ids without later entries whose normalized key was already
// seen. The input slice is not modified.
func Dedupe(ids []Identifier) []Identifier {
	out := make([]Identifier, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		key := id.Key
		if key == "" {
			key = Normalize(id.Raw)
		}
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Normalize returns the comparison key of s: every letter lowercased, every
// character that is neither a letter nor a digit removed. It is idempotent,
// case-insensitive and separator-insensitive, so "clearPasteboard",
// "clear_pasteboard" and "Clear Pasteboard" share one key.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func build(raw string, signals Signal, w Weights) Identifier {
	conv := DetectConvention(raw)
	if strings.Contains(raw, ".") || strings.Contains(raw, "::") {
		signals |= SignalNamespace
	}
	return Identifier{
		Raw:        raw,
		Key:        Normalize(raw),
		Convention: conv,
		Words:      SplitWords(raw),
		Score:      w.score(raw, conv, signals),
		Signals:    signals,
	}
}
