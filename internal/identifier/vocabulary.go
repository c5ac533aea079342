package identifier

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinLength is the shortest token length the classifier keeps, apart
// from single uppercase letters.
const DefaultMinLength = 2

// defaultStopwords are common English words and bare language keywords that
// are never reported as identifiers on their own.
var defaultStopwords = []string{
	// articles, prepositions, conjunctions
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "when",
	"at", "by", "for", "from", "in", "into", "of", "on", "to", "with",
	// common verbs
	"is", "are", "was", "were", "be", "been", "being", "have", "has",
	"had", "do", "does", "did", "will", "would", "should", "could",
	"can", "may", "might", "must", "get", "set", "let", "make",
	// pronouns
	"i", "you", "he", "she", "it", "we", "they", "them", "their",
	"this", "that", "these", "those", "my", "your", "his", "her",
	// adjectives and adverbs
	"not", "no", "yes", "all", "some", "any", "each", "every",
	"more", "less", "most", "least", "very", "too", "so", "just",
	// non-code nouns
	"time", "year", "day", "way", "man", "thing", "woman", "life",
	"child", "world", "school", "state", "family", "student", "group",
	// keywords
	"var", "const", "function", "func", "class", "return", "import",
	"export", "as", "new", "super", "extends", "implements", "interface",
	"type", "enum", "public", "private", "protected", "static", "async",
	"await", "try", "catch", "finally", "throw", "throws", "void", "null",
	"nil", "undefined", "true", "false", "break", "continue", "while",
	"switch", "case", "default", "def", "elif", "except", "pass", "raise",
	"yield", "lambda", "self", "package", "struct", "range", "defer",
	// short words that are rarely identifiers
	"ok", "go", "up", "down", "out", "off", "end", "run", "put",
}

// Vocabulary is the immutable filtering configuration of a [Classifier]. A
// Vocabulary is never modified after construction, so one value can be shared
// by any number of classifiers.
type Vocabulary struct {
	minLength int
	stopwords map[string]struct{}
}

// DefaultVocabulary returns the built-in stopword set with
// [DefaultMinLength].
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(DefaultMinLength, defaultStopwords...)
}

// NewVocabulary builds a Vocabulary from an explicit stopword list.
// minLength values below 1 are raised to 1.
func NewVocabulary(minLength int, stopwords ...string) Vocabulary {
	if minLength < 1 {
		minLength = 1
	}
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}
	return Vocabulary{minLength: minLength, stopwords: set}
}

// WithStopwords returns a copy of v with extra stopwords added.
func (v Vocabulary) WithStopwords(extra ...string) Vocabulary {
	words := make([]string, 0, len(v.stopwords)+len(extra))
	for w := range v.stopwords {
		words = append(words, w)
	}
	return NewVocabulary(v.minLength, append(words, extra...)...)
}

// WithMinLength returns a copy of v using minLength.
func (v Vocabulary) WithMinLength(minLength int) Vocabulary {
	if minLength < 1 {
		minLength = 1
	}
	return Vocabulary{minLength: minLength, stopwords: v.stopwords}
}

// MinLength returns the minimum token length.
func (v Vocabulary) MinLength() int { return v.minLength }

// IsStopword reports whether word is in the stopword set (case-insensitive).
func (v Vocabulary) IsStopword(word string) bool {
	_, ok := v.stopwords[strings.ToLower(word)]
	return ok
}

// accepts applies the length, stopword and letter filters.
func (v Vocabulary) accepts(raw string, conv Convention) bool {
	if conv != SingleUppercase && utf8.RuneCountInString(raw) < v.minLength {
		return false
	}
	if v.IsStopword(raw) {
		return false
	}
	return strings.ContainsFunc(raw, unicode.IsLetter)
}

// Weights are the immutable scoring constants of a [Classifier].
type Weights struct {
	// Length is the contribution of a token at or beyond SaturationLength
	// runes; shorter tokens contribute proportionally less.
	Length float64

	// SaturationLength is the rune count at which the length contribution
	// stops growing.
	SaturationLength int

	// MixedCase is added when the token contains upper- and lowercase letters.
	MixedCase float64

	// Separator is added when the token contains "_" or "-".
	Separator float64

	// Constant is added for SCREAMING_SNAKE_CASE tokens.
	Constant float64

	// Namespace is added for namespace-access chains.
	Namespace float64

	// FunctionCall is added for tokens directly followed by "(".
	FunctionCall float64
}

// DefaultWeights returns the built-in scoring constants.
func DefaultWeights() Weights {
	return Weights{
		Length:           10,
		SaturationLength: 20,
		MixedCase:        5,
		Separator:        3,
		Constant:         7,
		Namespace:        8,
		FunctionCall:     2,
	}
}

func (w Weights) score(raw string, conv Convention, signals Signal) float64 {
	sat := w.SaturationLength
	if sat <= 0 {
		sat = 1
	}
	n := utf8.RuneCountInString(raw)
	score := min(float64(n)/float64(sat), 1) * w.Length

	if strings.ContainsFunc(raw, unicode.IsUpper) && strings.ContainsFunc(raw, unicode.IsLower) {
		score += w.MixedCase
	}
	if strings.ContainsAny(raw, "_-") {
		score += w.Separator
	}
	if conv == ScreamingSnakeCase {
		score += w.Constant
	}
	if signals.Has(SignalNamespace) {
		score += w.Namespace
	}
	if signals.Has(SignalFunctionCall) {
		score += w.FunctionCall
	}
	return score
}
