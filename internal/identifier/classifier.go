package identifier

import (
	"cmp"
	"slices"
	"strings"
)

// ClassifierOption is a functional option for configuring a [Classifier].
type ClassifierOption func(*Classifier)

// WithVocabulary replaces the default stopword set and minimum length.
func WithVocabulary(v Vocabulary) ClassifierOption {
	return func(c *Classifier) {
		if v.stopwords != nil {
			c.vocab = v
		}
	}
}

// WithWeights replaces the default scoring constants.
func WithWeights(w Weights) ClassifierOption {
	return func(c *Classifier) {
		c.weights = w
	}
}

// Classifier discovers identifier-like tokens in free text. It is read-only
// after construction and safe for concurrent use; classifiers with different
// vocabularies can run side by side.
type Classifier struct {
	vocab   Vocabulary
	weights Weights
}

// NewClassifier returns a [Classifier] using [DefaultVocabulary] and
// [DefaultWeights] unless overridden by opts.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		vocab:   DefaultVocabulary(),
		weights: DefaultWeights(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Vocabulary returns the classifier's filtering configuration.
func (c *Classifier) Vocabulary() Vocabulary { return c.vocab }

// Convention reports the naming convention of raw.
func (c *Classifier) Convention(raw string) Convention {
	return DetectConvention(raw)
}

// Identifier builds an [Identifier] for raw using this classifier's weights.
func (c *Classifier) Identifier(raw string) Identifier {
	return build(raw, 0, c.weights)
}

// Classify returns the identifiers found in text, most significant first.
//
// Candidates are tokens following a recognised naming convention, tokens
// used as a function call ("name(") and namespace-access chains ("a.b",
// "a::b"). Candidates that are too short, are stopwords or contain no letter
// are dropped. Results are deduplicated by normalized key; the first
// occurrence's spelling is kept and the signals of later occurrences are
// merged into it. Equal scores keep first-seen order.
//
// Classify never fails; text without candidates yields an empty slice.
func (c *Classifier) Classify(text string) []Identifier {
	out := []Identifier{}
	if text == "" {
		return out
	}

	type entry struct {
		raw     string
		signals Signal
	}
	var entries []entry
	index := make(map[string]int)

	for _, tk := range scanTokens(text) {
		conv := DetectConvention(tk.raw)
		if conv == Unknown && tk.signals == 0 {
			continue
		}
		if !c.vocab.accepts(tk.raw, conv) {
			continue
		}
		key := Normalize(tk.raw)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			entries[i].signals |= tk.signals
			continue
		}
		index[key] = len(entries)
		entries = append(entries, entry{raw: tk.raw, signals: tk.signals})
	}

	for _, e := range entries {
		out = append(out, build(e.raw, e.signals, c.weights))
	}
	slices.SortStableFunc(out, func(a, b Identifier) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// token is a raw candidate produced by scanTokens.
type token struct {
	raw     string
	signals Signal
}

// scanTokens splits text into identifier-shaped tokens in order of
// appearance. A namespace chain is emitted after its parts.
func scanTokens(text string) []token {
	var out []token
	i := 0
	for i < len(text) {
		start, end := nextWord(text, i)
		if start < 0 {
			break
		}

		chainStart := start
		parts := 1
		out = append(out, token{raw: text[start:end]})
		last := len(out) - 1

		// Extend over ".part" and "::part" as long as the chain continues.
		for {
			sepLen := namespaceSep(text, end)
			if sepLen == 0 || end+sepLen >= len(text) || !isWordStart(text[end+sepLen]) {
				break
			}
			s, e := wordAt(text, end+sepLen)
			out = append(out, token{raw: text[s:e]})
			last = len(out) - 1
			end = e
			parts++
		}

		call := isCall(text, end)
		if call {
			out[last].signals |= SignalFunctionCall
		}
		if parts > 1 && chainPartsLongEnough(text[chainStart:end]) {
			sig := SignalNamespace
			if call {
				sig |= SignalFunctionCall
			}
			out = append(out, token{raw: text[chainStart:end], signals: sig})
		}
		i = end
	}
	return out
}

// nextWord finds the next word starting at or after i. Runs that begin with a
// digit (e.g. "3rd") are skipped entirely; leading hyphens are not part of a
// word.
func nextWord(text string, i int) (int, int) {
	for i < len(text) {
		b := text[i]
		switch {
		case isWordStart(b) && (i == 0 || !isWordByte(text[i-1]) || text[i-1] == '-'):
			return wordAt(text, i)
		case isDigitASCII(b):
			// A run that starts with a digit is not an identifier.
			for i < len(text) && isWordByte(text[i]) && text[i] != '-' {
				i++
			}
		default:
			i++
		}
	}
	return -1, -1
}

// wordAt returns the bounds of the word starting at i. Trailing hyphens are
// trimmed so "well-" yields "well".
func wordAt(text string, i int) (int, int) {
	end := i
	for end < len(text) && isWordByte(text[end]) {
		end++
	}
	trimmed := strings.TrimRight(text[i:end], "-")
	return i, i + len(trimmed)
}

func namespaceSep(text string, i int) int {
	switch {
	case strings.HasPrefix(text[i:], "::"):
		return 2
	case strings.HasPrefix(text[i:], "."):
		return 1
	}
	return 0
}

func isCall(text string, i int) bool {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return i < len(text) && text[i] == '('
}

// chainPartsLongEnough rejects abbreviations such as "e.g" and "i.e".
func chainPartsLongEnough(chain string) bool {
	for _, p := range strings.FieldsFunc(chain, func(r rune) bool { return r == '.' || r == ':' }) {
		if len(p) < 2 {
			return false
		}
	}
	return true
}

func isWordStart(b byte) bool {
	return isLowerASCII(b) || isUpperASCII(b) || b == '_'
}

func isWordByte(b byte) bool {
	return isWordStart(b) || isDigitASCII(b) || b == '-'
}
