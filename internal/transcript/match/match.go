// Package match scores how well a spoken phrase corresponds to a known code
// identifier.
//
// Every candidate identifier is expanded into its spoken forms
// ([identifier.SpokenForms]) and each form is compared to the phrase after
// both sides have been normalized ([identifier.Normalize]):
//
//  1. Exact: the normalized phrase equals a normalized form. Confidence 1.0.
//
//  2. Fuzzy: a longest-common-subsequence ratio
//     2·LCS(a, b) / (len(a) + len(b)) plus bonuses for a shared prefix
//     (+0.2), equal length (+0.1) and an in-order word alignment between the
//     phrase and the identifier (+0.15), clamped to [0, 1]. The best score
//     across all identifiers is reported when it reaches the threshold.
//
//  3. Phonetic (optional, see [WithPhoneticFallback]): when nothing reaches
//     the fuzzy threshold, identifiers whose Double Metaphone code overlaps the
//     phrase's code are ranked by Jaro-Winkler similarity.
//
// When several identifiers reach the same top confidence, the one with the
// longer raw spelling wins (it is more specific), then list order.
package match

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"github.com/hbollon/go-edlib"

	"github.com/MrWong99/codevox/internal/identifier"
)

const (
	// DefaultThreshold is the minimum fuzzy confidence for a match.
	DefaultThreshold = 0.6

	prefixBonus    = 0.2
	lengthBonus    = 0.1
	alignmentBonus = 0.15
)

// Kind describes how a [Result] was obtained.
type Kind uint8

const (
	KindExact Kind = iota
	KindFuzzy
	KindPhonetic
)

// String returns "exact", "fuzzy" or "phonetic".
func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindFuzzy:
		return "fuzzy"
	case KindPhonetic:
		return "phonetic"
	}
	return "unknown"
}

// MarshalText implements [encoding.TextMarshaler].
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Result is the outcome of a successful match.
type Result struct {
	// Identifier is the matched identifier as supplied by the caller.
	Identifier identifier.Identifier

	// Confidence is in [0, 1]; exact matches always report 1.0.
	Confidence float64

	// Kind tells which stage produced the match.
	Kind Kind
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the minimum confidence a fuzzy match must reach.
// Values outside [0, 1] are clamped. Default: 0.6.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = clamp(threshold)
	}
}

// WithPhoneticFallback enables the Double Metaphone stage. It only runs when
// no fuzzy match reaches the fuzzy threshold, and accepts candidates whose
// Jaro-Winkler similarity is at least threshold. Disabled by default.
func WithPhoneticFallback(threshold float64) Option {
	return func(m *Matcher) {
		m.phonetic = true
		m.phoneticThreshold = clamp(threshold)
	}
}

// Matcher matches spoken phrases to identifiers. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	threshold         float64
	phonetic          bool
	phoneticThreshold float64
}

// New returns a [Matcher] configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{threshold: DefaultThreshold}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Threshold returns the fuzzy acceptance threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Match returns the best match for phrase among ids, or false when no
// identifier reaches the threshold. An empty phrase or id list never
// matches.
func (m *Matcher) Match(phrase string, ids []identifier.Identifier) (Result, bool) {
	return m.MatchPrepared(phrase, Prepare(ids))
}

// MatchStrings is [Matcher.Match] for a list of raw identifier spellings.
func (m *Matcher) MatchStrings(phrase string, raws []string) (Result, bool) {
	return m.Match(phrase, identifier.FromStrings(raws))
}

// MatchPrepared is the fast path of [Matcher.Match] for callers that test
// many phrases against the same identifier list.
func (m *Matcher) MatchPrepared(phrase string, p *Prepared) (Result, bool) {
	if p == nil || len(p.cands) == 0 {
		return Result{}, false
	}
	query := identifier.Normalize(phrase)
	if query == "" {
		return Result{}, false
	}

	if i, ok := p.exact[query]; ok {
		return Result{Identifier: p.cands[i].id, Confidence: 1, Kind: KindExact}, true
	}
	if m.threshold >= 1 && !m.phonetic {
		return Result{}, false
	}

	words := phraseWords(phrase)
	best, bestConf := -1, 0.0
	for i := range p.cands {
		conf := fuzzyScore(query, words, &p.cands[i])
		if best < 0 || better(conf, &p.cands[i], bestConf, &p.cands[best]) {
			best, bestConf = i, conf
		}
	}
	if best >= 0 && bestConf >= m.threshold {
		return Result{Identifier: p.cands[best].id, Confidence: bestConf, Kind: KindFuzzy}, true
	}

	if m.phonetic {
		return m.matchPhonetic(query, p)
	}
	return Result{}, false
}

// matchPhonetic ranks the candidates sharing a Double Metaphone code with
// query by Jaro-Winkler similarity.
func (m *Matcher) matchPhonetic(query string, p *Prepared) (Result, bool) {
	qp, qs := matchr.DoubleMetaphone(query)
	best, bestConf := -1, 0.0
	for i := range p.cands {
		c := &p.cands[i]
		if !codesOverlap(qp, qs, c.primary, c.secondary) {
			continue
		}
		conf := matchr.JaroWinkler(query, c.id.Key, false)
		if conf < m.phoneticThreshold {
			continue
		}
		if best < 0 || better(conf, c, bestConf, &p.cands[best]) {
			best, bestConf = i, conf
		}
	}
	if best < 0 {
		return Result{}, false
	}
	return Result{Identifier: p.cands[best].id, Confidence: clamp(bestConf), Kind: KindPhonetic}, true
}

// fuzzyScore returns the best bonus-adjusted LCS ratio of query against the
// candidate's normalized spoken forms.
func fuzzyScore(query string, words []string, c *candidate) float64 {
	qLen := utf8.RuneCountInString(query)
	aligned := len(words) > 1 && wordsAlign(words, c.words)

	best := 0.0
	for _, f := range c.forms {
		fLen := utf8.RuneCountInString(f)
		score := 2 * float64(edlib.LCS(query, f)) / float64(qLen+fLen)
		if strings.HasPrefix(f, query) || strings.HasPrefix(query, f) {
			score += prefixBonus
		}
		if qLen == fLen {
			score += lengthBonus
		}
		if aligned {
			score += alignmentBonus
		}
		if score = clamp(score); score > best {
			best = score
		}
	}
	return best
}

// wordsAlign reports whether every phrase word equals a distinct identifier
// word, in order.
func wordsAlign(phrase, ident []string) bool {
	j := 0
	for _, w := range phrase {
		for j < len(ident) && ident[j] != w {
			j++
		}
		if j == len(ident) {
			return false
		}
		j++
	}
	return true
}

func phraseWords(phrase string) []string {
	fields := strings.Fields(phrase)
	out := fields[:0]
	for _, f := range fields {
		if n := identifier.Normalize(f); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// better reports whether conf for c beats bestConf for best.
func better(conf float64, c *candidate, bestConf float64, best *candidate) bool {
	if conf != bestConf {
		return conf > bestConf
	}
	return c.rawLen > best.rawLen
}

func codesOverlap(ap, as, bp, bs string) bool {
	for _, a := range []string{ap, as} {
		if a == "" {
			continue
		}
		if a == bp || a == bs {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}
