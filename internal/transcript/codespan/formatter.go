// Package codespan rewrites text so that mentions of known code identifiers
// are replaced by their canonical spelling wrapped in backticks.
//
// Formatting runs in four steps:
//
//  1. Every identifier is expanded into its spoken forms. Identifiers are
//     considered longest raw spelling first.
//  2. The text is scanned case-insensitively for each form. Forms only match
//     at word boundaries, so "board" is never found inside "clipboard".
//     A window pass additionally matches runs of up to [DefaultMaxWindowWords]
//     whitespace-separated words against the identifier set, which resolves
//     spellings like "clear paste board".
//  3. Occurrences inside code spans, quotes, URLs or paths are discarded.
//  4. Overlaps are resolved greedily: candidates are ordered by start offset,
//     then by length (longest first), and a candidate is accepted only if it
//     does not intersect an already accepted span.
//
// The rewrite is idempotent: accepted spans become code spans and are
// protected on the next run. Text outside accepted spans is copied byte for
// byte.
package codespan

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/codevox/internal/identifier"
	"github.com/MrWong99/codevox/internal/transcript/match"
)

// DefaultMaxWindowWords is the longest word run the window pass considers.
const DefaultMaxWindowWords = 6

// Option is a functional option for configuring a [Formatter].
type Option func(*Formatter)

// WithWindowMatcher sets the matcher used by the window pass. Its threshold
// decides which word runs are accepted. The default matcher only accepts
// runs whose normalized text equals a normalized spoken form.
func WithWindowMatcher(m *match.Matcher) Option {
	return func(f *Formatter) {
		if m != nil {
			f.window = m
		}
	}
}

// WithMaxWindowWords sets the longest word run the window pass considers.
// Zero or a negative value disables the window pass.
func WithMaxWindowWords(n int) Option {
	return func(f *Formatter) {
		f.maxWindowWords = max(n, 0)
	}
}

// Formatter locates identifier mentions in text and rewrites them. It is
// read-only after construction and safe for concurrent use.
type Formatter struct {
	window         *match.Matcher
	maxWindowWords int
}

// New returns a [Formatter] configured with opts.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		window:         match.New(match.WithThreshold(1)),
		maxWindowWords: DefaultMaxWindowWords,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Format returns text with every mention of an identifier in raws replaced
// by the identifier's backtick-quoted spelling.
func (f *Formatter) Format(text string, raws []string) string {
	return f.Apply(text, identifier.FromStrings(raws)).Text
}

// Apply rewrites text for ids and reports the accepted spans. Empty text or
// an empty identifier list returns text unchanged.
func (f *Formatter) Apply(text string, ids []identifier.Identifier) Result {
	if text == "" || len(ids) == 0 {
		return Result{Text: text}
	}
	return f.ApplyPrepared(text, f.Prepare(ids))
}

// ApplyPrepared is [Formatter.Apply] for an identifier set prepared with
// [Formatter.Prepare].
func (f *Formatter) ApplyPrepared(text string, p *Prepared) Result {
	if text == "" || p == nil || len(p.ids) == 0 {
		return Result{Text: text}
	}

	protected := protectedRegions(text)
	cands := p.literalCandidates(text, protected)
	if f.maxWindowWords > 0 {
		cands = append(cands, f.windowCandidates(text, p, protected)...)
	}
	if len(cands) == 0 {
		return Result{Text: text}
	}

	slices.SortStableFunc(cands, compareCandidates)

	spans := make([]Span, 0, len(cands))
	lastEnd := 0
	for _, c := range cands {
		if c.Start < lastEnd || !keepsQuotes(text, c.Start, c.End) {
			continue
		}
		spans = append(spans, c.Span)
		lastEnd = c.End
	}
	return Result{Text: rewrite(text, spans), Spans: spans}
}

// candidate is a span together with the rank of its identifier.
type candidate struct {
	Span
	order int
}

func compareCandidates(a, b candidate) int {
	switch {
	case a.Start != b.Start:
		return a.Start - b.Start
	case a.Len() != b.Len():
		return b.Len() - a.Len()
	case a.Source != b.Source:
		return int(a.Source) - int(b.Source)
	}
	return a.order - b.order
}

// rewrite replaces each span of text with its identifier's raw spelling in
// backticks. spans must be sorted and non-overlapping.
func rewrite(text string, spans []Span) string {
	var b strings.Builder
	b.Grow(len(text) + 2*len(spans))
	prev := 0
	for _, s := range spans {
		b.WriteString(text[prev:s.Start])
		b.WriteByte('`')
		b.WriteString(s.Identifier.Raw)
		b.WriteByte('`')
		prev = s.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

// Prepared is an identifier set compiled for repeated formatting. It is
// immutable and safe for concurrent use.
type Prepared struct {
	ids      []identifier.Identifier
	patterns [][]formPattern
	order    map[string]int // normalized key → index in ids
	matchSet *match.Prepared
}

// Prepare deduplicates ids by normalized key (first occurrence wins), orders
// them by raw length, longest first, and compiles their spoken forms.
// Identifiers whose spelling contains a backtick are skipped.
func (f *Formatter) Prepare(ids []identifier.Identifier) *Prepared {
	clean := make([]identifier.Identifier, 0, len(ids))
	for _, id := range ids {
		if id.Raw == "" || strings.ContainsRune(id.Raw, '`') {
			continue
		}
		if id.Key == "" || id.Words == nil {
			id = identifier.New(id.Raw)
		}
		clean = append(clean, id)
	}
	clean = identifier.Dedupe(clean)
	slices.SortStableFunc(clean, func(a, b identifier.Identifier) int {
		return utf8.RuneCountInString(b.Raw) - utf8.RuneCountInString(a.Raw)
	})

	p := &Prepared{
		ids:      clean,
		patterns: make([][]formPattern, len(clean)),
		order:    make(map[string]int, len(clean)),
		matchSet: match.Prepare(clean),
	}
	for i, id := range clean {
		p.order[id.Key] = i
		seen := make(map[string]struct{}, 3)
		for _, form := range identifier.SpokenForms(id) {
			lower := strings.ToLower(string(form))
			if _, dup := seen[lower]; dup {
				continue
			}
			seen[lower] = struct{}{}
			if fp, ok := compileForm(string(form)); ok {
				p.patterns[i] = append(p.patterns[i], fp)
			}
		}
	}
	return p
}

// Len returns the number of prepared identifiers.
func (p *Prepared) Len() int { return len(p.ids) }

// Identifiers returns the prepared identifiers in processing order.
func (p *Prepared) Identifiers() []identifier.Identifier {
	return slices.Clone(p.ids)
}

func (p *Prepared) literalCandidates(text string, protected regions) []candidate {
	var out []candidate
	for i, id := range p.ids {
		for _, fp := range p.patterns[i] {
			for _, loc := range fp.findAll(text) {
				start, end := loc[0], loc[1]
				if protected.intersects(start, end) {
					continue
				}
				out = append(out, candidate{
					Span: Span{
						Start:      start,
						End:        end,
						Identifier: id,
						Text:       text[start:end],
						Source:     SourceLiteral,
					},
					order: i,
				})
			}
		}
	}
	return out
}

// formPattern is a compiled spoken form. head and tail tell whether the
// form starts or ends with a word character, in which case a match must not
// continue a longer word on that side.
type formPattern struct {
	re         *regexp.Regexp
	head, tail bool
}

// compileForm compiles a case-insensitive pattern for a spoken form. Words
// of the form may be separated by any run of whitespace.
func compileForm(form string) (formPattern, bool) {
	words := strings.Fields(form)
	if len(words) == 0 {
		return formPattern{}, false
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	first, _ := utf8.DecodeRuneInString(form)
	last, _ := utf8.DecodeLastRuneInString(strings.TrimRightFunc(form, unicode.IsSpace))
	return formPattern{
		re:   regexp.MustCompile("(?i)" + strings.Join(quoted, `\s+`)),
		head: isWordRune(first),
		tail: isWordRune(last),
	}, true
}

// findAll returns the byte ranges of the matches of fp in text that sit on
// word boundaries. A match rejected for continuing a word does not hide a
// later match starting inside it.
func (fp formPattern) findAll(text string) [][2]int {
	var out [][2]int
	for off := 0; off < len(text); {
		loc := fp.re.FindStringIndex(text[off:])
		if loc == nil {
			break
		}
		start, end := off+loc[0], off+loc[1]
		if start == end {
			break
		}
		if fp.bounded(text, start, end) {
			out = append(out, [2]int{start, end})
			off = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		off = start + size
	}
	return out
}

func (fp formPattern) bounded(text string, start, end int) bool {
	if fp.head && start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if fp.tail && end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

// isWordRune reports whether r belongs to a word: a letter, digit or
// underscore in any script.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
