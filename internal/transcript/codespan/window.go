package codespan

import (
	"unicode"
	"unicode/utf8"
)

// word is the byte range of a run of letters, digits and underscores.
type word struct {
	start, end int
}

func words(text string) []word {
	var out []word
	start := -1
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, word{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, word{start, len(text)})
	}
	return out
}

// onlySpace reports whether s is non-empty and consists of whitespace.
func onlySpace(s string) bool {
	if s == "" {
		return false
	}
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if !unicode.IsSpace(r) {
			return false
		}
		s = s[size:]
	}
	return true
}

// windowCandidates matches every run of up to maxWindowWords consecutive
// words that are separated by whitespace only against the identifier set.
func (f *Formatter) windowCandidates(text string, p *Prepared, protected regions) []candidate {
	ws := words(text)
	var out []candidate
	for i := range ws {
		// Furthest word reachable from ws[i] across whitespace gaps.
		reach := i
		for reach+1 < len(ws) && reach-i+1 < f.maxWindowWords && onlySpace(text[ws[reach].end:ws[reach+1].start]) {
			reach++
		}
		for j := reach; j >= i; j-- {
			start, end := ws[i].start, ws[j].end
			if protected.intersects(start, end) {
				continue
			}
			res, ok := f.window.MatchPrepared(text[start:end], p.matchSet)
			if !ok {
				continue
			}
			order, ok := p.order[res.Identifier.Key]
			if !ok {
				continue
			}
			out = append(out, candidate{
				Span: Span{
					Start:      start,
					End:        end,
					Identifier: p.ids[order],
					Text:       text[start:end],
					Source:     SourceWindow,
				},
				order: order,
			})
		}
	}
	return out
}
