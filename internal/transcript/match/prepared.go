package match

import (
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/codevox/internal/identifier"
)

// candidate is one identifier with its precomputed comparison data.
type candidate struct {
	id        identifier.Identifier
	forms     []string // distinct normalized spoken forms
	words     []string // normalized identifier words
	rawLen    int
	primary   string // Double Metaphone codes of the normalized key
	secondary string
}

// Prepared holds the spoken forms and normalized keys of an identifier list
// so that they are computed once instead of once per phrase. A Prepared value
// is immutable and safe for concurrent use.
type Prepared struct {
	cands    []candidate
	exact    map[string]int // normalized form → winning candidate
	maxWords int
}

// Prepare precomputes the comparison data for ids. Identifiers with an empty
// normalized key are skipped.
func Prepare(ids []identifier.Identifier) *Prepared {
	p := &Prepared{
		cands: make([]candidate, 0, len(ids)),
		exact: make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		if id.Key == "" {
			id.Key = identifier.Normalize(id.Raw)
		}
		if id.Key == "" {
			continue
		}
		if id.Words == nil {
			id.Words = identifier.SplitWords(id.Raw)
		}

		c := candidate{
			id:     id,
			rawLen: utf8.RuneCountInString(id.Raw),
		}
		seen := make(map[string]struct{}, 3)
		for _, f := range identifier.SpokenForms(id) {
			n := identifier.Normalize(string(f))
			if n == "" {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			c.forms = append(c.forms, n)
		}
		for _, w := range id.Words {
			if n := identifier.Normalize(w); n != "" {
				c.words = append(c.words, n)
			}
		}
		c.primary, c.secondary = matchr.DoubleMetaphone(id.Key)

		idx := len(p.cands)
		p.cands = append(p.cands, c)
		for _, f := range c.forms {
			if prev, ok := p.exact[f]; !ok || c.rawLen > p.cands[prev].rawLen {
				p.exact[f] = idx
			}
		}
		p.maxWords = max(p.maxWords, len(id.Words))
	}
	return p
}

// Len returns the number of prepared identifiers.
func (p *Prepared) Len() int { return len(p.cands) }

// MaxWords returns the largest word count of any prepared identifier.
func (p *Prepared) MaxWords() int { return p.maxWords }

// Identifiers returns the prepared identifiers in input order.
func (p *Prepared) Identifiers() []identifier.Identifier {
	out := make([]identifier.Identifier, len(p.cands))
	for i := range p.cands {
		out[i] = p.cands[i].id
	}
	return out
}
