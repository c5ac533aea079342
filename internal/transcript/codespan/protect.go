package codespan

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// region is a half-open byte range of the input that must not be rewritten.
type region struct {
	start, end int
}

// regions is a list of protected ranges sorted by start.
type regions []region

// intersects reports whether [start, end) shares a byte with any region.
func (rs regions) intersects(start, end int) bool {
	// First region that ends after start.
	i, _ := slices.BinarySearchFunc(rs, start, func(r region, off int) int {
		if r.end <= off {
			return -1
		}
		return 1
	})
	for ; i < len(rs) && rs[i].start < end; i++ {
		if rs[i].end > start {
			return true
		}
	}
	return false
}

// protectedRegions returns the parts of text that already carry formatting or
// are literal references: backtick code, quoted strings, URLs and paths.
// Regions include their delimiters.
func protectedRegions(text string) regions {
	rs := quotedRegions(text)
	rs = append(rs, pathRegions(text)...)
	slices.SortFunc(rs, func(a, b region) int { return a.start - b.start })

	// Merge so that the region list stays sorted by end as well.
	merged := rs[:0]
	for _, r := range rs {
		if n := len(merged); n > 0 && r.start <= merged[n-1].end {
			merged[n-1].end = max(merged[n-1].end, r.end)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// quotedRegions scans text left to right for backtick, double-quote and
// single-quote regions. A run of n backticks is closed by the next run of
// exactly n backticks. An unclosed region extends to the end of text.
func quotedRegions(text string) regions {
	var rs regions
	for i := 0; i < len(text); {
		switch text[i] {
		case '`':
			n := backtickRun(text, i)
			end := closingBackticks(text, i+n, n)
			rs = append(rs, region{i, end})
			i = end
		case '"':
			end := len(text)
			if j := strings.IndexByte(text[i+1:], '"'); j >= 0 {
				end = i + 1 + j + 1
			}
			rs = append(rs, region{i, end})
			i = end
		case '\'':
			if isApostrophe(text, i) {
				i++
				continue
			}
			end := closingQuote(text, i+1)
			rs = append(rs, region{i, end})
			i = end
		default:
			i++
		}
	}
	return rs
}

func backtickRun(text string, i int) int {
	n := 0
	for i+n < len(text) && text[i+n] == '`' {
		n++
	}
	return n
}

// closingBackticks returns the end offset of the first run of exactly n
// backticks at or after i, or len(text).
func closingBackticks(text string, i, n int) int {
	for i < len(text) {
		if text[i] != '`' {
			i++
			continue
		}
		m := backtickRun(text, i)
		if m == n {
			return i + m
		}
		i += m
	}
	return len(text)
}

// closingQuote returns the offset just past the next single quote at or after
// i that is not an apostrophe, or len(text).
func closingQuote(text string, i int) int {
	for ; i < len(text); i++ {
		if text[i] == '\'' && !isApostrophe(text, i) {
			return i + 1
		}
	}
	return len(text)
}

// isApostrophe reports whether the single quote at text[i] is part of a word
// ("don't", "user's") rather than a quote delimiter. A backtick counts as a
// word character on either side so that formatting "user's" into
// "`user`'s" keeps the quote an apostrophe.
func isApostrophe(text string, i int) bool {
	if i == 0 || i+1 >= len(text) {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:i])
	next, _ := utf8.DecodeRuneInString(text[i+1:])
	return (prev == '`' || apostropheBefore(prev)) && (next == '`' || apostropheAfter(next))
}

// keepsQuotes reports whether rewriting text[start:end] leaves every
// adjacent single quote classified as before. The rewrite puts a backtick
// next to the quote, and a backtick always counts as a word character, so
// the span edge touching the quote must count as one too.
func keepsQuotes(text string, start, end int) bool {
	if end < len(text) && text[end] == '\'' {
		if r, _ := utf8.DecodeLastRuneInString(text[start:end]); !apostropheBefore(r) {
			return false
		}
	}
	if start > 0 && text[start-1] == '\'' {
		if r, _ := utf8.DecodeRuneInString(text[start:end]); !apostropheAfter(r) {
			return false
		}
	}
	return true
}

func apostropheBefore(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
func apostropheAfter(r rune) bool  { return unicode.IsLetter(r) }

// pathRegions returns the whitespace-delimited runs of text that look like a
// URL or a file system path.
func pathRegions(text string) regions {
	var rs regions
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 && isPathLike(text[start:i]) {
				rs = append(rs, region{start, i})
			}
			start = -1
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 && isPathLike(text[start:]) {
		rs = append(rs, region{start, len(text)})
	}
	return rs
}

var pathPrefixes = []string{"/", "./", "../", "~/"}

func isPathLike(run string) bool {
	if strings.Contains(run, "://") {
		return true
	}
	if len(run) >= 3 && isASCIILetter(run[0]) && run[1] == ':' && (run[2] == '\\' || run[2] == '/') {
		return true
	}
	for _, p := range pathPrefixes {
		if strings.HasPrefix(run, p) {
			return true
		}
	}
	return strings.Count(run, "/")+strings.Count(run, `\`) >= 2
}

func isASCIILetter(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
