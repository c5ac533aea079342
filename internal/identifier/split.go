package identifier

import (
	"strings"
	"unicode"
)

// SplitWords splits raw into its lowercase component words.
//
// Boundaries are explicit separators (any rune that is neither a letter nor
// a digit, e.g. "_", "-", ".", "::"), lower→upper transitions ("clearPaste"),
// the end of an acronym that is followed by a word ("HTTPServer" → "http",
// "server") and letter↔digit transitions ("base64Encode" → "base", "64",
// "encode").
//
//	SplitWords("getUserByID")    // ["get", "user", "by", "id"]
//	SplitWords("MAX_RETRY_COUNT") // ["max", "retry", "count"]
//	SplitWords("std::vector")     // ["std", "vector"]
func SplitWords(raw string) []string {
	parts := splitParts(raw)
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return parts
}

// splitParts is SplitWords without lowercasing.
func splitParts(raw string) []string {
	runes := []rune(raw)
	parts := make([]string, 0, 4)
	start := -1

	flush := func(end int) {
		if start >= 0 && end > start {
			parts = append(parts, string(runes[start:end]))
		}
		start = -1
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := runes[i-1]
		switch {
		case unicode.IsLower(prev) && unicode.IsUpper(r),
			unicode.IsLetter(prev) && unicode.IsDigit(r),
			unicode.IsDigit(prev) && unicode.IsLetter(r):
			flush(i)
			start = i
		case unicode.IsUpper(prev) && unicode.IsUpper(r) &&
			i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			flush(i)
			start = i
		}
	}
	flush(len(runes))
	return parts
}
