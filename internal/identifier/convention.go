package identifier

import (
	"regexp"
	"strings"
	"unicode"
)

// Convention is the naming convention an identifier follows.
type Convention uint8

const (
	Unknown Convention = iota
	CamelCase
	PascalCase
	SnakeCase
	ScreamingSnakeCase
	KebabCase
	Acronym
	SingleUppercase
)

// String returns the conventional spelling of the convention name.
func (c Convention) String() string {
	switch c {
	case CamelCase:
		return "camelCase"
	case PascalCase:
		return "PascalCase"
	case SnakeCase:
		return "snake_case"
	case ScreamingSnakeCase:
		return "SCREAMING_SNAKE_CASE"
	case KebabCase:
		return "kebab-case"
	case Acronym:
		return "acronym"
	case SingleUppercase:
		return "single-uppercase"
	default:
		return "unknown"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (c Convention) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

var (
	screamingSnakeRe = regexp.MustCompile(`^[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)+$`)
	snakeRe          = regexp.MustCompile(`^[a-z][a-z0-9]*(?:_[a-z0-9]+)+$`)
	kebabRe          = regexp.MustCompile(`^[a-z][a-z0-9]*(?:-[a-z0-9]+)+$`)
	camelRe          = regexp.MustCompile(`^[a-z][a-z0-9]*[A-Z][a-zA-Z0-9]*$`)
	pascalRe         = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)
	acronymRe        = regexp.MustCompile(`^[A-Z]{2,5}$`)
	singleUpperRe    = regexp.MustCompile(`^[A-Z]$`)
)

// shapes is evaluated in order; the first predicate that accepts a token
// decides its convention. SCREAMING_SNAKE_CASE must precede snake_case and
// acronym, PascalCase must precede acronym.
var shapes = []struct {
	convention Convention
	matches    func(string) bool
}{
	{ScreamingSnakeCase, screamingSnakeRe.MatchString},
	{SnakeCase, snakeRe.MatchString},
	{KebabCase, kebabRe.MatchString},
	{CamelCase, camelRe.MatchString},
	{PascalCase, isPascal},
	{Acronym, acronymRe.MatchString},
	{SingleUppercase, singleUpperRe.MatchString},
}

// DetectConvention returns the naming convention raw follows, or [Unknown].
func DetectConvention(raw string) Convention {
	if raw == "" {
		return Unknown
	}
	for _, s := range shapes {
		if s.matches(raw) {
			return s.convention
		}
	}
	return Unknown
}

// isPascal requires an internal word boundary, so a capitalised prose word
// such as "Hello" is not PascalCase while "HelloWorld" and "HTTPServer" are.
func isPascal(raw string) bool {
	if !pascalRe.MatchString(raw) {
		return false
	}
	if !strings.ContainsFunc(raw, unicode.IsLower) {
		return false
	}
	for i := 1; i < len(raw); i++ {
		prev, cur := raw[i-1], raw[i]
		if isLowerASCII(prev) && isUpperASCII(cur) {
			return true
		}
		// Acronym followed by a word: "HTTPServer", "IOError".
		if i+2 < len(raw) && isUpperASCII(prev) && isUpperASCII(cur) &&
			isLowerASCII(raw[i+1]) && isLowerASCII(raw[i+2]) {
			return true
		}
	}
	return false
}

func isLowerASCII(b byte) bool { return 'a' <= b && b <= 'z' }
func isUpperASCII(b byte) bool { return 'A' <= b && b <= 'Z' }
func isDigitASCII(b byte) bool { return '0' <= b && b <= '9' }
