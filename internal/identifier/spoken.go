package identifier

import "strings"

// SpokenForm is a natural-language rendering of an [Identifier], e.g.
// "clear pasteboard" for "clearPasteboard".
type SpokenForm string

// SpokenForms returns the plausible renderings of id. The first element is
// always id.Raw unchanged, so an exact mention of the identifier is found as
// well. Word order is preserved and no word is dropped.
//
//	camelCase, PascalCase      "clearPasteboard" → "clear pasteboard", "clear Pasteboard"
//	snake, kebab, SCREAMING    "MAX_VALUE"       → "max value"
//	acronym, single-uppercase  "HTTP"            → "http"
//	unknown                    "os.path"         → "os.path", "os path"
func SpokenForms(id Identifier) []SpokenForm {
	if id.Raw == "" {
		return nil
	}
	words := id.Words
	if words == nil {
		words = SplitWords(id.Raw)
	}
	lowerJoined := strings.Join(words, " ")

	forms := make([]SpokenForm, 0, 3)
	add := func(s string) {
		if s == "" {
			return
		}
		for _, f := range forms {
			if string(f) == s {
				return
			}
		}
		forms = append(forms, SpokenForm(s))
	}

	add(id.Raw)
	switch id.Convention {
	case CamelCase, PascalCase:
		add(lowerJoined)
		add(strings.Join(splitParts(id.Raw), " "))
	case SnakeCase, KebabCase, ScreamingSnakeCase:
		add(lowerJoined)
	case Acronym, SingleUppercase:
		add(strings.ToLower(id.Raw))
	default:
		add(strings.ToLower(id.Raw))
		if len(words) > 1 {
			add(lowerJoined)
		}
	}
	return forms
}
