// Package namex pulls species names out of the caption text that accompanies
// sighting images ("A wild Bulbasaur has fled!") and converts between the
// storage and display forms of a name.
package namex

import (
	"regexp"
	"strings"
)

// Most specific patterns first: the bare "Wild ... fled" form would otherwise
// swallow the "has" out of "A wild X has fled".
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)A wild\s+(.+?)\s+has fled`),
	regexp.MustCompile(`(?i)The wild\s+(.+?)\s+fled`),
	regexp.MustCompile(`(?i)Wild\s+(.+?)\s+fled`),
}

var (
	wrappingQuotes = `'"“”‘’`
	trailingPunct  = regexp.MustCompile(`[.,!?:;]+$`)
)

// Extract returns the species name captured by the first matching phrase
// pattern, cleaned of quotes and trailing punctuation with internal
// whitespace collapsed. ok is false when no pattern applies.
func Extract(text string) (name string, ok bool) {
	if text == "" {
		return "", false
	}
	for _, pat := range patterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cleaned := clean(m[1])
		if cleaned == "" {
			continue
		}
		return cleaned, true
	}
	return "", false
}

// StorageName converts a name to its catalog-label form: cleaned, with
// whitespace runs joined by underscores.
func StorageName(raw string) string {
	cleaned := clean(raw)
	if cleaned == "" {
		return ""
	}
	return strings.Join(strings.Fields(cleaned), "_")
}

// DisplayName reverses StorageName for chat replies.
func DisplayName(label string) string {
	cleaned := clean(strings.ReplaceAll(label, "_", " "))
	return strings.Join(strings.Fields(cleaned), " ")
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, wrappingQuotes)
	s = trailingPunct.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
