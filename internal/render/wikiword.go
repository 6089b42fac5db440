package render

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// wikiWordPattern matches CamelCase words: a capitalised fragment followed
// directly by another capital and at least one more letter or digit.
var wikiWordPattern = regexp.MustCompile(`\b[A-Z][a-z]+[A-Z][A-Za-z0-9]+\b`)

// ViewPath returns the path of the page a wiki word links to.
func ViewPath(word string) string {
	return "/view/" + word
}

// WikiWords returns the wiki words of text in order of appearance.
func WikiWords(text string) []string {
	var words []string
	for _, m := range wikiWordIndexes([]byte(text)) {
		words = append(words, text[m[0]:m[1]])
	}
	return words
}

// wikiWordIndexes returns the spans of the wiki words in b. The pattern only
// knows ASCII word boundaries, so matches touching any other letter or digit
// are dropped.
func wikiWordIndexes(b []byte) [][]int {
	var spans [][]int
	for _, m := range wikiWordPattern.FindAllIndex(b, -1) {
		if !isBoundary(b, m[0], m[1]) {
			continue
		}
		spans = append(spans, m)
	}
	return spans
}

// isBoundary reports whether b[start:end] has no word character on either
// side.
func isBoundary(b []byte, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRune(b[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(b) {
		if r, _ := utf8.DecodeRune(b[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
