// Package sanitize validates user-supplied plain text
package sanitize

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrMarkup is returned for text containing HTML elements
var ErrMarkup = errors.New("html markup is not allowed")

// PlainText returns s with surrounding whitespace trimmed and otherwise exactly
// as typed. Text containing HTML elements is rejected with ErrMarkup; stray angle
// brackets, unknown tags and entities are ordinary text.
func PlainText(s string) (string, error) {
	s = strings.TrimSpace(s)
	if ContainsMarkup(s) {
		return "", ErrMarkup
	}
	return s, nil
}

// ContainsMarkup reports whether s has a complete start, end or self-closing tag
// whose name is a known HTML name
func ContainsMarkup(s string) bool {
	if !strings.Contains(s, "<") {
		return false
	}

	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) != 0 {
				return true
			}
		}
	}
}

// Length returns the number of characters (runes) in s
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
