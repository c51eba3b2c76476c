// Package preprocess normalises raw user text before classification.
package preprocess

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Clean strips zero-width and other format/control characters, applies
// NFC normalisation, collapses whitespace runs to a single space and
// trims. An empty result means the message carried no content.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	space := false
	for _, r := range norm.NFC.String(raw) {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case invisible(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// invisible reports runes that render as nothing: zero-width joiners and
// spaces, the BOM, and the Cf/Cc categories.
func invisible(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return unicode.Is(unicode.Cf, r) || unicode.IsControl(r)
}
