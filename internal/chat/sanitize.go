package chat

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxNameRunes = 32
	guestName    = "guest"
)

var textPolicy = bluemonday.StrictPolicy()

// SanitizeName strips markup and control characters from a display name.
// Empty results become "guest".
func SanitizeName(name string) string {
	name = SanitizeText(name, maxNameRunes)
	if name == "" {
		return guestName
	}
	return name
}

// SanitizeText strips markup and control characters and caps the result at maxRunes.
func SanitizeText(s string, maxRunes int) string {
	s = textPolicy.Sanitize(html.UnescapeString(s))
	// StrictPolicy escapes what it keeps; names are rendered as text.
	s = html.UnescapeString(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	if r := []rune(s); len(r) > maxRunes {
		s = strings.TrimSpace(string(r[:maxRunes]))
	}
	return s
}
