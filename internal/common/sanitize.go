package common

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// SanitizeText strips markup from user content and returns it as plain text.
// bluemonday escapes the text it keeps, so the result is unescaped again:
// "5 > 3 & true" is stored exactly as typed.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}
