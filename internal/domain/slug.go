package domain

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a stable investment ID from a company name,
// e.g. "Aarti Industries Ltd" becomes "aarti-industries-ltd".
func Slugify(name string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "item"
	}
	return s
}
