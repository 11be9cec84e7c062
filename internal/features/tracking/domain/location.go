package domain

import (
	"regexp"
	"strings"
)

// Location patterns, tried in order. The aggregator renders the checkpoint
// location either inside full-width brackets or as a leading comma field,
// depending on the courier. Reordering them breaks bracketed descriptions
// that also contain commas.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`【(.+?)】`),
	regexp.MustCompile(`^(.+?),`),
}

// ExtractLocation pulls the checkpoint location out of an event description.
func ExtractLocation(description string) string {
	for _, pattern := range locationPatterns {
		m := pattern.FindStringSubmatch(description)
		if m == nil {
			continue
		}
		if loc := strings.TrimSpace(m[1]); loc != "" {
			return loc
		}
	}
	return NoLocation
}
