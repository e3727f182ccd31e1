package title_generation

import (
	"regexp"
	"strings"
)

var (
	// "-" and ";" only count as separators when followed by a space.
	labelPattern = regexp.MustCompile(`(?i)^(titre|title)\s*(:|[;-]\s)\s*`)
	quoteChars   = "\"“”'‘’`"
)

// CleanTitle normalizes a raw model reply: it trims whitespace, strips a
// leading "title:" label, removes quote characters and a single trailing period.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = labelPattern.ReplaceAllString(title, "")
	title = strings.Map(func(r rune) rune {
		if strings.ContainsRune(quoteChars, r) {
			return -1
		}
		return r
	}, title)
	title = strings.TrimSuffix(title, ".")
	return strings.TrimSpace(title)
}
