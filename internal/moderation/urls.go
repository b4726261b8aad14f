package moderation

import (
	"fmt"
	"regexp"
	"strings"
)

var urlRE = regexp.MustCompile(`https?://[^\s)<>"]+`)

// ExtractURLs returns every http(s) URL found in text, in order.
func ExtractURLs(text string) []string {
	return urlRE.FindAllString(text, -1)
}

// CheckURLReputation flags URLs that use a known shortener host or match a
// scam URL pattern.
func (m *Matcher) CheckURLReputation(url string) (bool, string) {
	lowered := strings.ToLower(url)
	for _, s := range m.lex.URLShorteners {
		if strings.Contains(lowered, s) {
			return true, fmt.Sprintf("Suspicious URL shortener: %s", s)
		}
	}
	for _, p := range m.lex.ScamURLPatterns {
		if p.MatchString(lowered) {
			return true, "Scam URL pattern detected"
		}
	}
	return false, ""
}
