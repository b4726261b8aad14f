package moderation

import (
	"regexp"
	"strings"
)

// Fillers substituted for masked keywords so the surviving text still reads
// naturally. Selection cycles deterministically so sanitization is stable
// under test.
var fillerChoices = []string{
	"premium goods", "safe product", "clean service", "trusted item", "solid drop",
}

var (
	removedRunRE = regexp.MustCompile(`(\x00REMOVED\x00\s*)+`)
	spaceRE      = regexp.MustCompile(`\s+`)
)

// Sanitize strips policy-violating substrings from text while preserving
// the surrounding structure (mentions, sentiment, order). It is used by the
// command submission path, which stores a cleaned vouch flagged
// is_sanitized instead of rejecting it outright.
func (m *Matcher) Sanitize(text string) string {
	if text == "" {
		return text
	}

	out := text

	// Word-boundary keyword masking prevents false hits like "lean"
	// inside "clean".
	words := make([]string, 0, len(m.lex.BannedKeywords))
	for _, kw := range m.lex.BannedKeywords {
		words = append(words, regexp.QuoteMeta(kw))
	}
	bannedRE := regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)
	out = bannedRE.ReplaceAllString(out, "\x00REMOVED\x00")

	for _, rule := range m.lex.Rules {
		out = rule.Pattern.ReplaceAllString(out, "\x00REMOVED\x00")
	}

	for _, d := range m.lex.ScamDomains {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(d))
		out = re.ReplaceAllString(out, "\x00LINK\x00")
	}
	for _, s := range m.lex.URLShorteners {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(s))
		out = re.ReplaceAllString(out, "\x00LINK\x00")
	}

	for _, u := range ExtractURLs(out) {
		if suspicious, _ := m.CheckURLReputation(u); suspicious {
			out = strings.ReplaceAll(out, u, "\x00LINK\x00")
		}
	}

	// Collapse runs of adjacent removals, then swap placeholders for
	// softer wording.
	out = removedRunRE.ReplaceAllString(out, "\x00REMOVED\x00 ")
	i := 0
	out = regexp.MustCompile(`\x00REMOVED\x00`).ReplaceAllStringFunc(out, func(string) string {
		f := fillerChoices[i%len(fillerChoices)]
		i++
		return f
	})
	out = strings.ReplaceAll(out, "\x00LINK\x00", "[clean link]")

	return strings.TrimSpace(spaceRE.ReplaceAllString(out, " "))
}
