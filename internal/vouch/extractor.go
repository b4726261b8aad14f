// Package vouch detects vouch messages ("@user is legit", "neg vouch
// @scammer"), extracts their targets and polarity, and renders the
// canonical display form stored in the ledger.
package vouch

import (
	"regexp"
	"strings"

	"github.com/tpetrou/go-vouchguard/internal/domain"
)

// minVouchLen is the shortest text that can plausibly carry a vouch.
const minVouchLen = 5

// maxExcerptLen bounds the stored excerpt of the original note.
const maxExcerptLen = 200

var (
	mentionRE = regexp.MustCompile(`@[\w-]+`)
	urlRE     = regexp.MustCompile(`https?://[^\s)]*`)
	spaceRE   = regexp.MustCompile(`\s+`)
)

// Intent vocabulary. Negative cues are checked first when resolving
// polarity: a retraction or warning takes priority over any positive
// wording in the same message.
var (
	positiveCues = []string{
		"pos vouch", "positive vouch", "+vouch", "+rep",
		"vouch for", "vouch", "+1", "solid", "legend", "legit",
		"good seller", "good buyer", "trusted", "trustworthy",
		"recommend", "can vouch", "i vouch", "vouched", "vouching",
		"reliable",
	}
	negativeCues = []string{
		"neg vouch", "negative vouch", "-vouch", "-rep", "scammer", "scam",
		"do not recommend", "dont recommend", "don't recommend",
		"not recommend", "no vouch", "never vouch", "dont trust",
		"don't trust", "not legit", "fraud", "fake", "unreliable",
		"vouch against",
	}
)

// requestPatterns match someone asking for vouches rather than giving one.
var requestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bany(?:one)?\s+vouches?\b`),
	regexp.MustCompile(`\bany\s+vouches?\s+on\b`),
	regexp.MustCompile(`\bvouches?\s*\?`),
	regexp.MustCompile(`\bcan\s+(?:someone|anyone|ya|yall)\s+vouch\b`),
	regexp.MustCompile(`\bwho\s+(?:can|able\s+to)\s+vouch\b`),
	regexp.MustCompile(`\bneed(?:s)?\s+(?:a\s+)?vouch\b`),
	regexp.MustCompile(`\blooking\s+for\s+vouch`),
	regexp.MustCompile(`\bvouch(?:es)?\s+on\b`),
}

// Mentions returns the bare usernames (without @) mentioned in text, in
// order of appearance.
func Mentions(text string) []string {
	raw := mentionRE.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		if u := strings.TrimPrefix(m, "@"); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// IsVouchRequest reports whether the text is asking for vouches ("can
// anyone vouch for @bob?"). Such messages contain vouch vocabulary but are
// not vouches themselves.
func IsVouchRequest(text string) bool {
	if text == "" || !strings.Contains(strings.ToLower(text), "vouch") {
		return false
	}
	normalized := spaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
	for _, p := range requestPatterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}

// IsVouch reports whether text is a vouch: long enough, not a vouch
// request, and carrying both an intent cue and an @mention in either order.
func IsVouch(text string) bool {
	if len(text) < minVouchLen {
		return false
	}
	lowered := strings.ToLower(text)
	if IsVouchRequest(lowered) {
		return false
	}
	if len(mentionRE.FindAllString(lowered, -1)) == 0 {
		return false
	}
	return containsAnyCue(lowered, negativeCues) || containsAnyCue(lowered, positiveCues)
}

// Info is the structured result of extracting a vouch from free text.
// Targets holds every mentioned handle other than the author, lower-cased,
// de-duplicated, in first-seen order.
type Info struct {
	AuthorHandle string
	Targets      []string
	Polarity     domain.Polarity
	Excerpt      string
}

// Extract pulls structured vouch information out of text already known to
// be vouch-like. It returns nil when the message has no target other than
// the author: a vouch must point at someone else.
func Extract(text, authorHandle string) *Info {
	if len(text) < minVouchLen {
		return nil
	}
	trimmed := strings.TrimSpace(text)
	lowered := strings.ToLower(trimmed)
	if IsVouchRequest(lowered) {
		return nil
	}

	targets := collectTargets(trimmed, authorHandle)
	if len(targets) == 0 {
		return nil
	}

	polarity := domain.PolarityPositive
	if containsAnyCue(lowered, negativeCues) {
		polarity = domain.PolarityNegative
	}

	return &Info{
		AuthorHandle: strings.TrimPrefix(authorHandle, "@"),
		Targets:      targets,
		Polarity:     polarity,
		Excerpt:      buildExcerpt(trimmed),
	}
}

// collectTargets returns mentioned handles excluding the author, preserving
// first-seen order and dropping duplicates.
func collectTargets(text, authorHandle string) []string {
	authorNorm := strings.ToLower(strings.TrimPrefix(authorHandle, "@"))
	seen := make(map[string]struct{})
	var out []string
	for _, m := range Mentions(text) {
		norm := strings.ToLower(m)
		if norm == authorNorm {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// buildExcerpt collapses whitespace, masks raw URLs, and truncates to the
// excerpt bound with an ellipsis marker. Truncation counts runes so a
// multi-byte character is never split.
func buildExcerpt(text string) string {
	e := urlRE.ReplaceAllString(text, "[LINK]")
	e = strings.TrimSpace(spaceRE.ReplaceAllString(e, " "))
	if r := []rune(e); len(r) > maxExcerptLen {
		e = string(r[:maxExcerptLen-3]) + "..."
	}
	return e
}

func containsAnyCue(lowered string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(lowered, c) {
			return true
		}
	}
	return false
}
