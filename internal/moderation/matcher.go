// Package moderation implements the pattern-matching layer of the
// classification pipeline: keyword sieving over the lexicon, contextual
// disambiguation of keyword hits, suspicious-pattern regex rules and URL
// reputation checks. It is fully deterministic and makes no I/O.
package moderation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tpetrou/go-vouchguard/internal/domain"
	"github.com/tpetrou/go-vouchguard/internal/lexicon"
)

var mentionRE = regexp.MustCompile(`@[\w_]+`)

// StripMentions removes @handle tokens so keyword scans never trigger on
// usernames that happen to contain banned substrings.
func StripMentions(text string) string {
	return mentionRE.ReplaceAllString(text, " ")
}

// Matcher evaluates text against the lexicon. The zero value is unusable;
// construct with NewMatcher.
type Matcher struct {
	lex       *lexicon.Lexicon
	overrides *lexicon.Overrides
}

// NewMatcher builds a matcher over the given lexicon. overrides may be nil
// when the dynamic keyword feature is not wired up.
func NewMatcher(lex *lexicon.Lexicon, overrides *lexicon.Overrides) *Matcher {
	return &Matcher{lex: lex, overrides: overrides}
}

// Evaluate runs the layered pattern checks and reports whether the text is
// a violation, the human-readable reason, and the severity tier.
//
// Order matters and is covered by tests:
//  1. allow-list (educational/awareness phrasing) wins immediately,
//  2. zero-tolerance phrases are instant criticals,
//  3. substring scan (scam domains, banned keywords + overrides,
//     shorteners) with contextual disambiguation on keyword hits,
//  4. URL reputation,
//  5. ordered suspicious-pattern regex rules, first match wins.
func (m *Matcher) Evaluate(text string) (bool, string, domain.Severity) {
	if strings.TrimSpace(text) == "" {
		return false, "", domain.SeverityLow
	}

	lowered := strings.ToLower(text)

	if m.isAllowed(lowered) {
		return false, "", domain.SeverityLow
	}

	for _, phrase := range m.lex.ZeroTolerance {
		if strings.Contains(lowered, phrase) {
			return true, "Child exploitation material (zero tolerance)", domain.SeverityCritical
		}
	}

	noMentions := StripMentions(lowered)

	for _, d := range m.lex.ScamDomains {
		if strings.Contains(noMentions, strings.ToLower(d)) {
			return true, fmt.Sprintf("Scam link detected: %s", d), domain.SeverityHigh
		}
	}

	if hit, reason, sev := m.scanKeywords(noMentions); hit {
		return true, reason, sev
	}

	for _, s := range m.lex.URLShorteners {
		if strings.Contains(noMentions, s) {
			return true, fmt.Sprintf("Suspicious URL shortener: %s", s), domain.SeverityMedium
		}
	}

	for _, u := range ExtractURLs(text) {
		if suspicious, reason := m.CheckURLReputation(u); suspicious {
			return true, reason, domain.SeverityMedium
		}
	}

	for _, rule := range m.lex.Rules {
		if rule.Pattern.MatchString(text) {
			return true, rule.Reason, domain.Severity(lexicon.SeverityForCategory(rule.Category))
		}
	}

	return false, "", domain.SeverityLow
}

func (m *Matcher) isAllowed(lowered string) bool {
	for _, phrase := range m.lex.AllowPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func (m *Matcher) scanKeywords(noMentions string) (bool, string, domain.Severity) {
	if m.overrides != nil {
		if w := m.overrides.Match(noMentions); w != "" && m.isContextualViolation(noMentions, w) {
			return true, fmt.Sprintf("Prohibited content: %s", w), domain.SeverityMedium
		}
	}
	for _, kw := range m.lex.BannedKeywords {
		if !strings.Contains(noMentions, kw) {
			continue
		}
		if !m.isContextualViolation(noMentions, kw) {
			continue
		}
		switch {
		case containsAny(kw, []string{"drug", "weapon", "fake passport", "counterfeit"}):
			return true, fmt.Sprintf("Illegal content: %s", kw), domain.SeverityHigh
		case containsAny(kw, []string{"kys", "kill yourself"}):
			return true, fmt.Sprintf("Extreme harassment: %s", kw), domain.SeverityHigh
		default:
			return true, fmt.Sprintf("Prohibited content: %s", kw), domain.SeverityMedium
		}
	}
	return false, "", domain.SeverityLow
}

// isContextualViolation decides whether a matched keyword is an actual
// violation given the surrounding text. The policy is asymmetric on
// purpose: drug-sale language is filtered conservatively (violation unless
// an explicit safe context is present) while generic categories are
// filtered permissively (allowed when education/fiction/negation markers
// appear).
func (m *Matcher) isContextualViolation(lowered, keyword string) bool {
	kw := strings.ToLower(keyword)

	for _, term := range m.lex.AlwaysViolate {
		if strings.Contains(kw, term) {
			return true
		}
	}

	if containsAny(kw, m.lex.DrugTerms) {
		for _, ctx := range m.lex.SafeDrugContexts {
			if strings.Contains(lowered, ctx) {
				return false
			}
		}
		return true
	}

	if containsAny(kw, m.lex.SelfHarmTerms) {
		for _, ctx := range m.lex.FictionContexts {
			if strings.Contains(lowered, ctx) {
				return false
			}
		}
		return true
	}

	for _, ctx := range m.lex.EducationContexts {
		if strings.Contains(lowered, ctx) {
			return false
		}
	}
	for _, neg := range m.lex.NegationMarkers {
		if strings.Contains(lowered, neg) {
			return false
		}
	}
	return true
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
