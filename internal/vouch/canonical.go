package vouch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tpetrou/go-vouchguard/internal/domain"
)

// maxWatchers caps how many prior positive vouchers are named on a
// negative vouch.
const maxWatchers = 5

// vouchPrefixRE strips leading vouch boilerplate ("pos vouch for",
// "+rep", "vouched") from the note line of the canonical block.
var vouchPrefixRE = regexp.MustCompile(`(?i)^((?:\+|-)?rep\s+|(?:pos(?:itive)?|neg(?:ative)?)\s+vouch\s+|vouch\s+(?:for\s+)?|vouched\s+)+`)

var leadingMentionRE = regexp.MustCompile(`^@[\w-]+\s*`)

// Entry is one canonical vouch rendering for a single target. Watchers, set
// only for negative vouches, lists up to five prior positive vouchers for
// the same target so the group can see who previously endorsed someone now
// being warned about.
type Entry struct {
	Target   string
	Author   string
	Polarity domain.Polarity
	Excerpt  string
	Watchers []string
}

// FormatCanonical renders the fixed-shape display block:
//
//	POS VOUCH @target
//	from: @author
//	<cleaned note>
//	Last to vouch: @a, @b      (negative vouches only)
func FormatCanonical(e Entry) string {
	title := "POS VOUCH"
	if e.Polarity == domain.PolarityNegative {
		title = "NEG VOUCH"
	}

	target := e.Target
	if target == "" {
		target = "[unknown]"
	} else if !strings.HasPrefix(target, "@") {
		target = "@" + target
	}
	author := e.Author
	if author == "" {
		author = "[unknown]"
	} else if !strings.HasPrefix(author, "@") {
		author = "@" + author
	}

	lines := []string{
		fmt.Sprintf("%s %s", title, target),
		fmt.Sprintf("from: %s", author),
	}
	if note := cleanNoteExcerpt(e.Excerpt); note != "" {
		lines = append(lines, note)
	}
	if len(e.Watchers) > 0 {
		w := e.Watchers
		if len(w) > maxWatchers {
			w = w[:maxWatchers]
		}
		lines = append(lines, "Last to vouch: "+strings.Join(w, ", "))
	}
	return strings.Join(lines, "\n")
}

// cleanNoteExcerpt drops vouch-prefix boilerplate and a leading mention so
// the note line reads as plain commentary.
func cleanNoteExcerpt(excerpt string) string {
	cleaned := strings.TrimSpace(excerpt)
	if cleaned == "" {
		return ""
	}
	cleaned = strings.TrimSpace(vouchPrefixRE.ReplaceAllString(cleaned, ""))
	cleaned = leadingMentionRE.ReplaceAllString(cleaned, "")
	return strings.Trim(cleaned, " -:")
}
