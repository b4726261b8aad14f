package vouch

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tpetrou/go-vouchguard/internal/domain"
)

// ---------- Mentions ----------

func TestMentions(t *testing.T) {
	got := Mentions("thanks @Alice and @bob-99, also @alice again")
	want := []string{"Alice", "bob-99", "alice"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mention[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := Mentions("no handles here"); len(got) != 0 {
		t.Fatalf("expected none, got %v", got)
	}
}

// ---------- IsVouchRequest ----------

func TestIsVouchRequest(t *testing.T) {
	asking := []string{
		"anyone vouch for @bob?",
		"any vouches on @trader_joe",
		"can someone vouch for this guy",
		"who can vouch for @sally",
		"need a vouch before I send",
		"looking for vouches on @mike",
		"vouches?",
	}
	for _, text := range asking {
		if !IsVouchRequest(text) {
			t.Fatalf("IsVouchRequest(%q) = false, want true", text)
		}
	}

	giving := []string{
		"+vouch @bob fast and reliable",
		"i vouch for @bob",
		"totally normal chat", // no vouch vocabulary at all
		"",
	}
	for _, text := range giving {
		if IsVouchRequest(text) {
			t.Fatalf("IsVouchRequest(%q) = true, want false", text)
		}
	}
}

// ---------- IsVouch ----------

func TestIsVouch(t *testing.T) {
	yes := []string{
		"+vouch @bob, quick and easy",
		"@bob is legit, bought twice",
		"neg vouch @scummy_sam took my money",
		"can vouch for @alice anytime",
	}
	for _, text := range yes {
		if !IsVouch(text) {
			t.Fatalf("IsVouch(%q) = false, want true", text)
		}
	}

	no := []string{
		"",
		"+rep",                       // too short, no mention
		"great weather today @bob",   // mention but no cue
		"solid advice, thanks all",   // cue but no mention
		"can anyone vouch for @bob?", // request, not a vouch
	}
	for _, text := range no {
		if IsVouch(text) {
			t.Fatalf("IsVouch(%q) = true, want false", text)
		}
	}
}

// ---------- Extract ----------

func TestExtract_PositiveSingleTarget(t *testing.T) {
	info := Extract("+vouch @Bob sorted me out fast", "alice")
	if info == nil {
		t.Fatalf("expected extraction")
	}
	if info.AuthorHandle != "alice" {
		t.Fatalf("author = %q", info.AuthorHandle)
	}
	if len(info.Targets) != 1 || info.Targets[0] != "bob" {
		t.Fatalf("targets = %v", info.Targets)
	}
	if info.Polarity != domain.PolarityPositive {
		t.Fatalf("polarity = %s", info.Polarity)
	}
}

func TestExtract_NegativeCueWinsOverPositive(t *testing.T) {
	// "legit" is a positive cue but "not legit" is negative; negative
	// wording takes priority.
	info := Extract("@shade is not legit, do not recommend", "alice")
	if info == nil || info.Polarity != domain.PolarityNegative {
		t.Fatalf("expected negative polarity, got %#v", info)
	}
}

func TestExtract_MultiTargetDedupAndAuthorExcluded(t *testing.T) {
	info := Extract("vouch for @bob and @Carol, @bob again, @alice too", "@Alice")
	if info == nil {
		t.Fatalf("expected extraction")
	}
	want := []string{"bob", "carol"}
	if len(info.Targets) != len(want) {
		t.Fatalf("targets = %v, want %v", info.Targets, want)
	}
	for i := range want {
		if info.Targets[i] != want[i] {
			t.Fatalf("target[%d] = %q, want %q", i, info.Targets[i], want[i])
		}
	}
	if info.AuthorHandle != "Alice" {
		t.Fatalf("author = %q", info.AuthorHandle)
	}
}

func TestExtract_SelfMentionOnlyIsNil(t *testing.T) {
	if info := Extract("i vouch for @alice", "alice"); info != nil {
		t.Fatalf("self-vouch should extract nothing, got %#v", info)
	}
}

func TestExtract_RequestAndShortTextAreNil(t *testing.T) {
	if info := Extract("can anyone vouch for @bob?", "alice"); info != nil {
		t.Fatalf("request should extract nothing, got %#v", info)
	}
	if info := Extract("+1", "alice"); info != nil {
		t.Fatalf("short text should extract nothing, got %#v", info)
	}
}

func TestExtract_ExcerptMasksLinksAndTruncates(t *testing.T) {
	info := Extract("vouch @bob proof here https://imgur.example/receipt huge help", "alice")
	if info == nil {
		t.Fatalf("expected extraction")
	}
	if strings.Contains(info.Excerpt, "http") || !strings.Contains(info.Excerpt, "[LINK]") {
		t.Fatalf("URL not masked: %q", info.Excerpt)
	}

	long := "vouch @bob " + strings.Repeat("great deal ", 40)
	info = Extract(long, "alice")
	if info == nil {
		t.Fatalf("expected extraction")
	}
	if len(info.Excerpt) > maxExcerptLen {
		t.Fatalf("excerpt length %d exceeds bound", len(info.Excerpt))
	}
	if !strings.HasSuffix(info.Excerpt, "...") {
		t.Fatalf("expected ellipsis marker, got %q", info.Excerpt)
	}
}

func TestExtract_ExcerptTruncatesOnRuneBoundary(t *testing.T) {
	long := "vouch @bob " + strings.Repeat("géniale très fiable ", 30)
	info := Extract(long, "alice")
	if info == nil {
		t.Fatalf("expected extraction")
	}
	if !utf8.ValidString(info.Excerpt) {
		t.Fatalf("excerpt is not valid UTF-8: %q", info.Excerpt)
	}
	if got := utf8.RuneCountInString(info.Excerpt); got > maxExcerptLen {
		t.Fatalf("excerpt runes = %d, exceeds bound", got)
	}
	if !strings.HasSuffix(info.Excerpt, "...") {
		t.Fatalf("expected ellipsis marker, got %q", info.Excerpt)
	}
}
