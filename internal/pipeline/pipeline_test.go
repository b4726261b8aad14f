package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tpetrou/go-vouchguard/internal/classifier"
	"github.com/tpetrou/go-vouchguard/internal/domain"
	"github.com/tpetrou/go-vouchguard/internal/lexicon"
	"github.com/tpetrou/go-vouchguard/internal/metrics"
	"github.com/tpetrou/go-vouchguard/internal/moderation"
)

// ---------- test helpers ----------

type fakeRemote struct {
	verdict *classifier.Verdict
	err     error
	calls   int
}

func (f *fakeRemote) Classify(context.Context, string) (*classifier.Verdict, error) {
	f.calls++
	return f.verdict, f.err
}

func toxic(label string, conf float64) classifier.Toxicity {
	return classifier.ToxicityFunc(func(context.Context, string) (classifier.ToxicityScore, bool) {
		return classifier.ToxicityScore{Label: label, Confidence: conf}, true
	})
}

func newPipeline(tox classifier.Toxicity, remote classifier.Remote) *Pipeline {
	return &Pipeline{
		Matcher:  moderation.NewMatcher(lexicon.Default(), nil),
		Toxicity: tox,
		Remote:   remote,
		Logger:   zerolog.Nop(),
	}
}

// ---------- Analyze(): layer ordering ----------

func TestPipeline_Analyze_Clean(t *testing.T) {
	p := newPipeline(classifier.Unavailable(), nil)

	d := p.Analyze(context.Background(), "lovely day for a trade", 1)
	if d.ShouldRemove {
		t.Fatalf("clean message removed: %s", d.Reason)
	}
	if d.IsVouch {
		t.Fatalf("non-vouch flagged as vouch")
	}
	if d.Severity != domain.SeverityLow {
		t.Fatalf("severity = %s", d.Severity)
	}
}

func TestPipeline_Analyze_PatternMatchShortCircuits(t *testing.T) {
	remote := &fakeRemote{verdict: &classifier.Verdict{Verdict: "SAFE"}}
	p := newPipeline(toxic("toxic", 0.99), remote)

	d := p.Analyze(context.Background(), "anyone got a cp link", 1)
	if !d.ShouldRemove || d.Severity != domain.SeverityCritical {
		t.Fatalf("expected critical pattern removal, got %#v", d)
	}
	if remote.calls != 0 {
		t.Fatalf("remote consulted despite pattern hit")
	}
}

func TestPipeline_Analyze_ToxicityThreshold(t *testing.T) {
	// Above threshold: removed with high severity.
	p := newPipeline(toxic("toxic", 0.85), nil)
	d := p.Analyze(context.Background(), "some hostile message", 1)
	if !d.ShouldRemove || d.Severity != domain.SeverityHigh {
		t.Fatalf("expected toxicity removal, got %#v", d)
	}
	if d.Reason != "Toxic or hostile language" {
		t.Fatalf("reason = %q", d.Reason)
	}

	// Below threshold: no opinion.
	p = newPipeline(toxic("toxic", 0.79), nil)
	if d := p.Analyze(context.Background(), "some hostile message", 1); d.ShouldRemove {
		t.Fatalf("sub-threshold toxicity removed message")
	}

	// Non-toxic label never removes regardless of confidence.
	p = newPipeline(toxic("neutral", 0.99), nil)
	if d := p.Analyze(context.Background(), "some message", 1); d.ShouldRemove {
		t.Fatalf("neutral label removed message")
	}
}

func TestPipeline_Analyze_ToxicityThresholdOverride(t *testing.T) {
	p := newPipeline(toxic("toxic", 0.65), nil)
	p.ToxicThreshold = 0.60

	if d := p.Analyze(context.Background(), "some hostile message", 1); !d.ShouldRemove {
		t.Fatalf("expected removal under lowered threshold")
	}
}

// ---------- Analyze(): remote gates ----------

func TestPipeline_Analyze_RemoteConfidenceGates(t *testing.T) {
	cases := []struct {
		name       string
		severity   domain.Severity
		confidence float64
		want       bool
	}{
		{"critical any confidence", domain.SeverityCritical, 0.05, true},
		{"high at gate", domain.SeverityHigh, 0.70, true},
		{"high below gate", domain.SeverityHigh, 0.69, false},
		{"medium at gate", domain.SeverityMedium, 0.75, true},
		{"medium below gate", domain.SeverityMedium, 0.74, false},
		{"low at gate", domain.SeverityLow, 0.80, true},
		{"low below gate", domain.SeverityLow, 0.79, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remote := &fakeRemote{verdict: &classifier.Verdict{
				Verdict:    "VIOLATION",
				Confidence: tc.confidence,
				Reason:     "promotion of illegal goods",
				Severity:   tc.severity,
			}}
			p := newPipeline(classifier.Unavailable(), remote)

			d := p.Analyze(context.Background(), "something ambiguous", 1)
			if d.ShouldRemove != tc.want {
				t.Fatalf("ShouldRemove = %v, want %v", d.ShouldRemove, tc.want)
			}
			if tc.want {
				if d.Severity != tc.severity {
					t.Fatalf("severity = %s, want %s", d.Severity, tc.severity)
				}
				if !strings.HasPrefix(d.Reason, "AI detected: ") {
					t.Fatalf("reason = %q", d.Reason)
				}
			}
		})
	}
}

func TestPipeline_Analyze_RemoteSafeAndDefaultReason(t *testing.T) {
	remote := &fakeRemote{verdict: &classifier.Verdict{Verdict: "SAFE", Confidence: 0.99}}
	p := newPipeline(classifier.Unavailable(), remote)
	if d := p.Analyze(context.Background(), "hello", 1); d.ShouldRemove {
		t.Fatalf("SAFE verdict removed message")
	}

	remote = &fakeRemote{verdict: &classifier.Verdict{
		Verdict:    "VIOLATION",
		Confidence: 0.9,
		Severity:   domain.SeverityHigh,
	}}
	p = newPipeline(classifier.Unavailable(), remote)
	d := p.Analyze(context.Background(), "hello", 1)
	if d.Reason != "AI detected: TOS violation" {
		t.Fatalf("expected default reason, got %q", d.Reason)
	}
}

func TestPipeline_Analyze_RemoteErrorFailsOpen(t *testing.T) {
	remote := &fakeRemote{err: errors.New("upstream down")}
	p := newPipeline(classifier.Unavailable(), remote)

	base := testutil.ToFloat64(metrics.ClassifierErrors)

	if d := p.Analyze(context.Background(), "hello there", 1); d.ShouldRemove {
		t.Fatalf("remote failure must not remove messages")
	}
	if remote.calls != 1 {
		t.Fatalf("remote not consulted")
	}
	if got := testutil.ToFloat64(metrics.ClassifierErrors); got != base+1 {
		t.Fatalf("classifier error counter = %v, want %v", got, base+1)
	}
}

func TestPipeline_Analyze_NilRemoteSkipped(t *testing.T) {
	p := newPipeline(classifier.Unavailable(), nil)
	if d := p.Analyze(context.Background(), "hello there", 1); d.ShouldRemove {
		t.Fatalf("unexpected removal with no optional layers")
	}
}

// ---------- Analyze(): vouch flag ----------

func TestPipeline_Analyze_VouchFlag(t *testing.T) {
	p := newPipeline(classifier.Unavailable(), nil)

	d := p.Analyze(context.Background(), "+vouch @bob great trade", 1)
	if !d.IsVouch || d.ShouldRemove {
		t.Fatalf("clean vouch misclassified: %#v", d)
	}

	// A vouch that carries a violation keeps both flags set.
	d = p.Analyze(context.Background(), "+vouch @bob sold me weed fast", 1)
	if !d.IsVouch || !d.ShouldRemove {
		t.Fatalf("dirty vouch misclassified: %#v", d)
	}
}
