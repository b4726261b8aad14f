// Package pipeline orchestrates the layered moderation classifiers into a
// single decision point. The order is fixed: vouch detection, pattern
// matching, local toxicity, then (optionally) remote semantic analysis,
// with an early exit on the first decisive signal. Capability failures
// always fail open to "no opinion"; only the pattern matcher can block a
// message when every optional layer is down.
package pipeline

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tpetrou/go-vouchguard/internal/classifier"
	"github.com/tpetrou/go-vouchguard/internal/domain"
	"github.com/tpetrou/go-vouchguard/internal/metrics"
	"github.com/tpetrou/go-vouchguard/internal/moderation"
	"github.com/tpetrou/go-vouchguard/internal/vouch"
)

// Confidence gates per severity tier for the remote classifier. Critical
// findings are accepted at any confidence; lower-stakes tiers need more
// certainty to fire, which keeps false positives down where the cost of a
// wrong removal is highest relative to the harm prevented.
const (
	gateHigh   = 0.70
	gateMedium = 0.75
	gateLow    = 0.80
)

// defaultToxicThreshold is the minimum local-model confidence on the
// "toxic" label before the message is removed.
const defaultToxicThreshold = 0.80

// Pipeline is the single entry point for message classification. All
// moderation consumers depend on Analyze and nothing else.
type Pipeline struct {
	Matcher  *moderation.Matcher
	Toxicity classifier.Toxicity
	Remote   classifier.Remote // nil disables the remote layer

	// ToxicThreshold overrides the default 0.80 when > 0.
	ToxicThreshold float64

	Logger zerolog.Logger
}

// Analyze classifies one message and returns a normalized decision. The
// vouch flag is recorded on the decision regardless of outcome so callers
// can route dirty vouches differently from plain violations.
func (p *Pipeline) Analyze(ctx context.Context, text string, authorID int64) domain.ModerationDecision {
	tr := otel.Tracer("pipeline/Pipeline")
	ctx, span := tr.Start(ctx, "Analyze",
		trace.WithAttributes(attribute.Int64("author.id", authorID)),
	)
	defer span.End()

	decision := domain.ModerationDecision{
		Severity: domain.SeverityLow,
		IsVouch:  vouch.IsVouch(text),
	}

	if violation, reason, severity := p.Matcher.Evaluate(text); violation {
		decision.ShouldRemove = true
		decision.Reason = reason
		decision.Severity = severity
		p.Logger.Info().
			Str("severity", string(severity)).
			Str("reason", reason).
			Bool("is_vouch", decision.IsVouch).
			Msg("pattern violation")
		return decision
	}

	if score, ok := p.Toxicity.Score(ctx, text); ok {
		threshold := p.ToxicThreshold
		if threshold <= 0 {
			threshold = defaultToxicThreshold
		}
		if score.Label == "toxic" && score.Confidence >= threshold {
			decision.ShouldRemove = true
			decision.Reason = "Toxic or hostile language"
			decision.Severity = domain.SeverityHigh
			p.Logger.Info().
				Float64("confidence", score.Confidence).
				Bool("is_vouch", decision.IsVouch).
				Msg("toxicity detected")
			return decision
		}
	}

	if p.Remote != nil {
		if d, ok := p.analyzeRemote(ctx, text); ok {
			d.IsVouch = decision.IsVouch
			return d
		}
	}

	return decision
}

// analyzeRemote consults the remote semantic capability and applies the
// per-severity confidence gates. Any error is logged at warning level and
// treated as "no opinion".
func (p *Pipeline) analyzeRemote(ctx context.Context, text string) (domain.ModerationDecision, bool) {
	verdict, err := p.Remote.Classify(ctx, text)
	if err != nil {
		metrics.ClassifierErrors.Inc()
		p.Logger.Warn().Err(err).Msg("remote classifier unavailable")
		return domain.ModerationDecision{}, false
	}
	if !verdict.IsViolation() {
		return domain.ModerationDecision{}, false
	}

	accepted := false
	switch verdict.Severity {
	case domain.SeverityCritical:
		accepted = true
	case domain.SeverityHigh:
		accepted = verdict.Confidence >= gateHigh
	case domain.SeverityMedium:
		accepted = verdict.Confidence >= gateMedium
	case domain.SeverityLow:
		accepted = verdict.Confidence >= gateLow
	}
	if !accepted {
		if verdict.Confidence >= 0.60 {
			p.Logger.Info().
				Float64("confidence", verdict.Confidence).
				Str("reason", verdict.Reason).
				Msg("remote verdict below confidence gate")
		}
		return domain.ModerationDecision{}, false
	}

	reason := verdict.Reason
	if reason == "" {
		reason = "TOS violation"
	}
	p.Logger.Info().
		Str("severity", string(verdict.Severity)).
		Float64("confidence", verdict.Confidence).
		Str("reason", reason).
		Msg("remote violation accepted")

	return domain.ModerationDecision{
		ShouldRemove: true,
		Reason:       "AI detected: " + reason,
		Severity:     verdict.Severity,
	}, true
}
