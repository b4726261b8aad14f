package domain

import "time"

// Severity classifies how damaging a violation is. Child-safety material is
// critical; illegal goods, fraud and extreme harassment are high; spam,
// shorteners and gambling are medium; low is the default for clean text.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Valid reports whether s is one of the four known severity tiers.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Polarity is the direction of a vouch: endorsement or warning.
type Polarity string

const (
	PolarityPositive Polarity = "pos"
	PolarityNegative Polarity = "neg"
)

// Valid reports whether p is a known polarity.
func (p Polarity) Valid() bool {
	return p == PolarityPositive || p == PolarityNegative
}

// ModerationDecision is the normalized outcome of the classification
// pipeline for a single message. It is produced fresh per message and is
// never persisted.
type ModerationDecision struct {
	ShouldRemove bool
	Reason       string
	Severity     Severity
	IsVouch      bool
}

// Violation is one entry in a user's in-memory strike history.
type Violation struct {
	Reason    string
	Severity  Severity
	Timestamp time.Time
}
