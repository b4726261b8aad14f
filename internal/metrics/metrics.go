// Package metrics exposes Prometheus counters for the moderation pipeline
// and the vouch ledger. All collectors are registered on the default
// registry and served by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesScanned counts every inbound message the pipeline examined.
	MessagesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vouchguard_messages_scanned_total",
		Help: "Inbound messages examined by the moderation pipeline.",
	})

	// Removals counts deleted messages, labeled by violation severity.
	Removals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchguard_removals_total",
		Help: "Messages removed by the moderation pipeline.",
	}, []string{"severity"})

	// VouchesStored counts vouches persisted to the ledger, labeled by polarity.
	VouchesStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchguard_vouches_stored_total",
		Help: "Vouches persisted to the ledger.",
	}, []string{"polarity"})

	// VouchesDuplicate counts vouches suppressed by the duplicate window.
	VouchesDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vouchguard_vouches_duplicate_total",
		Help: "Vouches suppressed as recent duplicates.",
	})

	// VouchesSanitized counts vouches stored after local sanitization.
	VouchesSanitized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vouchguard_vouches_sanitized_total",
		Help: "Vouches stored with sanitized note text.",
	})

	// ClassifierErrors counts remote classifier failures (fail-open path).
	ClassifierErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vouchguard_classifier_errors_total",
		Help: "Remote classifier calls that failed and were skipped.",
	})

	// RateLimited counts messages dropped by velocity limits, labeled by kind.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchguard_rate_limited_total",
		Help: "Messages removed because a velocity limit was exceeded.",
	}, []string{"kind"})

	// Escalations counts users who reached the strike threshold.
	Escalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vouchguard_escalations_total",
		Help: "Users escalated after reaching the strike limit.",
	})
)
