package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tpetrou/go-vouchguard/internal/domain"
)

// LedgerStats aggregates counters over the vouch ledger, optionally
// scoped to a single chat.
type LedgerStats struct {
	Total     int64 `json:"total"`
	Positive  int64 `json:"positive"`
	Negative  int64 `json:"negative"`
	Sanitized int64 `json:"sanitized"`
	Recent24h int64 `json:"recent_24h"`
}

// VouchStats computes ledger totals in a handful of cheap COUNT queries.
func VouchStats(ctx context.Context, db *gorm.DB, chatID *int64) (*LedgerStats, error) {
	base := func() *gorm.DB {
		q := db.WithContext(ctx).Model(&domain.Vouch{})
		if chatID != nil {
			q = q.Where("chat_id = ?", *chatID)
		}
		return q
	}

	var s LedgerStats
	if err := base().Count(&s.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("polarity = ?", domain.PolarityPositive).Count(&s.Positive).Error; err != nil {
		return nil, err
	}
	if err := base().Where("polarity = ?", domain.PolarityNegative).Count(&s.Negative).Error; err != nil {
		return nil, err
	}
	if err := base().Where("is_sanitized = ?", true).Count(&s.Sanitized).Error; err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	if err := base().Where("created_at > ?", cutoff).Count(&s.Recent24h).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
