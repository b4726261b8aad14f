// Package repo implements the data persistence layer for the vouch ledger.
// This file provides repository functions for the Vouch model and the
// append-only username history.
//
// The repository follows a "thin" approach: it performs persistence and
// simple query composition, leaving business rules (24h duplicate policy,
// ownership checks, canonical formatting) to the services package.
//
// Error semantics:
//   - CreateVouch returns ErrDuplicate when the idempotency key
//     (from_user_id, chat_id, message_id, to_username_lower) already
//     exists; retries after a crash are therefore safe.
//   - Missing rows are reported as ErrNotFound.
//   - On other DB errors the raw gorm error is propagated; the service
//     layer converts those into safe defaults.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tpetrou/go-vouchguard/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a vouch with the same idempotency key has
// already been stored.
var ErrDuplicate = errors.New("duplicate")

// CreateVouch inserts a vouch row. The normalized shadow columns are
// derived here so callers never have to remember them. An exact repeat of
// the same physical event (same author, chat, message and target) is
// silently rejected with ErrDuplicate.
func CreateVouch(ctx context.Context, db *gorm.DB, v *domain.Vouch) error {
	v.FromUsernameLower = strings.ToLower(v.FromUsername)
	v.ToUsernameLower = strings.ToLower(v.ToUsername)
	v.FromDisplayNameLower = strings.ToLower(v.FromDisplayName)
	v.ToDisplayNameLower = strings.ToLower(v.ToDisplayName)
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	var n int64
	err := db.WithContext(ctx).Model(&domain.Vouch{}).
		Where("from_user_id = ? AND chat_id = ? AND message_id = ? AND to_username_lower = ?",
			v.FromUserID, v.ChatID, v.MessageID, v.ToUsernameLower).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicate
	}

	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// RecentDuplicateExists reports whether the same author already vouched for
// the same target with the same polarity inside the window. This is the
// write-time policy check behind the 24h duplicate-suppression rule; it is
// deliberately separate from the idempotency key.
func RecentDuplicateExists(ctx context.Context, db *gorm.DB, fromUserID int64, targetUsername string, polarity domain.Polarity, window time.Duration) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Vouch{}).
		Where("from_user_id = ? AND to_username_lower = ? AND polarity = ? AND created_at > ?",
			fromUserID, strings.ToLower(targetUsername), polarity, time.Now().UTC().Add(-window)).
		Count(&n).Error
	return n > 0, err
}

// SearchFilter narrows a ledger search.
type SearchFilter struct {
	ChatID   *int64
	Polarity *domain.Polarity
	Limit    int
}

// SearchVouches performs a case-insensitive substring match over author
// handle, target handle and both display names, newest first. Usernames
// recorded in the rename history also resolve: searching a user's current
// handle returns vouches stored under any earlier alias, via the backfilled
// numeric target id.
func SearchVouches(ctx context.Context, db *gorm.DB, query string, f SearchFilter) ([]domain.Vouch, error) {
	clean := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(query), "@"))
	like := "%" + clean + "%"

	var aliasIDs []int64
	if err := db.WithContext(ctx).Model(&domain.UsernameHistory{}).
		Where("username_lower LIKE ?", like).
		Distinct().
		Pluck("user_id", &aliasIDs).Error; err != nil {
		return nil, err
	}

	q := db.WithContext(ctx).Model(&domain.Vouch{})
	if len(aliasIDs) > 0 {
		q = q.Where(
			"from_username_lower LIKE ? OR to_username_lower LIKE ? OR from_display_name_lower LIKE ? OR to_display_name_lower LIKE ? OR to_user_id IN ?",
			like, like, like, like, aliasIDs)
	} else {
		q = q.Where(
			"from_username_lower LIKE ? OR to_username_lower LIKE ? OR from_display_name_lower LIKE ? OR to_display_name_lower LIKE ?",
			like, like, like, like)
	}
	if f.ChatID != nil {
		q = q.Where("chat_id = ?", *f.ChatID)
	}
	if f.Polarity != nil {
		q = q.Where("polarity = ?", *f.Polarity)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var out []domain.Vouch
	err := q.Order("created_at desc").Limit(limit).Find(&out).Error
	return out, err
}

// VoucherCount is one leaderboard row.
type VoucherCount struct {
	FromUserID      int64  `json:"from_user_id"`
	FromUsername    string `json:"from_username"`
	FromDisplayName string `json:"from_display_name"`
	Count           int64  `json:"count"`
}

// TopVouchers counts vouches per author inside the window, ordered by
// count descending with the author id as a deterministic tiebreak.
func TopVouchers(ctx context.Context, db *gorm.DB, chatID *int64, since time.Time, polarity domain.Polarity, limit int) ([]VoucherCount, error) {
	if limit <= 0 {
		limit = 10
	}
	q := db.WithContext(ctx).Model(&domain.Vouch{}).
		Select("from_user_id, from_username, from_display_name, COUNT(*) as count").
		Where("polarity = ? AND created_at > ?", polarity, since).
		Group("from_user_id, from_username, from_display_name").
		Order("count DESC, from_user_id ASC").
		Limit(limit)
	if chatID != nil {
		q = q.Where("chat_id = ?", *chatID)
	}
	var rows []VoucherCount
	err := q.Scan(&rows).Error
	return rows, err
}

// PriorVouchers returns the most recent distinct authors who gave the
// target a vouch of the given polarity, newest first, capped at limit.
// Used to render "Last to vouch" on negative vouches.
func PriorVouchers(ctx context.Context, db *gorm.DB, targetUsername string, polarity domain.Polarity, limit int) ([]VoucherCount, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []VoucherCount
	err := db.WithContext(ctx).Model(&domain.Vouch{}).
		Select("from_user_id, from_username, from_display_name, MAX(created_at) as last_at").
		Where("to_username_lower = ? AND polarity = ?", strings.ToLower(targetUsername), polarity).
		Group("from_user_id, from_username, from_display_name").
		Order("last_at DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// ResolveUsername backfills to_user_id on every unresolved vouch targeting
// the username (optionally scoped to one chat) and appends the mapping to
// the rename history. It is idempotent: repeating the same mapping updates
// nothing and inserts nothing new. Returns the number of rows backfilled.
func ResolveUsername(ctx context.Context, db *gorm.DB, chatID *int64, username string, userID int64) (int64, error) {
	lower := strings.ToLower(strings.TrimPrefix(username, "@"))
	if lower == "" || userID == 0 {
		return 0, nil
	}

	q := db.WithContext(ctx).Model(&domain.Vouch{}).
		Where("to_username_lower = ? AND to_user_id IS NULL", lower)
	if chatID != nil {
		q = q.Where("chat_id = ?", *chatID)
	}
	res := q.Update("to_user_id", userID)
	if res.Error != nil {
		return 0, res.Error
	}

	hist := domain.UsernameHistory{
		UsernameLower: lower,
		UserID:        userID,
		FirstSeenAt:   time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Where("username_lower = ? AND user_id = ?", lower, userID).
		FirstOrCreate(&hist).Error
	if err != nil {
		return res.RowsAffected, err
	}
	return res.RowsAffected, nil
}

// GetVouchByMessage fetches the vouch stored for a given chat/message pair,
// or ErrNotFound.
func GetVouchByMessage(ctx context.Context, db *gorm.DB, chatID, messageID int64) (*domain.Vouch, error) {
	var v domain.Vouch
	err := db.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DeleteVouchByID hard-removes a vouch row. Ownership checks belong to the
// service layer. Returns ErrNotFound when no row was deleted.
func DeleteVouchByID(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).Delete(&domain.Vouch{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVouchMessageID backfills the provenance message id on the most recent
// placeholder row (message_id = 0) in a chat, once the repost is confirmed
// sent. Returns ErrNotFound when no placeholder exists.
func SetVouchMessageID(ctx context.Context, db *gorm.DB, chatID, messageID int64) error {
	var v domain.Vouch
	err := db.WithContext(ctx).
		Where("chat_id = ? AND message_id = 0", chatID).
		Order("created_at desc").
		First(&v).Error
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Model(&domain.Vouch{}).
		Where("id = ?", v.ID).
		Update("message_id", messageID).Error
}
