package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tpetrou/go-vouchguard/internal/domain"
)

// GetSyncState returns the recovery cursor for a chat, or nil when the
// chat has never been synced.
func GetSyncState(ctx context.Context, db *gorm.DB, chatID int64) (*domain.SyncState, error) {
	var s domain.SyncState
	err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSyncState advances the recovery cursor for a chat. The cursor only
// moves forward; a stale lastMessageID is ignored so concurrent recovery
// passes cannot rewind it.
func UpsertSyncState(ctx context.Context, db *gorm.DB, chatID, lastMessageID int64, recovered int64) error {
	existing, err := GetSyncState(ctx, db, chatID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if existing == nil {
		return db.WithContext(ctx).Create(&domain.SyncState{
			ChatID:           chatID,
			LastMessageID:    lastMessageID,
			LastSyncAt:       now,
			VouchesRecovered: recovered,
		}).Error
	}
	updates := map[string]any{
		"last_sync_at":      now,
		"vouches_recovered": existing.VouchesRecovered + recovered,
	}
	if lastMessageID > existing.LastMessageID {
		updates["last_message_id"] = lastMessageID
	}
	return db.WithContext(ctx).Model(&domain.SyncState{}).
		Where("chat_id = ?", chatID).
		Updates(updates).Error
}
