// Package domain defines the persistence models for the vouch ledger.
// These types are mapped with GORM and form the durable data layer of the
// moderation service: vouches survive message deletion and account renames.
package domain

import "time"

// Vouch is the durable reputation record: one row per (message, target).
// A vouch is immutable once stored except for a one-time backfill of
// ToUserID once the target's numeric identity is resolved, and hard
// deletion by its author or an admin.
//
// Fields:
//   - FromUserID: stable numeric id of the author (required).
//   - FromUsername / FromDisplayName: mutable display identity, nullable.
//   - ToUserID: numeric id of the target, nil until resolved.
//   - ToUsername / ToDisplayName: target display identity; at least one
//     target field must be non-empty at creation.
//   - Polarity: "pos" or "neg".
//   - OriginalText: raw message text as submitted, kept for audit/search.
//   - CanonicalText: normalized display rendering of the vouch.
//   - ChatID / MessageID: provenance; MessageID is 0 (placeholder) until a
//     repost message is confirmed sent.
//   - IsSanitized: true when the stored text differs from the raw input
//     because a violation was filtered out.
//
// The *Lower columns shadow their display counterparts for indexed
// case-insensitive search. The composite unique index on
// (from_user_id, chat_id, message_id, to_username_lower) is the
// idempotency key that makes storage safe under at-least-once delivery.
type Vouch struct {
	ID              int64     `json:"id"                gorm:"primaryKey;autoIncrement"`
	FromUserID      int64     `json:"from_user_id"      gorm:"not null;index;uniqueIndex:ux_vouch_event,priority:1"`
	FromUsername    string    `json:"from_username"     gorm:"type:varchar(64)"`
	FromDisplayName string    `json:"from_display_name" gorm:"type:varchar(128)"`
	ToUserID        *int64    `json:"to_user_id,omitempty" gorm:"index"`
	ToUsername      string    `json:"to_username"       gorm:"type:varchar(64)"`
	ToDisplayName   string    `json:"to_display_name"   gorm:"type:varchar(128)"`
	Polarity        Polarity  `json:"polarity"          gorm:"type:varchar(3);not null;check:polarity IN ('pos','neg');index"`
	OriginalText    string    `json:"original_text"     gorm:"type:text"`
	CanonicalText   string    `json:"canonical_text"    gorm:"type:text;not null"`
	ChatID          int64     `json:"chat_id"           gorm:"not null;index;uniqueIndex:ux_vouch_event,priority:2"`
	MessageID       int64     `json:"message_id"        gorm:"uniqueIndex:ux_vouch_event,priority:3"`
	CreatedAt       time.Time `json:"created_at"        gorm:"index"`
	IsSanitized     bool      `json:"is_sanitized"`

	// Normalized shadows for indexed case-insensitive search.
	FromUsernameLower    string `json:"-" gorm:"type:varchar(64);index"`
	ToUsernameLower      string `json:"-" gorm:"type:varchar(64);index;uniqueIndex:ux_vouch_event,priority:4"`
	FromDisplayNameLower string `json:"-" gorm:"type:varchar(128);index"`
	ToDisplayNameLower   string `json:"-" gorm:"type:varchar(128);index"`
}

// TableName returns the database table name for Vouch.
func (Vouch) TableName() string { return "vouches" }

// UsernameHistory is an append-only mapping from a lower-cased username to
// a numeric user id, timestamped at first observation. Multiple historical
// usernames may map to the same id over time (rename tracking); rows are
// never deleted, so searches by any past alias keep resolving.
type UsernameHistory struct {
	ID            int64     `json:"id"             gorm:"primaryKey;autoIncrement"`
	UsernameLower string    `json:"username_lower" gorm:"type:varchar(64);not null;uniqueIndex:ux_username_user,priority:1"`
	UserID        int64     `json:"user_id"        gorm:"not null;index;uniqueIndex:ux_username_user,priority:2"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
}

// TableName returns the database table name for UsernameHistory.
func (UsernameHistory) TableName() string { return "username_history" }

// SyncState is the per-chat recovery cursor: the last externally scanned
// message id, when the scan ran, and how many vouches it recovered. One row
// per chat, upserted.
type SyncState struct {
	ChatID           int64     `json:"chat_id"           gorm:"primaryKey"`
	LastMessageID    int64     `json:"last_message_id"`
	LastSyncAt       time.Time `json:"last_sync_at"`
	VouchesRecovered int64     `json:"vouches_recovered"`
}

// TableName returns the database table name for SyncState.
func (SyncState) TableName() string { return "sync_state" }
