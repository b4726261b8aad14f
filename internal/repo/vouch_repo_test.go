package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tpetrou/go-vouchguard/internal/domain"
)

// ---------- test helpers ----------

func newLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Vouch{}, &domain.UsernameHistory{}, &domain.SyncState{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mkVouch(fromID int64, fromUser, toUser string, pol domain.Polarity, chatID, msgID int64) *domain.Vouch {
	return &domain.Vouch{
		FromUserID:    fromID,
		FromUsername:  fromUser,
		ToUsername:    toUser,
		Polarity:      pol,
		OriginalText:  "vouch @" + toUser,
		CanonicalText: "POS VOUCH @" + toUser,
		ChatID:        chatID,
		MessageID:     msgID,
	}
}

func mustCreate(t *testing.T, db *gorm.DB, v *domain.Vouch) {
	t.Helper()
	if err := CreateVouch(context.Background(), db, v); err != nil {
		t.Fatalf("seed vouch: %v", err)
	}
}

// ---------- CreateVouch ----------

func TestCreateVouch_DerivesShadowColumns(t *testing.T) {
	db := newLedgerDB(t)
	v := mkVouch(1, "Alice", "BobTheTrader", domain.PolarityPositive, 100, 1)
	v.FromDisplayName = "Alice W"
	mustCreate(t, db, v)

	var got domain.Vouch
	if err := db.First(&got, v.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.FromUsernameLower != "alice" || got.ToUsernameLower != "bobthetrader" {
		t.Fatalf("shadow columns not derived: %#v", got)
	}
	if got.FromDisplayNameLower != "alice w" {
		t.Fatalf("display shadow = %q", got.FromDisplayNameLower)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("created_at not defaulted")
	}
}

func TestCreateVouch_IdempotencyKey(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	mustCreate(t, db, mkVouch(1, "alice", "bob", domain.PolarityPositive, 100, 7))

	// Same (author, chat, message, target) is rejected.
	err := CreateVouch(ctx, db, mkVouch(1, "alice", "bob", domain.PolarityPositive, 100, 7))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Target casing does not dodge the key.
	err = CreateVouch(ctx, db, mkVouch(1, "alice", "BOB", domain.PolarityPositive, 100, 7))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for case variant, got %v", err)
	}

	// A different message id is a distinct event.
	if err := CreateVouch(ctx, db, mkVouch(1, "alice", "bob", domain.PolarityPositive, 100, 8)); err != nil {
		t.Fatalf("distinct event rejected: %v", err)
	}
	// Same message, different target (multi-target vouch) is also distinct.
	if err := CreateVouch(ctx, db, mkVouch(1, "alice", "carol", domain.PolarityPositive, 100, 7)); err != nil {
		t.Fatalf("second target rejected: %v", err)
	}
}

// ---------- RecentDuplicateExists ----------

func TestRecentDuplicateExists(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	v := mkVouch(1, "alice", "bob", domain.PolarityPositive, 100, 1)
	v.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	mustCreate(t, db, v)

	got, err := RecentDuplicateExists(ctx, db, 1, "BOB", domain.PolarityPositive, 3*time.Hour)
	if err != nil || !got {
		t.Fatalf("expected duplicate inside window, got %v err=%v", got, err)
	}

	// Outside the window.
	got, err = RecentDuplicateExists(ctx, db, 1, "bob", domain.PolarityPositive, time.Hour)
	if err != nil || got {
		t.Fatalf("expected no duplicate outside window, got %v err=%v", got, err)
	}
	// Opposite polarity is not a duplicate.
	got, err = RecentDuplicateExists(ctx, db, 1, "bob", domain.PolarityNegative, 3*time.Hour)
	if err != nil || got {
		t.Fatalf("polarity must scope the check, got %v err=%v", got, err)
	}
	// Different author is not a duplicate.
	got, err = RecentDuplicateExists(ctx, db, 2, "bob", domain.PolarityPositive, 3*time.Hour)
	if err != nil || got {
		t.Fatalf("author must scope the check, got %v err=%v", got, err)
	}
}

// ---------- SearchVouches ----------

func TestSearchVouches_SubstringAndFilters(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	mustCreate(t, db, mkVouch(1, "alice", "BobTheTrader", domain.PolarityPositive, 100, 1))
	mustCreate(t, db, mkVouch(2, "carol", "bobthetrader", domain.PolarityNegative, 200, 2))
	mustCreate(t, db, mkVouch(3, "dave", "someone", domain.PolarityPositive, 100, 3))

	got, err := SearchVouches(ctx, db, "@Bob", SearchFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(got))
	}

	chatID := int64(100)
	got, err = SearchVouches(ctx, db, "bob", SearchFilter{ChatID: &chatID})
	if err != nil || len(got) != 1 || got[0].ChatID != 100 {
		t.Fatalf("chat filter failed: %v err=%v", got, err)
	}

	neg := domain.PolarityNegative
	got, err = SearchVouches(ctx, db, "bob", SearchFilter{Polarity: &neg})
	if err != nil || len(got) != 1 || got[0].Polarity != neg {
		t.Fatalf("polarity filter failed: %v err=%v", got, err)
	}

	// Author handles are searchable too.
	got, err = SearchVouches(ctx, db, "carol", SearchFilter{})
	if err != nil || len(got) != 1 {
		t.Fatalf("author search failed: %v err=%v", got, err)
	}

	got, err = SearchVouches(ctx, db, "nosuchuser", SearchFilter{})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v err=%v", got, err)
	}
}

func TestSearchVouches_NewestFirstAndLimit(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		v := mkVouch(1, "alice", "bob", domain.PolarityPositive, 100, int64(i+1))
		v.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		mustCreate(t, db, v)
	}

	got, err := SearchVouches(ctx, db, "bob", SearchFilter{Limit: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit ignored, got %d", len(got))
	}
	if !got[0].CreatedAt.After(got[1].CreatedAt) {
		t.Fatalf("not newest first: %v then %v", got[0].CreatedAt, got[1].CreatedAt)
	}
}

func TestSearchVouches_ResolvesRenamedTargets(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	// Vouch stored under the target's old handle, then the target is
	// resolved to a numeric id and later observed under a new handle.
	mustCreate(t, db, mkVouch(1, "alice", "oldname", domain.PolarityPositive, 100, 1))

	if _, err := ResolveUsername(ctx, db, nil, "oldname", 42); err != nil {
		t.Fatalf("resolve old handle: %v", err)
	}
	if _, err := ResolveUsername(ctx, db, nil, "newname", 42); err != nil {
		t.Fatalf("resolve new handle: %v", err)
	}

	got, err := SearchVouches(ctx, db, "newname", SearchFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ToUsername != "oldname" {
		t.Fatalf("alias search failed: %v", got)
	}
}

// ---------- TopVouchers ----------

func TestTopVouchers(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustCreate(t, db, mkVouch(1, "alice", fmt.Sprintf("t%d", i), domain.PolarityPositive, 100, int64(i+1)))
	}
	mustCreate(t, db, mkVouch(2, "carol", "t0", domain.PolarityPositive, 100, 10))
	mustCreate(t, db, mkVouch(3, "dave", "t0", domain.PolarityPositive, 100, 11))
	// Negative vouches never count toward the positive leaderboard.
	mustCreate(t, db, mkVouch(2, "carol", "t1", domain.PolarityNegative, 100, 12))

	since := time.Now().UTC().Add(-time.Hour)
	rows, err := TopVouchers(ctx, db, nil, since, domain.PolarityPositive, 10)
	if err != nil {
		t.Fatalf("top vouchers: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].FromUserID != 1 || rows[0].Count != 3 {
		t.Fatalf("leader wrong: %#v", rows[0])
	}
	// Equal counts break ties by author id ascending.
	if rows[1].FromUserID != 2 || rows[2].FromUserID != 3 {
		t.Fatalf("tiebreak wrong: %#v", rows[1:])
	}
}

func TestTopVouchers_WindowAndChatScope(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	old := mkVouch(1, "alice", "bob", domain.PolarityPositive, 100, 1)
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	mustCreate(t, db, old)
	mustCreate(t, db, mkVouch(2, "carol", "bob", domain.PolarityPositive, 200, 2))

	since := time.Now().UTC().Add(-24 * time.Hour)
	rows, err := TopVouchers(ctx, db, nil, since, domain.PolarityPositive, 10)
	if err != nil || len(rows) != 1 || rows[0].FromUserID != 2 {
		t.Fatalf("window not applied: %v err=%v", rows, err)
	}

	chatID := int64(100)
	rows, err = TopVouchers(ctx, db, &chatID, time.Now().UTC().Add(-100*time.Hour), domain.PolarityPositive, 10)
	if err != nil || len(rows) != 1 || rows[0].FromUserID != 1 {
		t.Fatalf("chat scope not applied: %v err=%v", rows, err)
	}
}

// ---------- PriorVouchers ----------

func TestPriorVouchers(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, author := range []string{"a1", "a2", "a3"} {
		v := mkVouch(int64(i+1), author, "Target", domain.PolarityPositive, 100, int64(i+1))
		v.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		mustCreate(t, db, v)
	}
	// A negative vouch for the same target is never a prior endorsement.
	mustCreate(t, db, mkVouch(9, "critic", "target", domain.PolarityNegative, 100, 9))

	rows, err := PriorVouchers(ctx, db, "target", domain.PolarityPositive, 2)
	if err != nil {
		t.Fatalf("prior vouchers: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].FromUsername != "a3" || rows[1].FromUsername != "a2" {
		t.Fatalf("not newest first: %#v", rows)
	}
}

// ---------- ResolveUsername ----------

func TestResolveUsername_BackfillAndHistory(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	mustCreate(t, db, mkVouch(1, "alice", "Bob", domain.PolarityPositive, 100, 1))
	mustCreate(t, db, mkVouch(2, "carol", "bob", domain.PolarityPositive, 200, 2))

	n, err := ResolveUsername(ctx, db, nil, "@Bob", 42)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 backfilled rows, got %d", n)
	}

	var v domain.Vouch
	if err := db.First(&v, "to_username_lower = ? AND chat_id = ?", "bob", int64(100)).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if v.ToUserID == nil || *v.ToUserID != 42 {
		t.Fatalf("to_user_id not backfilled: %#v", v.ToUserID)
	}

	// Idempotent: nothing left to backfill, no duplicate history row.
	n, err = ResolveUsername(ctx, db, nil, "bob", 42)
	if err != nil || n != 0 {
		t.Fatalf("expected idempotent repeat, got n=%d err=%v", n, err)
	}
	var hist int64
	if err := db.Model(&domain.UsernameHistory{}).Where("username_lower = ?", "bob").Count(&hist).Error; err != nil {
		t.Fatalf("count history: %v", err)
	}
	if hist != 1 {
		t.Fatalf("expected 1 history row, got %d", hist)
	}
}

func TestResolveUsername_ChatScopeAndNoops(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	mustCreate(t, db, mkVouch(1, "alice", "bob", domain.PolarityPositive, 100, 1))
	mustCreate(t, db, mkVouch(2, "carol", "bob", domain.PolarityPositive, 200, 2))

	chatID := int64(100)
	n, err := ResolveUsername(ctx, db, &chatID, "bob", 42)
	if err != nil || n != 1 {
		t.Fatalf("expected scoped backfill of 1, got n=%d err=%v", n, err)
	}

	if n, err := ResolveUsername(ctx, db, nil, "", 42); err != nil || n != 0 {
		t.Fatalf("empty username must noop, got n=%d err=%v", n, err)
	}
	if n, err := ResolveUsername(ctx, db, nil, "bob", 0); err != nil || n != 0 {
		t.Fatalf("zero user id must noop, got n=%d err=%v", n, err)
	}
}

// ---------- GetVouchByMessage / DeleteVouchByID / SetVouchMessageID ----------

func TestGetVouchByMessage(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	mustCreate(t, db, mkVouch(1, "alice", "bob", domain.PolarityPositive, 100, 5))

	v, err := GetVouchByMessage(ctx, db, 100, 5)
	if err != nil || v.ToUsername != "bob" {
		t.Fatalf("get: %#v err=%v", v, err)
	}

	if _, err := GetVouchByMessage(ctx, db, 100, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteVouchByID(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	v := mkVouch(1, "alice", "bob", domain.PolarityPositive, 100, 5)
	mustCreate(t, db, v)

	if err := DeleteVouchByID(ctx, db, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := DeleteVouchByID(ctx, db, v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat, got %v", err)
	}
}

func TestSetVouchMessageID(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	older := mkVouch(1, "alice", "bob", domain.PolarityPositive, 100, 0)
	older.CreatedAt = base
	mustCreate(t, db, older)
	newer := mkVouch(1, "alice", "carol", domain.PolarityPositive, 100, 0)
	newer.CreatedAt = base.Add(time.Minute)
	mustCreate(t, db, newer)

	if err := SetVouchMessageID(ctx, db, 100, 777); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	var got domain.Vouch
	if err := db.First(&got, newer.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.MessageID != 777 {
		t.Fatalf("most recent placeholder not updated: %#v", got)
	}
	var untouched domain.Vouch
	if err := db.First(&untouched, older.ID).Error; err != nil {
		t.Fatalf("reload older: %v", err)
	}
	if untouched.MessageID != 0 {
		t.Fatalf("older placeholder was touched: %#v", untouched)
	}

	if err := SetVouchMessageID(ctx, db, 999, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no placeholder, got %v", err)
	}
}

// ---------- VouchStats ----------

func TestVouchStats(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	mustCreate(t, db, mkVouch(1, "alice", "bob", domain.PolarityPositive, 100, 1))
	mustCreate(t, db, mkVouch(2, "carol", "bob", domain.PolarityNegative, 100, 2))
	sanitized := mkVouch(3, "dave", "bob", domain.PolarityPositive, 200, 3)
	sanitized.IsSanitized = true
	mustCreate(t, db, sanitized)
	old := mkVouch(4, "erin", "bob", domain.PolarityPositive, 100, 4)
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	mustCreate(t, db, old)

	s, err := VouchStats(ctx, db, nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.Total != 4 || s.Positive != 3 || s.Negative != 1 || s.Sanitized != 1 || s.Recent24h != 3 {
		t.Fatalf("unexpected stats %#v", s)
	}

	chatID := int64(200)
	s, err = VouchStats(ctx, db, &chatID)
	if err != nil || s.Total != 1 || s.Sanitized != 1 {
		t.Fatalf("scoped stats wrong: %#v err=%v", s, err)
	}
}

// ---------- SyncState ----------

func TestSyncState_UpsertForwardOnly(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	s, err := GetSyncState(ctx, db, 100)
	if err != nil || s != nil {
		t.Fatalf("expected no cursor yet, got %#v err=%v", s, err)
	}

	if err := UpsertSyncState(ctx, db, 100, 50, 2); err != nil {
		t.Fatalf("create cursor: %v", err)
	}
	if err := UpsertSyncState(ctx, db, 100, 80, 3); err != nil {
		t.Fatalf("advance cursor: %v", err)
	}
	// A stale cursor must not rewind the position.
	if err := UpsertSyncState(ctx, db, 100, 60, 1); err != nil {
		t.Fatalf("stale upsert: %v", err)
	}

	s, err = GetSyncState(ctx, db, 100)
	if err != nil || s == nil {
		t.Fatalf("load cursor: %#v err=%v", s, err)
	}
	if s.LastMessageID != 80 {
		t.Fatalf("cursor rewound to %d", s.LastMessageID)
	}
	if s.VouchesRecovered != 6 {
		t.Fatalf("recovered total = %d, want 6", s.VouchesRecovered)
	}
}
