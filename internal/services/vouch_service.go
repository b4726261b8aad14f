// Package services – VouchService
//
// This file implements VouchService, the application-level component that
// owns the vouch ledger. It records extracted vouch mentions (the command
// path additionally posts a canonical block), enforces the
// duplicate-suppression window, persists rows through the repo layer and
// serves the read side (search, leaderboard, stats).
//
// Storage failures never take the chat surface down: reads degrade to empty
// results and writes degrade to "already recorded" behavior, both with an
// error logged.
//
// Observability: public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tpetrou/go-vouchguard/internal/domain"
	"github.com/tpetrou/go-vouchguard/internal/metrics"
	"github.com/tpetrou/go-vouchguard/internal/moderation"
	"github.com/tpetrou/go-vouchguard/internal/repo"
	"github.com/tpetrou/go-vouchguard/internal/transport"
	"github.com/tpetrou/go-vouchguard/internal/vouch"
)

// VouchService coordinates vouch persistence, canonical reposts and the
// ledger's read side.
type VouchService struct {
	DB      *gorm.DB
	Chat    transport.Chat
	Timers  *transport.TimerQueue
	Matcher *moderation.Matcher
	Log     zerolog.Logger

	// DupWindow is how long a repeat vouch (same author, target,
	// polarity) is suppressed. Zero disables suppression.
	DupWindow time.Duration
	// AckDelay is how long acknowledgement notices stay visible.
	AckDelay time.Duration
	// NoticeDelay is how long rejection notices stay visible.
	NoticeDelay time.Duration
	// NoteMaxLen caps command-path note length in runes.
	NoteMaxLen int
	// AdminID may delete any vouch; everyone else only their own.
	AdminID int64

	// mu serializes the duplicate-check-then-insert sequence so two
	// near-simultaneous copies of the same vouch cannot both pass the
	// window check.
	mu sync.Mutex
}

// NewVouchService constructs a VouchService with the standard timing
// defaults.
func NewVouchService(db *gorm.DB, chat transport.Chat, timers *transport.TimerQueue, m *moderation.Matcher, log zerolog.Logger) *VouchService {
	return &VouchService{
		DB:          db,
		Chat:        chat,
		Timers:      timers,
		Matcher:     m,
		Log:         log,
		DupWindow:   24 * time.Hour,
		AckDelay:    10 * time.Second,
		NoticeDelay: 15 * time.Second,
		NoteMaxLen:  160,
	}
}

// HandleClean stores a vouch that passed moderation. The original message
// stays posted; one row is stored per target and a single short
// acknowledgment follows. Duplicates inside the window are skipped silently
// except for a short notice.
func (s *VouchService) HandleClean(ctx context.Context, msg transport.Message, info *vouch.Info) error {
	tr := otel.Tracer("services/VouchService")
	ctx, span := tr.Start(ctx, "HandleClean",
		trace.WithAttributes(
			attribute.Int64("chat.id", msg.ChatID),
			attribute.String("vouch.polarity", string(info.Polarity)),
		),
	)
	defer span.End()

	stored := 0
	for _, target := range info.Targets {
		ok, err := s.store(ctx, msg, info, target, info.Excerpt, false, msg.MessageID)
		if err != nil {
			s.Log.Error().Err(err).Str("target", target).Msg("vouch storage failed")
			continue
		}
		if ok {
			stored++
		}
	}

	if stored == 0 {
		s.notice(msg.ChatID, "This vouch was already recorded recently.", s.NoticeDelay)
		return nil
	}
	s.notice(msg.ChatID, "Vouch recorded.", s.AckDelay)
	return nil
}

// HandleDirty removes a vouch message that carried a moderation violation
// and tells the author why. Nothing is stored.
func (s *VouchService) HandleDirty(ctx context.Context, msg transport.Message, reason string) error {
	tr := otel.Tracer("services/VouchService")
	ctx, span := tr.Start(ctx, "HandleDirty",
		trace.WithAttributes(attribute.Int64("chat.id", msg.ChatID)),
	)
	defer span.End()

	if err := s.Chat.Delete(ctx, msg.ChatID, msg.MessageID); err != nil {
		s.Log.Warn().Err(err).Int64("message_id", msg.MessageID).Msg("could not remove dirty vouch message")
	}
	s.notice(msg.ChatID, "@"+msg.SenderHandle+" your vouch was removed: "+reason+". Please repost it without the flagged content.", s.NoticeDelay)
	return nil
}

// Submit handles the explicit command path (/vouch, /neg). Unlike the
// message path, a note that trips the keyword filter is sanitized locally
// and stored with the sanitized flag set, so the ledger keeps the intent
// without the offending text. Returns the canonical block for the caller
// to post.
func (s *VouchService) Submit(ctx context.Context, msg transport.Message, target string, polarity domain.Polarity, note string) (string, error) {
	tr := otel.Tracer("services/VouchService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.Int64("chat.id", msg.ChatID),
			attribute.String("vouch.polarity", string(polarity)),
		),
	)
	defer span.End()

	if !polarity.Valid() {
		return "", ErrInvalidPolarity
	}
	target = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(target), "@"))
	if target == "" || strings.EqualFold(target, msg.SenderHandle) {
		return "", ErrNoTarget
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return "", ErrEmptyNote
	}
	if s.NoteMaxLen > 0 && utf8.RuneCountInString(note) > s.NoteMaxLen {
		note = string([]rune(note)[:s.NoteMaxLen])
	}

	sanitized := s.Matcher.Sanitize(note)
	isSanitized := sanitized != note
	if isSanitized {
		metrics.VouchesSanitized.Inc()
	}

	info := &vouch.Info{
		AuthorHandle: msg.SenderHandle,
		Targets:      []string{target},
		Polarity:     polarity,
		Excerpt:      sanitized,
	}
	// Rows start as placeholders; the repost id is backfilled once the
	// canonical block is confirmed posted.
	ok, err := s.store(ctx, msg, info, target, sanitized, isSanitized, 0)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrDuplicateVouch
	}

	text := s.canonical(ctx, msg, info, target, sanitized)
	id, err := s.Chat.Deliver(ctx, transport.Delivery{ChatID: msg.ChatID, Text: text})
	if err != nil {
		s.Log.Error().Err(err).Msg("canonical repost failed")
		return text, nil
	}
	if err := repo.SetVouchMessageID(ctx, s.DB, msg.ChatID, id); err != nil {
		s.Log.Warn().Err(err).Int64("message_id", id).Msg("repost id backfill failed")
	}
	return text, nil
}

// store runs the serialized duplicate-check and insert sequence for a single
// target. messageID is the provenance column value: the message path passes
// the inbound id, the command path a placeholder. Reports whether a row was
// stored.
func (s *VouchService) store(ctx context.Context, msg transport.Message, info *vouch.Info, target, excerpt string, isSanitized bool, messageID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DupWindow > 0 {
		dup, err := repo.RecentDuplicateExists(ctx, s.DB, msg.SenderID, target, info.Polarity, s.DupWindow)
		if err != nil {
			// Storing twice is cheaper than losing a vouch.
			s.Log.Error().Err(err).Msg("duplicate check failed, storing anyway")
		} else if dup {
			metrics.VouchesDuplicate.Inc()
			return false, nil
		}
	}

	text := s.canonical(ctx, msg, info, target, excerpt)

	var toID *int64
	if id, ok := msg.MentionIDs[target]; ok && id != 0 {
		toID = &id
	}
	v := &domain.Vouch{
		FromUserID:      msg.SenderID,
		FromUsername:    msg.SenderHandle,
		FromDisplayName: msg.SenderName,
		ToUserID:        toID,
		ToUsername:      target,
		Polarity:        info.Polarity,
		OriginalText:    msg.Text,
		CanonicalText:   text,
		ChatID:          msg.ChatID,
		MessageID:       messageID,
		IsSanitized:     isSanitized,
	}
	err := repo.CreateVouch(ctx, s.DB, v)
	if errors.Is(err, repo.ErrDuplicate) {
		metrics.VouchesDuplicate.Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if toID != nil {
		if _, rerr := repo.ResolveUsername(ctx, s.DB, &msg.ChatID, target, *toID); rerr != nil {
			s.Log.Warn().Err(rerr).Str("target", target).Msg("username history append failed")
		}
	}
	metrics.VouchesStored.WithLabelValues(string(info.Polarity)).Inc()
	return true, nil
}

// canonical renders the canonical block for one target, fetching watchers
// for negative vouches. Watcher lookup failures degrade to an empty list.
func (s *VouchService) canonical(ctx context.Context, msg transport.Message, info *vouch.Info, target, excerpt string) string {
	var watchers []string
	if info.Polarity == domain.PolarityNegative {
		prior, err := repo.PriorVouchers(ctx, s.DB, target, domain.PolarityPositive, 5)
		if err != nil {
			s.Log.Warn().Err(err).Str("target", target).Msg("watcher lookup failed")
		}
		for _, p := range prior {
			if p.FromUsername != "" {
				watchers = append(watchers, p.FromUsername)
			}
		}
	}
	return vouch.FormatCanonical(vouch.Entry{
		Target:   target,
		Author:   msg.SenderHandle,
		Polarity: info.Polarity,
		Excerpt:  excerpt,
		Watchers: watchers,
	})
}

// Search runs a case-insensitive ledger search. Storage errors degrade to
// an empty result.
func (s *VouchService) Search(ctx context.Context, query string, f repo.SearchFilter) []domain.Vouch {
	tr := otel.Tracer("services/VouchService")
	ctx, span := tr.Start(ctx, "Search")
	defer span.End()

	out, err := repo.SearchVouches(ctx, s.DB, query, f)
	if err != nil {
		s.Log.Error().Err(err).Msg("vouch search failed")
		return []domain.Vouch{}
	}
	return out
}

// Leaderboard returns the most active vouchers over the window.
func (s *VouchService) Leaderboard(ctx context.Context, chatID *int64, days int, polarity domain.Polarity, limit int) []repo.VoucherCount {
	tr := otel.Tracer("services/VouchService")
	ctx, span := tr.Start(ctx, "Leaderboard")
	defer span.End()

	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	rows, err := repo.TopVouchers(ctx, s.DB, chatID, since, polarity, limit)
	if err != nil {
		s.Log.Error().Err(err).Msg("leaderboard query failed")
		return []repo.VoucherCount{}
	}
	return rows
}

// Stats returns ledger totals, or nil on storage failure.
func (s *VouchService) Stats(ctx context.Context, chatID *int64) *repo.LedgerStats {
	tr := otel.Tracer("services/VouchService")
	ctx, span := tr.Start(ctx, "Stats")
	defer span.End()

	stats, err := repo.VouchStats(ctx, s.DB, chatID)
	if err != nil {
		s.Log.Error().Err(err).Msg("stats query failed")
		return nil
	}
	return stats
}

// Delete removes a vouch identified by its chat/message pair. Only the
// vouch author or the admin may delete it.
func (s *VouchService) Delete(ctx context.Context, chatID, messageID, requesterID int64) error {
	tr := otel.Tracer("services/VouchService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	v, err := repo.GetVouchByMessage(ctx, s.DB, chatID, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrVouchNotFound
	}
	if err != nil {
		return err
	}
	if v.FromUserID != requesterID && requesterID != s.AdminID {
		return ErrForbidden
	}
	if err := repo.DeleteVouchByID(ctx, s.DB, v.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrVouchNotFound
		}
		return err
	}
	return nil
}

// ResolveUsername records a handle-to-id mapping and backfills unresolved
// ledger rows. Returns the number of rows backfilled.
func (s *VouchService) ResolveUsername(ctx context.Context, chatID *int64, username string, userID int64) (int64, error) {
	tr := otel.Tracer("services/VouchService")
	ctx, span := tr.Start(ctx, "ResolveUsername")
	defer span.End()

	return repo.ResolveUsername(ctx, s.DB, chatID, username, userID)
}

// notice posts a short auto-expiring message. Failures are logged only.
func (s *VouchService) notice(chatID int64, text string, ttl time.Duration) {
	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	id, err := s.Chat.Deliver(ctx, transport.Delivery{ChatID: chatID, Text: text})
	if err != nil {
		s.Log.Warn().Err(err).Msg("notice delivery failed")
		return
	}
	if s.Timers != nil && ttl > 0 {
		s.Timers.DeleteAfter(chatID, id, ttl)
	}
}
