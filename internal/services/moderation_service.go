// Package services – ModerationService
//
// This file implements ModerationService, the entry point for every inbound
// group message. It deduplicates redelivered updates, applies velocity and
// new-account gates, routes vouch requests to polls, runs the layered
// moderation pipeline and carries out its verdict: remove and strike, or
// hand clean vouches to the VouchService.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tpetrou/go-vouchguard/internal/domain"
	"github.com/tpetrou/go-vouchguard/internal/metrics"
	"github.com/tpetrou/go-vouchguard/internal/pipeline"
	"github.com/tpetrou/go-vouchguard/internal/track"
	"github.com/tpetrou/go-vouchguard/internal/transport"
	"github.com/tpetrou/go-vouchguard/internal/vouch"
)

// ModerationService ties the pipeline verdict to chat-side actions.
type ModerationService struct {
	Pipeline *pipeline.Pipeline
	Vouches  *VouchService
	Chat     transport.Chat
	Timers   *transport.TimerQueue
	Velocity *track.Velocity
	Accounts *track.AccountAges
	Strikes  *track.Strikes
	Log      zerolog.Logger

	// AdminID is exempt from removals and rate limits.
	AdminID int64
	// NoticeDelay is how long rejection notices stay visible.
	NoticeDelay time.Duration
	// MuteDuration is applied when a user reaches the strike limit.
	MuteDuration time.Duration
	// DedupWindow is how long a processed (chat, message) pair is
	// remembered so redelivered updates are dropped.
	DedupWindow time.Duration

	dedupMu   sync.Mutex
	processed map[[2]int64]time.Time
	lastPrune time.Time
	now       func() time.Time
}

// NewModerationService wires the moderation flow with standard timing
// defaults.
func NewModerationService(p *pipeline.Pipeline, vs *VouchService, chat transport.Chat, timers *transport.TimerQueue, vel *track.Velocity, acc *track.AccountAges, strikes *track.Strikes, log zerolog.Logger) *ModerationService {
	return &ModerationService{
		Pipeline:     p,
		Vouches:      vs,
		Chat:         chat,
		Timers:       timers,
		Velocity:     vel,
		Accounts:     acc,
		Strikes:      strikes,
		Log:          log,
		NoticeDelay:  15 * time.Second,
		MuteDuration: time.Hour,
		DedupWindow:  300 * time.Second,
		processed:    make(map[[2]int64]time.Time),
		now:          time.Now,
	}
}

// HandleMessage processes one inbound group message end to end. It never
// returns an error for policy outcomes; errors mean the message could not
// be evaluated at all.
func (s *ModerationService) HandleMessage(ctx context.Context, msg transport.Message) error {
	tr := otel.Tracer("services/ModerationService")
	ctx, span := tr.Start(ctx, "HandleMessage",
		trace.WithAttributes(
			attribute.Int64("chat.id", msg.ChatID),
			attribute.Int64("message.id", msg.MessageID),
		),
	)
	defer span.End()

	if s.seen(msg.ChatID, msg.MessageID) {
		return nil
	}
	metrics.MessagesScanned.Inc()
	s.Accounts.Observe(msg.SenderID)

	if msg.SenderID != s.AdminID {
		if removed := s.applyGates(ctx, msg); removed {
			return nil
		}
	}

	if vouch.IsVouchRequest(msg.Text) {
		return s.handleVouchRequest(ctx, msg)
	}

	dec := s.Pipeline.Analyze(ctx, msg.Text, msg.SenderID)

	switch {
	case dec.IsVouch && !dec.ShouldRemove:
		info := vouch.Extract(msg.Text, msg.SenderHandle)
		if info == nil {
			// A vouch phrase with no valid target is just chatter.
			return nil
		}
		return s.Vouches.HandleClean(ctx, msg, info)

	case dec.IsVouch && dec.ShouldRemove:
		// A rejected vouch is asked to be reposted clean; strikes are
		// reserved for plain violations.
		return s.Vouches.HandleDirty(ctx, msg, dec.Reason)

	case dec.ShouldRemove:
		s.remove(ctx, msg, dec.Reason, dec.Severity)
		s.recordStrike(ctx, msg, dec)
		return nil
	}
	return nil
}

// applyGates enforces velocity and new-account rules. Returns true when
// the message was removed.
func (s *ModerationService) applyGates(ctx context.Context, msg transport.Message) bool {
	if !s.Velocity.AllowMessage(msg.SenderID) {
		metrics.RateLimited.WithLabelValues("message").Inc()
		s.remove(ctx, msg, "Sending messages too quickly", domain.SeverityLow)
		return true
	}
	if msg.HasLink || msg.IsForward {
		if s.Accounts.IsNew(msg.SenderID) {
			metrics.RateLimited.WithLabelValues("new_account").Inc()
			s.remove(ctx, msg, "New accounts cannot post links or forwards yet", domain.SeverityLow)
			return true
		}
	}
	if msg.HasLink && !s.Velocity.AllowLink(msg.SenderID) {
		metrics.RateLimited.WithLabelValues("link").Inc()
		s.remove(ctx, msg, "Posting links too quickly", domain.SeverityLow)
		return true
	}
	return false
}

// handleVouchRequest converts "can anyone vouch for X" style messages into
// a poll instead of letting them sit as free text.
func (s *ModerationService) handleVouchRequest(ctx context.Context, msg transport.Message) error {
	if err := s.Chat.Delete(ctx, msg.ChatID, msg.MessageID); err != nil {
		s.Log.Warn().Err(err).Int64("message_id", msg.MessageID).Msg("could not remove vouch request")
	}
	question := "Vouch request from @" + msg.SenderHandle + ": can anyone vouch?"
	targets := vouch.Mentions(msg.Text)
	if len(targets) > 0 {
		question = "Can anyone vouch for @" + targets[0] + "? (asked by @" + msg.SenderHandle + ")"
	}
	if _, err := s.Chat.CreatePoll(ctx, transport.Poll{
		ChatID:   msg.ChatID,
		Question: question,
		Options:  []string{"Yes, I vouch", "No / don't know them"},
	}); err != nil {
		s.Log.Error().Err(err).Msg("poll creation failed")
	}
	return nil
}

// remove deletes the message and posts an auto-expiring notice.
func (s *ModerationService) remove(ctx context.Context, msg transport.Message, reason string, sev domain.Severity) {
	if err := s.Chat.Delete(ctx, msg.ChatID, msg.MessageID); err != nil {
		s.Log.Warn().Err(err).
			Int64("chat_id", msg.ChatID).
			Int64("message_id", msg.MessageID).
			Msg("message removal failed")
		return
	}
	metrics.Removals.WithLabelValues(string(sev)).Inc()
	s.Log.Info().
		Int64("chat_id", msg.ChatID).
		Int64("user_id", msg.SenderID).
		Str("severity", string(sev)).
		Str("reason", reason).
		Msg("message removed")

	id, err := s.Chat.Deliver(ctx, transport.Delivery{
		ChatID: msg.ChatID,
		Text:   "@" + msg.SenderHandle + " message removed: " + reason,
	})
	if err != nil {
		s.Log.Warn().Err(err).Msg("removal notice failed")
		return
	}
	if s.Timers != nil && s.NoticeDelay > 0 {
		s.Timers.DeleteAfter(msg.ChatID, id, s.NoticeDelay)
	}
}

// recordStrike adds a strike and mutes the user once the limit is reached.
func (s *ModerationService) recordStrike(ctx context.Context, msg transport.Message, dec domain.ModerationDecision) {
	count, escalate := s.Strikes.Record(msg.SenderID, domain.Violation{
		Reason:    dec.Reason,
		Severity:  dec.Severity,
		Timestamp: s.now(),
	})
	if !escalate {
		return
	}
	metrics.Escalations.Inc()
	s.Log.Warn().
		Int64("user_id", msg.SenderID).
		Int("strikes", count).
		Msg("strike limit reached, muting user")
	if err := s.Chat.Restrict(ctx, msg.ChatID, msg.SenderID, s.MuteDuration); err != nil {
		s.Log.Error().Err(err).Int64("user_id", msg.SenderID).Msg("mute failed")
		return
	}
	s.notice(msg.ChatID, fmt.Sprintf("@%s has been muted after %d violations.", msg.SenderHandle, count))
	s.Strikes.Clear(msg.SenderID)
}

func (s *ModerationService) notice(chatID int64, text string) {
	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	id, err := s.Chat.Deliver(ctx, transport.Delivery{ChatID: chatID, Text: text})
	if err != nil {
		s.Log.Warn().Err(err).Msg("notice delivery failed")
		return
	}
	if s.Timers != nil && s.NoticeDelay > 0 {
		s.Timers.DeleteAfter(chatID, id, s.NoticeDelay)
	}
}

// seen reports whether the (chat, message) pair was already processed in
// the dedup window, recording it if not. The map is pruned opportunistically.
func (s *ModerationService) seen(chatID, messageID int64) bool {
	key := [2]int64{chatID, messageID}
	now := s.now()

	s.dedupMu.Lock()
	defer s.dedupMu.Unlock()

	if ts, ok := s.processed[key]; ok && now.Sub(ts) < s.DedupWindow {
		return true
	}
	s.processed[key] = now

	if now.Sub(s.lastPrune) > s.DedupWindow {
		for k, ts := range s.processed {
			if now.Sub(ts) >= s.DedupWindow {
				delete(s.processed, k)
			}
		}
		s.lastPrune = now
	}
	return false
}
