// Vouch ledger HTTP handlers.
//
// This file exposes REST endpoints for the moderation gateway and the ledger:
//   - POST   /messages                         (ingest one inbound chat message)
//   - GET    /vouches                          (search the ledger)
//   - POST   /vouches                          (command-path vouch submission)
//   - DELETE /chats/{chat_id}/vouches/{message_id}
//   - GET    /leaderboard                      (most active vouchers)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. The caller identity comes from
// the X-User-ID header set by the bot gateway.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tpetrou/go-vouchguard/internal/domain"
	"github.com/tpetrou/go-vouchguard/internal/repo"
	"github.com/tpetrou/go-vouchguard/internal/services"
	"github.com/tpetrou/go-vouchguard/internal/transport"
	"github.com/tpetrou/go-vouchguard/internal/utils"
)

//
// Service contracts (context-aware)
//

// Moderator processes one inbound chat message end to end.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type Moderator interface {
	HandleMessage(ctx context.Context, msg transport.Message) error
}

// Ledger defines the vouch ledger operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type Ledger interface {
	// Search runs a case-insensitive ledger search.
	Search(ctx context.Context, query string, f repo.SearchFilter) []domain.Vouch
	// Leaderboard returns the most active vouchers over the window.
	Leaderboard(ctx context.Context, chatID *int64, days int, polarity domain.Polarity, limit int) []repo.VoucherCount
	// Stats returns ledger totals, or nil on storage failure.
	Stats(ctx context.Context, chatID *int64) *repo.LedgerStats
	// Delete removes a vouch; only the author or the admin may delete it.
	Delete(ctx context.Context, chatID, messageID, requesterID int64) error
	// ResolveUsername backfills numeric target ids for a handle.
	ResolveUsername(ctx context.Context, chatID *int64, username string, userID int64) (int64, error)
	// Submit stores a command-path vouch and returns the canonical block.
	Submit(ctx context.Context, msg transport.Message, target string, polarity domain.Polarity, note string) (string, error)
}

// OverrideStore manages runtime keyword overrides. Add and Remove report
// whether the set actually changed.
type OverrideStore interface {
	Add(word string) bool
	Remove(word string) bool
	List() []string
}

// StrikeReader exposes the in-memory strike state for inspection.
type StrikeReader interface {
	Count(userID int64) int
	Recent(userID int64) []domain.Violation
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for message ingest, the vouch ledger
// and administration. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	mod       Moderator
	ledger    Ledger
	overrides OverrideStore
	strikes   StrikeReader
	adminID   int64
}

// New constructs a Handlers instance bound to the given services. adminID
// identifies the caller allowed to use the admin-only endpoints.
func New(mod Moderator, ledger Ledger, overrides OverrideStore, strikes StrikeReader, adminID int64) *Handlers {
	return &Handlers{mod: mod, ledger: ledger, overrides: overrides, strikes: strikes, adminID: adminID}
}

// callerID extracts the numeric caller id from the X-User-ID header. Zero
// means anonymous.
func callerID(c *gin.Context) int64 {
	if c == nil || c.Request == nil {
		return 0
	}
	h := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if h == "" {
		return 0
	}
	id, err := strconv.ParseInt(h, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// requireAdmin aborts with 403 unless the caller is the configured admin.
// Returns true when the request may proceed.
func (h *Handlers) requireAdmin(c *gin.Context) bool {
	if h.adminID == 0 || callerID(c) != h.adminID {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "admin access required")
		return false
	}
	return true
}

//
// DTOs
//

// IngestRequest is the JSON payload for one inbound chat message, as
// forwarded by the bot gateway.
type IngestRequest struct {
	ChatID       int64            `json:"chat_id" binding:"required"`
	MessageID    int64            `json:"message_id" binding:"required"`
	SenderID     int64            `json:"sender_id" binding:"required"`
	SenderHandle string           `json:"sender_handle"`
	SenderName   string           `json:"sender_name"`
	Text         string           `json:"text"`
	HasLink      bool             `json:"has_link"`
	IsForward    bool             `json:"is_forward"`
	MentionIDs   map[string]int64 `json:"mention_ids"`
	Timestamp    int64            `json:"timestamp"` // unix seconds, 0 = now
}

// SubmitVouchRequest is the JSON payload for the explicit vouch command.
type SubmitVouchRequest struct {
	ChatID    int64  `json:"chat_id" binding:"required"`
	MessageID int64  `json:"message_id" binding:"required"`
	Target    string `json:"target" binding:"required"`
	Polarity  string `json:"polarity" binding:"required"`
	Note      string `json:"note" binding:"required"`
}

// SubmitVouchResponse returns the canonical block that was posted.
type SubmitVouchResponse struct {
	Canonical string `json:"canonical"`
}

// SearchVouchesResponse wraps ledger search results.
type SearchVouchesResponse struct {
	Vouches []domain.Vouch `json:"vouches"`
	Count   int            `json:"count"`
}

//
// Endpoints
//

// IngestMessage runs the moderation flow over one inbound message.
//
//	POST /messages
func (h *Handlers) IngestMessage(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid message payload")
		return
	}
	ts := time.Now().UTC()
	if req.Timestamp > 0 {
		ts = time.Unix(req.Timestamp, 0).UTC()
	}
	msg := transport.Message{
		ChatID:       req.ChatID,
		MessageID:    req.MessageID,
		SenderID:     req.SenderID,
		SenderHandle: strings.TrimPrefix(req.SenderHandle, "@"),
		SenderName:   req.SenderName,
		Text:         req.Text,
		HasLink:      req.HasLink,
		IsForward:    req.IsForward,
		MentionIDs:   req.MentionIDs,
		Timestamp:    ts,
	}
	if err := h.mod.HandleMessage(c.Request.Context(), msg); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, "message could not be processed")
		return
	}
	noContent(c)
}

// SearchVouches searches the ledger by author, target or display name.
//
//	GET /vouches?q=alice&chat_id=1&polarity=neg&limit=20
func (h *Handlers) SearchVouches(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q is required")
		return
	}
	f := repo.SearchFilter{Limit: clampLimit(c, 50, 200)}
	if cid, ok := queryInt64(c, "chat_id"); ok {
		f.ChatID = &cid
	}
	if p := domain.Polarity(c.Query("polarity")); p.Valid() {
		f.Polarity = &p
	}
	vouches := h.ledger.Search(c.Request.Context(), q, f)
	ok(c, http.StatusOK, SearchVouchesResponse{Vouches: vouches, Count: len(vouches)})
}

// SubmitVouch stores a command-path vouch. Notes that trip the keyword
// filter are sanitized rather than rejected.
//
//	POST /vouches
func (h *Handlers) SubmitVouch(c *gin.Context) {
	var req SubmitVouchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid vouch payload")
		return
	}
	caller := callerID(c)
	if caller == 0 {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header required")
		return
	}
	msg := transport.Message{
		ChatID:       req.ChatID,
		MessageID:    req.MessageID,
		SenderID:     caller,
		SenderHandle: strings.TrimSpace(c.GetHeader("X-User-Handle")),
		SenderName:   strings.TrimSpace(c.GetHeader("X-User-Name")),
		Text:         req.Note,
		Timestamp:    time.Now().UTC(),
	}
	canonical, err := h.ledger.Submit(c.Request.Context(), msg, req.Target, domain.Polarity(req.Polarity), req.Note)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, SubmitVouchResponse{Canonical: canonical})
	case err == services.ErrInvalidPolarity, err == services.ErrNoTarget, err == services.ErrEmptyNote:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case err == services.ErrDuplicateVouch:
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "vouch could not be stored")
	}
}

// DeleteVouch removes a vouch. Only its author or the admin may delete it.
//
//	DELETE /chats/{chat_id}/vouches/{message_id}
func (h *Handlers) DeleteVouch(c *gin.Context) {
	chatID, err1 := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	messageID, err2 := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err1 != nil || err2 != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_id and message_id must be integers")
		return
	}
	caller := callerID(c)
	if caller == 0 {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header required")
		return
	}
	err := h.ledger.Delete(c.Request.Context(), chatID, messageID, caller)
	switch err {
	case nil:
		noContent(c)
	case services.ErrVouchNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "vouch not found")
	case services.ErrForbidden:
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not allowed to delete this vouch")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "vouch could not be deleted")
	}
}

// Leaderboard returns the most active vouchers over the window.
//
//	GET /leaderboard?days=30&polarity=pos&limit=10&chat_id=1
func (h *Handlers) Leaderboard(c *gin.Context) {
	days := utils.AtoiDefault(c.Query("days"), 30)
	polarity := domain.Polarity(c.DefaultQuery("polarity", string(domain.PolarityPositive)))
	if !polarity.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "polarity must be pos or neg")
		return
	}
	var chatID *int64
	if cid, okq := queryInt64(c, "chat_id"); okq {
		chatID = &cid
	}
	rows := h.ledger.Leaderboard(c.Request.Context(), chatID, days, polarity, clampLimit(c, 10, 100))
	ok(c, http.StatusOK, gin.H{"leaders": rows, "days": days, "polarity": polarity})
}

//
// Helpers
//

// clampLimit parses the limit query param, bounded to [1, max].
func clampLimit(c *gin.Context, def, max int) int {
	n := utils.AtoiDefault(c.Query("limit"), def)
	if n < 1 {
		n = def
	}
	if n > max {
		n = max
	}
	return n
}

// queryInt64 parses an optional int64 query param.
func queryInt64(c *gin.Context, key string) (int64, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
