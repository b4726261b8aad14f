// Admin HTTP handlers.
//
// This file exposes the admin-only endpoints:
//   - GET    /stats                    (ledger totals)
//   - POST   /resolve                  (map a handle to a numeric user id)
//   - GET    /overrides                (list runtime keyword overrides)
//   - POST   /overrides                (add a keyword override)
//   - DELETE /overrides/{word}         (remove a keyword override)
//   - GET    /users/{id}/strikes       (live strike state for a user)
//
// All endpoints require the configured admin id in X-User-ID.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ResolveRequest maps a target handle to its numeric platform id.
type ResolveRequest struct {
	Username string `json:"username" binding:"required"`
	UserID   int64  `json:"user_id" binding:"required"`
	ChatID   *int64 `json:"chat_id"`
}

// OverrideRequest adds one runtime keyword override.
type OverrideRequest struct {
	Word string `json:"word" binding:"required"`
}

// Stats returns ledger totals, optionally scoped to one chat.
//
//	GET /stats?chat_id=1
func (h *Handlers) Stats(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	var chatID *int64
	if cid, found := queryInt64(c, "chat_id"); found {
		chatID = &cid
	}
	stats := h.ledger.Stats(c.Request.Context(), chatID)
	if stats == nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "stats unavailable")
		return
	}
	ok(c, http.StatusOK, stats)
}

// ResolveUsername backfills numeric target ids on ledger rows stored before
// the target's id was known, and records the handle in the rename history.
//
//	POST /resolve
func (h *Handlers) ResolveUsername(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and user_id are required")
		return
	}
	n, err := h.ledger.ResolveUsername(c.Request.Context(), req.ChatID, req.Username, req.UserID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeResolveFailed, "resolve failed")
		return
	}
	ok(c, http.StatusOK, gin.H{"backfilled": n})
}

// ListOverrides lists runtime keyword overrides, sorted.
//
//	GET /overrides
func (h *Handlers) ListOverrides(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	ok(c, http.StatusOK, gin.H{"overrides": h.overrides.List()})
}

// AddOverride installs a keyword override for the rest of the process
// lifetime.
//
//	POST /overrides
func (h *Handlers) AddOverride(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "word is required")
		return
	}
	word := strings.ToLower(strings.TrimSpace(req.Word))
	if word == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "word is required")
		return
	}
	added := h.overrides.Add(word)
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	ok(c, status, gin.H{"word": word, "added": added})
}

// RemoveOverride removes a keyword override.
//
//	DELETE /overrides/{word}
func (h *Handlers) RemoveOverride(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	word := strings.ToLower(strings.TrimSpace(c.Param("word")))
	if word == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "word is required")
		return
	}
	h.overrides.Remove(word)
	noContent(c)
}

// UserStrikes returns the live strike count and recent violations for a user.
//
//	GET /users/{id}/strikes
func (h *Handlers) UserStrikes(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be an integer")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"user_id":    id,
		"strikes":    h.strikes.Count(id),
		"violations": h.strikes.Recent(id),
	})
}
