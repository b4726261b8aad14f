package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// HTTPChat implements Chat against a bot gateway: a small sidecar that owns
// the platform session and exposes send/delete/restrict/poll over HTTP.
// Requests are retried once on transient failures.
type HTTPChat struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
	log     zerolog.Logger
}

// NewHTTPChat builds a gateway client. token is sent as a bearer credential
// on every request.
func NewHTTPChat(baseURL, token string, timeout time.Duration, log zerolog.Logger) *HTTPChat {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := retryablehttp.NewClient()
	c.RetryMax = 1
	c.RetryWaitMin = 250 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	return &HTTPChat{baseURL: baseURL, token: token, client: c, log: log}
}

type sendRequest struct {
	ChatID  int64  `json:"chat_id"`
	ReplyTo int64  `json:"reply_to,omitempty"`
	Text    string `json:"text"`
}

type sendResponse struct {
	MessageID int64 `json:"message_id"`
}

type deleteRequest struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

type restrictRequest struct {
	ChatID  int64 `json:"chat_id"`
	UserID  int64 `json:"user_id"`
	Seconds int64 `json:"seconds"`
}

type pollRequest struct {
	ChatID   int64    `json:"chat_id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Deliver posts a message through the gateway and returns its message id.
func (h *HTTPChat) Deliver(ctx context.Context, d Delivery) (int64, error) {
	var out sendResponse
	if err := h.post(ctx, "/send", sendRequest{ChatID: d.ChatID, ReplyTo: d.ReplyTo, Text: d.Text}, &out); err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

// Delete removes a message. A 404 from the gateway means the message is
// already gone and is not an error.
func (h *HTTPChat) Delete(ctx context.Context, chatID, messageID int64) error {
	err := h.post(ctx, "/delete", deleteRequest{ChatID: chatID, MessageID: messageID}, nil)
	if err != nil && isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// Restrict mutes a user for the given duration.
func (h *HTTPChat) Restrict(ctx context.Context, chatID, userID int64, d time.Duration) error {
	return h.post(ctx, "/restrict", restrictRequest{ChatID: chatID, UserID: userID, Seconds: int64(d.Seconds())}, nil)
}

// CreatePoll posts a poll and returns its message id.
func (h *HTTPChat) CreatePoll(ctx context.Context, p Poll) (int64, error) {
	var out sendResponse
	if err := h.post(ctx, "/poll", pollRequest{ChatID: p.ChatID, Question: p.Question, Options: p.Options}, &out); err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

// statusError carries the gateway's HTTP status for callers that need to
// distinguish "already gone" from real failures.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.status, e.body)
}

func isStatus(err error, status int) bool {
	se, ok := err.(*statusError)
	return ok && se.status == status
}

func (h *HTTPChat) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding gateway request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{status: resp.StatusCode, body: string(bytes.TrimSpace(body))}
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding gateway response: %w", err)
		}
	}
	return nil
}
