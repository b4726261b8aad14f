// Package classifier defines the optional classification capabilities the
// pipeline may consult: a remote semantic classifier reached over HTTP and
// a local toxicity model. Both are pluggable interfaces that fail open; a
// capability outage never blocks moderation.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/tpetrou/go-vouchguard/internal/domain"
)

// Verdict is the structured result of a remote semantic classification.
type Verdict struct {
	Verdict    string          `json:"verdict"` // "SAFE" | "VIOLATION"
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason"`
	Severity   domain.Severity `json:"severity"`
	Category   string          `json:"category,omitempty"`
}

// IsViolation reports whether the remote model judged the text a violation.
func (v *Verdict) IsViolation() bool {
	return v != nil && strings.EqualFold(v.Verdict, "VIOLATION")
}

// Remote is the remote semantic classification capability. Implementations
// must bound the call with a hard timeout; any transport error, non-200 or
// malformed payload is reported as an error, which callers treat as "no
// opinion" rather than a violation.
type Remote interface {
	Classify(ctx context.Context, text string) (*Verdict, error)
}

const systemPrompt = `You are an expert content moderator for group chats. Detect content that violates the platform's Terms of Service.

Severity tiers: critical (child exploitation, terrorism, trafficking), high (illegal goods, scams, fraud, death threats), medium (pump & dump, spam, shorteners, milder harassment), low (excessive promotion, borderline spam).

Respond with JSON ONLY (no markdown):
{"verdict": "SAFE" or "VIOLATION", "confidence": 0.0-1.0, "reason": "brief explanation", "severity": "critical"|"high"|"medium"|"low", "category": "specific violation type"}

Be strict but fair. Context matters. Educational content about dangers is SAFE.`

var codeFenceRE = regexp.MustCompile("^```(?:json)?\n?|\n?```$")

// GroqClient calls an OpenAI-compatible chat completion endpoint and parses
// the model's JSON verdict. Retries with backoff are capped at two attempts
// and the whole call is bounded by Timeout.
type GroqClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	http *retryablehttp.Client
}

// NewGroqClient builds a remote classifier client. A zero timeout defaults
// to 15 seconds.
func NewGroqClient(baseURL, apiKey, model string, timeout time.Duration, logger zerolog.Logger) *GroqClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1 // one retry: two attempts total
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	return &GroqClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Timeout: timeout,
		http:    rc,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends the text for semantic analysis and returns the parsed
// verdict. Errors cover transport failures, non-200 responses and malformed
// model output; callers must treat them as "no opinion".
func (c *GroqClient) Classify(ctx context.Context, text string) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Analyze this message:\n\n" + text},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("classifier returned no choices")
	}

	content := strings.TrimSpace(cr.Choices[0].Message.Content)
	content = codeFenceRE.ReplaceAllString(content, "")

	var v Verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	if v.Verdict == "" || !v.Severity.Valid() {
		return nil, fmt.Errorf("verdict missing required fields")
	}
	return &v, nil
}
