package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"gifting-service/internal/domain/ports/adapter"
)

var _ adapter.EmailSender = (*ResendSender)(nil)

const defaultBaseURL = "https://api.resend.com"

// SendError describes a failed delivery attempt. Retryable is set for 429,
// 5xx, timeouts and transport failures.
type SendError struct {
	StatusCode int
	Body       string
	Err        error
	retryable  bool
}

func (e *SendError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("email provider status %d: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return "email provider: " + e.Err.Error()
	default:
		return "email provider error"
	}
}

func (e *SendError) Unwrap() error { return e.Err }

func (e *SendError) Retryable() bool { return e.retryable }

// ResendSender posts messages to a Resend-compatible /emails endpoint.
type ResendSender struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewResendSender(apiKey, baseURL string, timeout time.Duration) *ResendSender {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ResendSender{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func (s *ResendSender) Send(ctx context.Context, msg adapter.EmailMessage) (adapter.SendResult, error) {
	payload, err := json.Marshal(sendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return adapter.SendResult{}, fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return adapter.SendResult{}, fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if msg.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", msg.IdempotencyKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return adapter.SendResult{}, &SendError{Err: err, retryable: transient(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return adapter.SendResult{}, &SendError{Err: fmt.Errorf("read response: %w", err), retryable: true}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return adapter.SendResult{}, &SendError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	var out sendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return adapter.SendResult{}, fmt.Errorf("decode email response: %w, body: %s", err, string(body))
	}
	return adapter.SendResult{MessageID: out.ID}, nil
}

// transient treats everything except caller cancellation as worth a retry.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}
