package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"strings"
	"time"

	"gifting-service/internal/domain"
	"gifting-service/internal/domain/model"
	"gifting-service/internal/domain/ports/adapter"
	"gifting-service/internal/infra/logging"
	"gifting-service/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// ClaimLinkNotice is everything the recipient email needs.
type ClaimLinkNotice struct {
	To       string
	ClaimURL string
	Message  string
	Amount   int64
}

// DispatchResult is ok with a provider message id, or failed with the cause.
type DispatchResult struct {
	OK        bool
	MessageID string
	Err       error
}

type NotificationUseCase interface {
	// SendClaimLink renders and delivers the claim-link email. It never
	// panics and reports every failure through the result.
	SendClaimLink(ctx context.Context, n ClaimLinkNotice) DispatchResult
}

// RetryableError is implemented by adapter errors that may succeed on retry.
type RetryableError interface {
	error
	Retryable() bool
}

type notificationUC struct {
	sender   adapter.EmailSender
	from     string
	retryGap time.Duration
	dev      bool
	log      *zerolog.Logger
}

func NewNotificationUseCase(sender adapter.EmailSender, from string, retryGap time.Duration, dev bool, logger *zerolog.Logger) *notificationUC {
	if logger == nil {
		logger = logging.Nop()
	}
	return &notificationUC{sender: sender, from: from, retryGap: retryGap, dev: dev, log: logger}
}

func (n *notificationUC) SendClaimLink(ctx context.Context, notice ClaimLinkNotice) (res DispatchResult) {
	l := logging.With(ctx, n.log)
	defer func() {
		if rec := recover(); rec != nil {
			l.Error().Interface("panic", rec).Msg("claim-link dispatch panicked")
			res = DispatchResult{Err: fmt.Errorf("dispatch panic: %v", rec)}
		}
	}()

	to := model.NormalizeEmail(notice.To)
	if err := validateEmail(to); err != nil {
		metrics.IncEmail("rejected")
		l.Warn().Str("to", logging.RedactEmail(to, n.dev)).Msg("refusing to email invalid address")
		return DispatchResult{Err: err}
	}
	if n.sender == nil {
		return DispatchResult{Err: errors.New("email sender not configured")}
	}

	msg, err := renderClaimEmail(notice)
	if err != nil {
		l.Error().Err(err).Msg("render claim email")
		return DispatchResult{Err: err}
	}
	msg.From = n.from
	msg.To = to
	msg.IdempotencyKey = ulid.Make().String()

	out, err := n.send(ctx, msg)
	if err != nil && isRetryable(err) && ctx.Err() == nil {
		metrics.IncEmail("retried")
		l.Info().Err(err).Dur("backoff", n.retryGap).Msg("retrying claim email")
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(n.retryGap):
			out, err = n.send(ctx, msg)
		}
	}
	if err != nil {
		metrics.IncEmail("failed")
		l.Error().Err(err).Str("to", logging.RedactEmail(to, n.dev)).Msg("claim email failed")
		return DispatchResult{Err: err}
	}

	metrics.IncEmail("sent")
	l.Info().Str("to", logging.RedactEmail(to, n.dev)).Str("message_id", out.MessageID).Msg("claim email sent")
	return DispatchResult{OK: true, MessageID: out.MessageID}
}

func (n *notificationUC) send(ctx context.Context, msg adapter.EmailMessage) (adapter.SendResult, error) {
	start := time.Now()
	out, err := n.sender.Send(ctx, msg)
	metrics.ObserveEmailLatency(time.Since(start).Milliseconds())
	return out, err
}

func isRetryable(err error) bool {
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

var claimEmailHTML = template.Must(template.New("claim").Parse(`<!doctype html>
<html lang="en">
<body style="font-family:system-ui,Arial,sans-serif;margin:0;padding:24px;background:#f6f6f6">
<div style="max-width:560px;margin:0 auto;background:#fff;border-radius:12px;padding:24px">
  <h2 style="margin-top:0">You've received a {{.Amount}} gift!</h2>
  <p style="white-space:pre-wrap;border-left:3px solid #ddd;padding-left:12px">{{.Message}}</p>
  <p><a href="{{.ClaimURL}}" style="display:inline-block;padding:12px 20px;border-radius:8px;background:#1a73e8;color:#fff;text-decoration:none">Claim your gift</a></p>
  <p style="font-size:12px;color:#666">This link can be used once. If the button does not work, paste this address into your browser:<br>{{.ClaimURL}}</p>
</div>
</body>
</html>`))

func renderClaimEmail(n ClaimLinkNotice) (adapter.EmailMessage, error) {
	if strings.TrimSpace(n.ClaimURL) == "" {
		return adapter.EmailMessage{}, domain.ErrInvalidArgument
	}
	amount := model.FormatCents(n.Amount)
	var html bytes.Buffer
	err := claimEmailHTML.Execute(&html, struct {
		Amount   string
		Message  string
		ClaimURL string
	}{Amount: amount, Message: n.Message, ClaimURL: n.ClaimURL})
	if err != nil {
		return adapter.EmailMessage{}, err
	}

	text := fmt.Sprintf("You've received a %s gift!\n\n%s\n\nClaim it here (the link works once):\n%s\n", amount, n.Message, n.ClaimURL)
	return adapter.EmailMessage{
		Subject: fmt.Sprintf("You've received a %s gift", amount),
		Text:    text,
		HTML:    html.String(),
	}, nil
}
