package email

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog"

	"gifting-service/internal/domain/ports/adapter"
	"gifting-service/internal/infra/logging"
)

var _ adapter.EmailSender = (*NoopSender)(nil)

// NoopSender logs messages instead of delivering them. Used when no API key
// is configured.
type NoopSender struct {
	seq int64
	dev bool
	log *zerolog.Logger
}

func NewNoopSender(dev bool, logger *zerolog.Logger) *NoopSender {
	if logger == nil {
		logger = logging.Nop()
	}
	return &NoopSender{dev: dev, log: logger}
}

func (s *NoopSender) Send(ctx context.Context, msg adapter.EmailMessage) (adapter.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.SendResult{}, err
	}
	n := atomic.AddInt64(&s.seq, 1)
	id := "noop-" + msg.IdempotencyKey
	if msg.IdempotencyKey == "" {
		id = "noop-" + strconv.FormatInt(n, 10)
	}
	ev := logging.With(ctx, s.log).Info().
		Str("to", logging.RedactEmail(msg.To, s.dev)).
		Str("subject", msg.Subject).
		Str("message_id", id)
	if s.dev {
		ev = ev.Str("text", msg.Text)
	}
	ev.Msg("email not sent (noop sender)")
	return adapter.SendResult{MessageID: id}, nil
}
