package worker

import (
	"context"

	"github.com/rs/zerolog"

	"gifting-service/internal/infra/logging"
	"gifting-service/internal/infra/metrics"
	"gifting-service/internal/usecase"
)

// ClaimLinkDispatcher runs claim-link emails on the pool. A saturated or
// stopped pool drops the email; the gift itself is already persisted.
func ClaimLinkDispatcher(p *Pool, notifier usecase.NotificationUseCase, dev bool, logger *zerolog.Logger) usecase.Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(ctx context.Context, n usecase.ClaimLinkNotice) {
		err := p.Submit(func(context.Context) error {
			return notifier.SendClaimLink(ctx, n).Err
		})
		if err != nil {
			metrics.IncDispatchDropped()
			logging.With(ctx, logger).Error().Err(err).
				Str("to", logging.RedactEmail(n.To, dev)).
				Msg("claim email dropped")
		}
	}
}
