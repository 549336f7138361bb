package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gifting-service/internal/domain"
	"gifting-service/internal/domain/model"
	"gifting-service/internal/domain/ports/adapter"
	"gifting-service/internal/domain/ports/repository"
	"gifting-service/internal/infra/logging"
	"gifting-service/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ GiftUseCase = (*giftUC)(nil)

const (
	publicIDBytes      = 12 // 24 hex characters, 96 bits
	maxPublicIDRetries = 3
)

// CreateGiftInput is a create request as received from the client.
type CreateGiftInput struct {
	RecipientEmail string
	Message        string
	Amount         int64
	CaptchaToken   string
	ClientIP       string
}

type GiftUseCase interface {
	Create(ctx context.Context, in CreateGiftInput) (*model.Gift, error)
	Get(ctx context.Context, publicID string) (*model.Gift, error)
	Claim(ctx context.Context, publicID string) (*model.Gift, error)
	// ClaimURL is the absolute claim link for g.
	ClaimURL(g *model.Gift) string
}

// Dispatcher runs a notification out-of-band. It must not block on the send.
type Dispatcher func(ctx context.Context, n ClaimLinkNotice)

// GiftOptions carries the optional lifecycle policies.
type GiftOptions struct {
	BaseURL         string
	ClaimCooldown   time.Duration // zero disables the cooldown
	PaymentCurrency string
	Dev             bool
}

type giftUC struct {
	gifts    repository.GiftRepository
	guard    *Guard
	dispatch Dispatcher
	payments adapter.PaymentIntents
	opts     GiftOptions
	now      func() time.Time
	newID    func() (string, error)
	log      *zerolog.Logger
}

// GiftOption configures a giftUC.
type GiftOption func(*giftUC)

// WithPaymentIntents enables payment-intent creation before persistence.
func WithPaymentIntents(p adapter.PaymentIntents) GiftOption {
	return func(u *giftUC) { u.payments = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) GiftOption {
	return func(u *giftUC) {
		if now != nil {
			u.now = now
		}
	}
}

// WithIDGenerator overrides the public id source.
func WithIDGenerator(gen func() (string, error)) GiftOption {
	return func(u *giftUC) {
		if gen != nil {
			u.newID = gen
		}
	}
}

func NewGiftUseCase(gifts repository.GiftRepository, guard *Guard, dispatch Dispatcher, opts GiftOptions, logger *zerolog.Logger, extra ...GiftOption) *giftUC {
	if logger == nil {
		logger = logging.Nop()
	}
	if dispatch == nil {
		dispatch = func(context.Context, ClaimLinkNotice) {}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.PaymentCurrency == "" {
		opts.PaymentCurrency = "usd"
	}
	u := &giftUC{
		gifts:    gifts,
		guard:    guard,
		dispatch: dispatch,
		opts:     opts,
		now:      time.Now,
		newID:    NewPublicID,
		log:      logger,
	}
	for _, opt := range extra {
		if opt != nil {
			opt(u)
		}
	}
	return u
}

// NewPublicID returns 96 random bits as lower-case hex.
func NewPublicID() (string, error) {
	b := make([]byte, publicIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (u *giftUC) ClaimURL(g *model.Gift) string {
	return g.ClaimURL(u.opts.BaseURL)
}

// Create runs the guard chain in order (schema, disposable, captcha, quota),
// optionally opens a payment intent, persists the gift and hands the
// claim-link email to the dispatcher. Quota slots are only kept when the row
// is persisted.
func (u *giftUC) Create(ctx context.Context, in CreateGiftInput) (*model.Gift, error) {
	l := logging.With(ctx, u.log)
	defer logging.TraceDuration(l, "GiftUC.Create")()

	email := model.NormalizeEmail(in.RecipientEmail)
	if err := u.guard.ValidateCreate(strings.TrimSpace(in.RecipientEmail), in.Message, in.Amount); err != nil {
		metrics.IncGuardRejection("validation")
		return nil, err
	}
	if err := u.guard.CheckDisposable(email); err != nil {
		metrics.IncGuardRejection("disposable")
		l.Info().Str("to", logging.RedactEmail(email, u.opts.Dev)).Msg("disposable recipient rejected")
		return nil, err
	}
	if err := u.guard.VerifyCaptcha(ctx, in.CaptchaToken, in.ClientIP); err != nil {
		metrics.IncGuardRejection("captcha")
		return nil, err
	}

	now := u.now().UTC()
	reservation, err := u.guard.ReserveDaily(ctx, in.ClientIP, email, now)
	if err != nil {
		var dl *domain.DailyLimitError
		if errors.As(err, &dl) {
			metrics.IncGuardRejection("daily_" + string(dl.Scope))
			l.Info().Str("scope", string(dl.Scope)).Msg("daily gift limit reached")
		}
		return nil, err
	}
	keep := false
	defer func() {
		if keep {
			return
		}
		// detached so a cancelled request still gives its slots back
		if err := reservation.Release(context.WithoutCancel(ctx)); err != nil {
			l.Error().Err(err).Msg("release quota reservation")
		}
	}()

	var intentID *string
	if u.payments != nil {
		intent, err := u.payments.CreateIntent(ctx, in.Amount, u.opts.PaymentCurrency, map[string]string{"recipient_domain": emailDomain(email)})
		if err != nil {
			metrics.IncPaymentIntent(u.payments.Name(), "failed")
			l.Error().Err(err).Str("provider", u.payments.Name()).Msg("create payment intent")
			return nil, fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
		}
		metrics.IncPaymentIntent(u.payments.Name(), "created")
		metrics.AddPaymentIntentAmount(u.opts.PaymentCurrency, in.Amount)
		intentID = &intent.ID
	}

	g, err := u.persist(ctx, email, in.Message, in.Amount, now, intentID)
	if err != nil {
		l.Error().Err(err).Msg("persist gift")
		if intentID != nil {
			u.cancelIntent(context.WithoutCancel(ctx), *intentID, l)
		}
		return nil, err
	}
	keep = true
	metrics.IncGiftCreated(g.Amount)

	ctx = logging.WithGiftID(ctx, g.PublicID)
	logging.With(ctx, u.log).Info().
		Int64("amount", g.Amount).
		Str("to", logging.RedactEmail(g.RecipientEmail, u.opts.Dev)).
		Msg("gift created")

	u.dispatch(context.WithoutCancel(ctx), ClaimLinkNotice{
		To:       g.RecipientEmail,
		ClaimURL: u.ClaimURL(g),
		Message:  g.Message,
		Amount:   g.Amount,
	})
	return g, nil
}

// cancelIntent voids an intent whose gift was never stored. A failed cancel
// leaves the id in the error log for manual cleanup.
func (u *giftUC) cancelIntent(ctx context.Context, id string, l *zerolog.Logger) {
	if err := u.payments.CancelIntent(ctx, id); err != nil {
		metrics.IncPaymentIntent(u.payments.Name(), "orphaned")
		l.Error().Err(err).Str("provider", u.payments.Name()).Str("intent_id", id).Msg("orphaned payment intent")
		return
	}
	metrics.IncPaymentIntent(u.payments.Name(), "cancelled")
}

func (u *giftUC) persist(ctx context.Context, email, message string, amount int64, now time.Time, intentID *string) (*model.Gift, error) {
	for attempt := 0; attempt < maxPublicIDRetries; attempt++ {
		publicID, err := u.newID()
		if err != nil {
			return nil, fmt.Errorf("%w: public id: %v", domain.ErrOperationFailed, err)
		}
		g, err := model.NewGift(publicID, email, message, amount, now)
		if err != nil {
			return nil, err
		}
		g.PaymentIntentID = intentID

		err = u.gifts.Create(ctx, g)
		if err == nil {
			return g, nil
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		if errors.Is(err, domain.ErrOperationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	return nil, fmt.Errorf("%w: public id collisions", domain.ErrOperationFailed)
}

func (u *giftUC) Get(ctx context.Context, publicID string) (*model.Gift, error) {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return nil, domain.ErrNotFound
	}
	return u.gifts.FindByPublicID(ctx, publicID)
}

// Claim flips the gift to claimed once. The cooldown check reads the row; the
// transition itself is the repository's conditional update.
func (u *giftUC) Claim(ctx context.Context, publicID string) (*model.Gift, error) {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		metrics.IncClaim("not_found")
		return nil, domain.ErrNotFound
	}
	ctx = logging.WithGiftID(ctx, publicID)
	l := logging.With(ctx, u.log)

	g, err := u.gifts.FindByPublicID(ctx, publicID)
	if err != nil {
		metrics.IncClaim(claimResult(err))
		return nil, err
	}
	if g.IsClaimed {
		metrics.IncClaim("already_claimed")
		return nil, domain.ErrAlreadyClaimed
	}

	now := u.now().UTC()
	if u.opts.ClaimCooldown > 0 {
		if wait := g.CreatedAt.Add(u.opts.ClaimCooldown).Sub(now); wait > 0 {
			metrics.IncClaim("cooldown")
			return nil, &domain.CooldownError{RetryAfter: wait}
		}
	}

	claimed, err := u.gifts.MarkClaimed(ctx, publicID, now)
	if err != nil {
		metrics.IncClaim(claimResult(err))
		if !errors.Is(err, domain.ErrAlreadyClaimed) && !errors.Is(err, domain.ErrNotFound) {
			l.Error().Err(err).Msg("mark gift claimed")
		}
		return nil, err
	}
	metrics.IncClaim("claimed")
	l.Info().Int64("amount", claimed.Amount).Msg("gift claimed")
	return claimed, nil
}

func claimResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return "already_claimed"
	default:
		return "error"
	}
}
