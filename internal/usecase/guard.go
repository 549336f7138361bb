package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"gifting-service/internal/domain"
	"gifting-service/internal/domain/model"
	"gifting-service/internal/domain/ports/adapter"
	"gifting-service/internal/domain/ports/repository"
	"gifting-service/internal/infra/metrics"

	"github.com/rs/zerolog"
)

const maxEmailLen = 254

// GuardConfig holds the business bounds and anti-abuse toggles.
type GuardConfig struct {
	MinAmountCents      int64
	MaxMessageLen       int
	DailyIPLimit        int
	DailyRecipientLimit int
	BlockDisposable     bool
	EnforceCaptcha      bool
	BurstLimit          int
	BurstWindow         time.Duration
}

// DefaultGuardConfig mirrors the documented defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MinAmountCents:      1000,
		MaxMessageLen:       1000,
		DailyIPLimit:        40,
		DailyRecipientLimit: 8,
		BlockDisposable:     true,
		BurstLimit:          120,
		BurstWindow:         10 * time.Minute,
	}
}

// Guard rejects malformed or abusive requests before they reach persistence.
type Guard struct {
	cfg       GuardConfig
	quota     repository.QuotaStore
	captcha   adapter.CaptchaVerifier
	blocklist Blocklist
	log       *zerolog.Logger
}

// GuardOption configures the Guard.
type GuardOption func(*Guard)

// WithBlocklist replaces the built-in disposable-domain list.
func WithBlocklist(b Blocklist) GuardOption {
	return func(g *Guard) {
		if b != nil {
			g.blocklist = b
		}
	}
}

// WithCaptcha sets the verifier used when captcha is enforced.
func WithCaptcha(v adapter.CaptchaVerifier) GuardOption {
	return func(g *Guard) { g.captcha = v }
}

func NewGuard(cfg GuardConfig, quota repository.QuotaStore, logger *zerolog.Logger, opts ...GuardOption) *Guard {
	d := DefaultGuardConfig()
	if cfg.MinAmountCents <= 0 {
		cfg.MinAmountCents = d.MinAmountCents
	}
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = d.MaxMessageLen
	}
	if cfg.DailyIPLimit <= 0 {
		cfg.DailyIPLimit = d.DailyIPLimit
	}
	if cfg.DailyRecipientLimit <= 0 {
		cfg.DailyRecipientLimit = d.DailyRecipientLimit
	}
	if cfg.BurstLimit <= 0 {
		cfg.BurstLimit = d.BurstLimit
	}
	if cfg.BurstWindow <= 0 {
		cfg.BurstWindow = d.BurstWindow
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	g := &Guard{cfg: cfg, quota: quota, blocklist: DefaultBlocklist(), log: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// ValidateCreate checks field shapes and bounds.
func (g *Guard) ValidateCreate(email, message string, amount int64) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if message == "" {
		return &domain.ValidationError{Field: "message", Message: "message is required"}
	}
	// Postgres TEXT cannot hold NUL or invalid UTF-8.
	if !utf8.ValidString(message) || strings.IndexByte(message, 0) >= 0 {
		return &domain.ValidationError{Field: "message", Message: "message contains invalid characters"}
	}
	if utf8.RuneCountInString(message) > g.cfg.MaxMessageLen {
		return &domain.ValidationError{Field: "message", Message: fmt.Sprintf("message must be at most %d characters", g.cfg.MaxMessageLen)}
	}
	if amount < g.cfg.MinAmountCents {
		return &domain.ValidationError{Field: "amount", Message: fmt.Sprintf("amount must be at least %d cents", g.cfg.MinAmountCents)}
	}
	return nil
}

func validateEmail(email string) error {
	invalid := &domain.ValidationError{Field: "recipientEmail", Message: "a valid email address is required"}
	email = strings.TrimSpace(email)
	if email == "" || len(email) > maxEmailLen {
		return invalid
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return invalid
	}
	at := strings.LastIndexByte(email, '@')
	local, host := email[:at], email[at+1:]
	if local == "" || !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") || strings.HasPrefix(host, "[") {
		return invalid
	}
	return nil
}

// CheckDisposable rejects throwaway inbox domains when blocking is enabled.
func (g *Guard) CheckDisposable(email string) error {
	if !g.cfg.BlockDisposable {
		return nil
	}
	d := emailDomain(email)
	if d == "" || g.blocklist.Blocks(d) {
		return domain.ErrDisposableEmail
	}
	return nil
}

// VerifyCaptcha checks the proof token when captcha is enforced. Transport
// failures fail the check.
func (g *Guard) VerifyCaptcha(ctx context.Context, token, remoteIP string) error {
	if !g.cfg.EnforceCaptcha {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return &domain.CaptchaError{Reason: "token is required"}
	}
	if g.captcha == nil {
		return &domain.CaptchaError{Reason: "verifier not configured"}
	}
	ok, err := g.captcha.Verify(ctx, token, remoteIP)
	if err != nil {
		g.log.Warn().Err(err).Msg("captcha verification unavailable")
		return &domain.CaptchaError{Reason: "verification unavailable", Err: err}
	}
	if !ok {
		return &domain.CaptchaError{Reason: "token rejected"}
	}
	return nil
}

// Reservation holds daily quota slots taken for one create request.
type Reservation struct {
	quota repository.QuotaStore
	keys  []string
}

// Release returns the reserved slots. Safe to call on a nil Reservation and
// more than once.
func (r *Reservation) Release(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, k := range r.keys {
		if err := r.quota.Release(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	r.keys = nil
	return errors.Join(errs...)
}

// ReserveDaily takes one slot from the per-IP counter and one from the
// per-recipient counter for the UTC day of now. If either is exhausted no
// slot is kept.
func (g *Guard) ReserveDaily(ctx context.Context, ip, email string, now time.Time) (*Reservation, error) {
	if g.quota == nil {
		return &Reservation{}, nil
	}
	day := now.UTC()
	window := untilNextUTCDay(day) + time.Hour
	res := &Reservation{quota: g.quota}

	type scoped struct {
		scope domain.QuotaScope
		key   string
		limit int
	}
	checks := []scoped{
		{domain.QuotaScopeIP, DailyIPKey(day, ip), g.cfg.DailyIPLimit},
		{domain.QuotaScopeRecipient, DailyRecipientKey(day, email), g.cfg.DailyRecipientLimit},
	}
	for _, c := range checks {
		r, err := g.quota.IncrementAndCheck(ctx, c.key, c.limit, window)
		if err != nil {
			_ = res.Release(ctx)
			g.log.Error().Err(err).Str("scope", string(c.scope)).Msg("quota store failure")
			return nil, fmt.Errorf("%w: quota store: %v", domain.ErrOperationFailed, err)
		}
		if !r.Allowed {
			metrics.IncQuotaCheck(string(c.scope), "denied")
			if err := res.Release(ctx); err != nil {
				g.log.Error().Err(err).Msg("quota release failed")
			}
			return nil, &domain.DailyLimitError{Scope: c.scope, Limit: c.limit, RetryAfter: untilNextUTCDay(day)}
		}
		metrics.IncQuotaCheck(string(c.scope), "allowed")
		res.keys = append(res.keys, c.key)
	}
	return res, nil
}

// AllowBurst counts one request against the short window for clientKey.
// Store failures let the request through; this limiter only sheds floods.
func (g *Guard) AllowBurst(ctx context.Context, clientKey string) error {
	if g.quota == nil {
		return nil
	}
	r, err := g.quota.IncrementAndCheck(ctx, BurstKey(clientKey), g.cfg.BurstLimit, g.cfg.BurstWindow)
	if err != nil {
		g.log.Warn().Err(err).Msg("burst limiter unavailable; allowing request")
		return nil
	}
	if !r.Allowed {
		metrics.IncQuotaCheck("burst", "denied")
		return domain.ErrBurstLimitExceeded
	}
	return nil
}

// BurstWindow is the length of the burst limiter window.
func (g *Guard) BurstWindow() time.Duration { return g.cfg.BurstWindow }

func DailyIPKey(day time.Time, ip string) string {
	return "quota:ip:" + day.UTC().Format("2006-01-02") + ":" + strings.TrimSpace(ip)
}

func DailyRecipientKey(day time.Time, email string) string {
	return "quota:rcpt:" + day.UTC().Format("2006-01-02") + ":" + model.NormalizeEmail(email)
}

func BurstKey(clientKey string) string {
	return "burst:" + clientKey
}

func untilNextUTCDay(t time.Time) time.Duration {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
	return next.Sub(t)
}
