package api

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gifting-service/internal/domain"
	"gifting-service/internal/domain/model"
	"gifting-service/internal/infra/logging"
	"gifting-service/internal/usecase"
)

// Options tunes the HTTP surface.
type Options struct {
	TrustProxy     bool
	RequestTimeout time.Duration
	// Ready reports backing store health for /health. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Server exposes the gift lifecycle over HTTP.
type Server struct {
	gifts usecase.GiftUseCase
	burst BurstLimiter
	opts  Options
	log   *zerolog.Logger
}

func NewServer(gifts usecase.GiftUseCase, burst BurstLimiter, opts Options, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	return &Server{gifts: gifts, burst: burst, opts: opts, log: logger}
}

// Routes builds the chi router with the middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		RequestLog(s.log, s.opts.TrustProxy),
		Recover(s.log),
		Timeout(s.opts.RequestTimeout),
	)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/gifts", func(r chi.Router) {
		r.With(s.burstMW()).Post("/", s.handleCreate)
		r.Get("/{publicId}", s.handleGet)
		r.With(s.burstMW()).Post("/{publicId}/claim", s.handleClaim)
	})

	r.Get("/claim/{publicId}", s.handleClaimPage)
	r.With(s.burstMW()).Post("/claim/{publicId}", s.handleClaimForm)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	return r
}

func (s *Server) burstMW() func(http.Handler) http.Handler {
	if s.burst == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return Burst(s.burst, s.opts.TrustProxy)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createGiftRequest struct {
	RecipientEmail string          `json:"recipientEmail"`
	Message        string          `json:"message"`
	Amount         json.RawMessage `json:"amount"`
	CaptchaToken   string          `json:"captchaToken,omitempty"`
}

type createGiftResponse struct {
	Success   bool   `json:"success"`
	GiftID    string `json:"giftId"`
	ClaimLink string `json:"claimLink"`
}

type giftResponse struct {
	PublicID  string     `json:"publicId"`
	Message   string     `json:"message"`
	Amount    int64      `json:"amount"`
	IsClaimed bool       `json:"isClaimed"`
	CreatedAt time.Time  `json:"createdAt"`
	ClaimedAt *time.Time `json:"claimedAt"`
}

type claimResponse struct {
	Success   bool      `json:"success"`
	PublicID  string    `json:"publicId"`
	ClaimedAt time.Time `json:"claimedAt"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createGiftRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "amount must be an integer number of cents", "amount")
		return
	}

	g, err := s.gifts.Create(r.Context(), usecase.CreateGiftInput{
		RecipientEmail: req.RecipientEmail,
		Message:        req.Message,
		Amount:         amount,
		CaptchaToken:   req.CaptchaToken,
		ClientIP:       ClientIP(r, s.opts.TrustProxy),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createGiftResponse{
		Success:   true,
		GiftID:    g.PublicID,
		ClaimLink: s.gifts.ClaimURL(g),
	})
}

// parseAmount accepts only a bare JSON integer.
func parseAmount(raw json.RawMessage) (int64, bool) {
	v := strings.TrimSpace(string(raw))
	if v == "" || v == "null" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	g, err := s.gifts.Get(r.Context(), chi.URLParam(r, "publicId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGiftResponse(g))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	g, err := s.gifts.Claim(r.Context(), chi.URLParam(r, "publicId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{Success: true, PublicID: g.PublicID, ClaimedAt: *g.ClaimedAt})
}

func toGiftResponse(g *model.Gift) giftResponse {
	return giftResponse{
		PublicID:  g.PublicID,
		Message:   g.Message,
		Amount:    g.Amount,
		IsClaimed: g.IsClaimed,
		CreatedAt: g.CreatedAt,
		ClaimedAt: g.ClaimedAt,
	}
}

// writeDomainError maps the error taxonomy onto status codes. Anything
// unrecognised is a 500 with an opaque body.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		ce *domain.CaptchaError
		dl *domain.DailyLimitError
		cd *domain.CooldownError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message, ve.Field)
	case errors.As(err, &ce):
		writeError(w, http.StatusBadRequest, "captcha verification failed", ce.Field())
	case errors.Is(err, domain.ErrDisposableEmail):
		writeError(w, http.StatusBadRequest, domain.ErrDisposableEmail.Error(), "recipientEmail")
	case errors.As(err, &dl):
		w.Header().Set("Retry-After", strconv.FormatInt(domain.RetrySeconds(dl.RetryAfter), 10))
		writeError(w, http.StatusTooManyRequests, dailyLimitMessage(dl.Scope), "")
	case errors.Is(err, domain.ErrBurstLimitExceeded):
		writeError(w, http.StatusTooManyRequests, "too many requests, please slow down", "")
	case errors.As(err, &cd):
		w.Header().Set("Retry-After", strconv.FormatInt(domain.RetrySeconds(cd.RetryAfter), 10))
		writeError(w, http.StatusTooManyRequests, "this gift cannot be claimed yet, try again shortly", "")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "gift not found", "")
	case errors.Is(err, domain.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, "gift already claimed", "")
	case errors.Is(err, domain.ErrPaymentFailed):
		writeError(w, http.StatusBadGateway, "payment could not be initiated", "")
	case errors.Is(err, context.DeadlineExceeded):
		logging.With(r.Context(), s.log).Warn().Err(err).Str("path", r.URL.Path).Msg("request timed out")
		writeError(w, http.StatusGatewayTimeout, "request timed out", "")
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func dailyLimitMessage(scope domain.QuotaScope) string {
	if scope == domain.QuotaScopeRecipient {
		return "this recipient has received too many gifts today"
	}
	return "daily gift limit reached for your network"
}

// --- claim page ---

var claimPage = template.Must(template.New("claim").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<meta name="robots" content="noindex" />
<title>{{if .Found}}Your gift{{else}}Gift not found{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
.msg{white-space:pre-wrap;border-left:3px solid #ddd;padding-left:12px}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;background:#fff;cursor:pointer}
.small{font-size:12px;color:#666}
</style>
</head>
<body>
<div class="card">
{{if not .Found}}
  <h2 class="fail">Gift not found</h2>
  <p>This link is not valid. Check that you copied the whole address.</p>
{{else}}
  <h2>{{.Amount}} gift</h2>
  <p class="msg">{{.Message}}</p>
  {{if .Notice}}<p class="{{if .OK}}ok{{else}}fail{{end}}">{{.Notice}}</p>{{end}}
  {{if .Claimed}}
    <div class="small">Claimed {{.ClaimedAt}}</div>
  {{else}}
    <form method="post" action="/claim/{{.PublicID}}">
      <button class="btn" type="submit">Claim gift</button>
    </form>
    <div class="small">This link can be used once.</div>
  {{end}}
{{end}}
</div>
</body>
</html>`))

type claimPageData struct {
	Found     bool
	PublicID  string
	Amount    string
	Message   string
	Claimed   bool
	ClaimedAt string
	Notice    string
	OK        bool
}

func pageData(g *model.Gift) claimPageData {
	d := claimPageData{
		Found:    true,
		PublicID: g.PublicID,
		Amount:   model.FormatCents(g.Amount),
		Message:  g.Message,
		Claimed:  g.IsClaimed,
	}
	if g.ClaimedAt != nil {
		d.ClaimedAt = g.ClaimedAt.Format(time.RFC1123)
	}
	return d
}

func (s *Server) handleClaimPage(w http.ResponseWriter, r *http.Request) {
	g, err := s.gifts.Get(r.Context(), chi.URLParam(r, "publicId"))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.renderClaimPage(w, r, http.StatusNotFound, claimPageData{})
		return
	case err != nil:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("load claim page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.renderClaimPage(w, r, http.StatusOK, pageData(g))
}

// handleClaimForm is the no-JavaScript claim path behind the page's button.
func (s *Server) handleClaimForm(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "publicId")
	g, err := s.gifts.Claim(r.Context(), publicID)
	if err == nil {
		d := pageData(g)
		d.Notice, d.OK = "Gift claimed. Enjoy!", true
		s.renderClaimPage(w, r, http.StatusOK, d)
		return
	}

	var cd *domain.CooldownError
	status, notice := http.StatusInternalServerError, "Something went wrong. Please try again."
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.renderClaimPage(w, r, http.StatusNotFound, claimPageData{})
		return
	case errors.Is(err, domain.ErrAlreadyClaimed):
		status, notice = http.StatusConflict, "This gift has already been claimed."
	case errors.As(err, &cd):
		w.Header().Set("Retry-After", strconv.FormatInt(domain.RetrySeconds(cd.RetryAfter), 10))
		status, notice = http.StatusTooManyRequests, "This gift cannot be claimed just yet. Please try again in a minute."
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("claim from page")
	}

	current, gerr := s.gifts.Get(r.Context(), publicID)
	if gerr != nil {
		http.Error(w, notice, status)
		return
	}
	d := pageData(current)
	d.Notice = notice
	s.renderClaimPage(w, r, status, d)
}

func (s *Server) renderClaimPage(w http.ResponseWriter, r *http.Request, code int, data claimPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := claimPage.Execute(w, data); err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("render claim page")
	}
}
