package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("gift not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyClaimed     = errors.New("gift already claimed")
	ErrClaimCooldown      = errors.New("gift cannot be claimed yet")
	ErrDisposableEmail    = errors.New("disposable email addresses are not allowed")
	ErrCaptchaFailed      = errors.New("captcha verification failed")
	ErrDailyLimitExceeded = errors.New("daily gift limit reached")
	ErrBurstLimitExceeded = errors.New("too many requests")
	ErrPaymentFailed      = errors.New("payment could not be initiated")

	// Infrastructure errors, opaque to callers
	ErrOperationFailed = errors.New("operation failed")
)

// ValidationError reports a malformed field on a create request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// CaptchaError is reported against the captcha token field.
type CaptchaError struct {
	Reason string
	Err    error
}

func (e *CaptchaError) Error() string {
	if e.Reason == "" {
		return ErrCaptchaFailed.Error()
	}
	return ErrCaptchaFailed.Error() + ": " + e.Reason
}

func (e *CaptchaError) Unwrap() error { return ErrCaptchaFailed }

// Field returns the request field the error belongs to.
func (e *CaptchaError) Field() string { return "captchaToken" }

// QuotaScope names the key a daily limit was counted against.
type QuotaScope string

const (
	QuotaScopeIP        QuotaScope = "ip"
	QuotaScopeRecipient QuotaScope = "recipient"
)

// DailyLimitError is returned when a per-day counter is exhausted.
type DailyLimitError struct {
	Scope      QuotaScope
	Limit      int
	RetryAfter time.Duration
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("%s (%s, limit %d)", ErrDailyLimitExceeded.Error(), e.Scope, e.Limit)
}

func (e *DailyLimitError) Unwrap() error { return ErrDailyLimitExceeded }

// CooldownError carries how long the caller must wait before claiming.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s (retry in %ds)", ErrClaimCooldown.Error(), RetrySeconds(e.RetryAfter))
}

func (e *CooldownError) Unwrap() error { return ErrClaimCooldown }

// RetrySeconds rounds d up to whole seconds, minimum 1.
func RetrySeconds(d time.Duration) int64 {
	s := int64((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
