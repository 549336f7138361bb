package model

import (
	"fmt"
	"strings"
	"time"

	"gifting-service/internal/domain"
)

// Gift is a single monetary gift addressed to one recipient. The public id is
// the bearer credential for viewing and claiming it.
type Gift struct {
	ID              int64 // internal sequence, never exposed
	PublicID        string
	RecipientEmail  string
	Message         string
	Amount          int64 // minor units (cents)
	IsClaimed       bool
	CreatedAt       time.Time
	ClaimedAt       *time.Time // set iff IsClaimed
	PaymentIntentID *string    // set when payment intents are enabled
}

// NewGift constructs an unclaimed gift. Validation of the business bounds
// happens in the guard layer; this only rejects structurally empty input.
func NewGift(publicID, recipientEmail, message string, amount int64, now time.Time) (*Gift, error) {
	publicID = strings.TrimSpace(publicID)
	email := NormalizeEmail(recipientEmail)
	if publicID == "" || email == "" || message == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if now.IsZero() {
		now = time.Now()
	}
	return &Gift{
		PublicID:       publicID,
		RecipientEmail: email,
		Message:        message,
		Amount:         amount,
		CreatedAt:      now.UTC(),
	}, nil
}

// MarkClaimed flips the claim flag once.
func (g *Gift) MarkClaimed(now time.Time) error {
	if g.IsClaimed {
		return domain.ErrAlreadyClaimed
	}
	t := now.UTC()
	g.IsClaimed = true
	g.ClaimedAt = &t
	return nil
}

// ClaimURL builds the absolute link mailed to the recipient.
func (g *Gift) ClaimURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/claim/" + g.PublicID
}

// NormalizeEmail trims and lower-cases an address for storage and quota keys.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FormatCents renders minor units as dollars, e.g. 1050 -> "$10.50".
func FormatCents(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s$%d.%02d", sign, amount/100, amount%100)
}
