package adapter

import "context"

// PaymentIntent is the provider-side handle for collecting a gift's amount.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// PaymentIntents is the port for payment providers.
type PaymentIntents interface {
	Name() string
	// CreateIntent registers an intent to collect amount (minor units).
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (PaymentIntent, error)
	// CancelIntent voids an intent that will never be collected.
	CancelIntent(ctx context.Context, id string) error
}
