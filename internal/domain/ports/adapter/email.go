package adapter

import "context"

// EmailMessage is a rendered transactional email.
type EmailMessage struct {
	From           string
	To             string
	Subject        string
	Text           string
	HTML           string
	IdempotencyKey string // reused across retries of the same message
}

// SendResult is what the provider returned for an accepted message.
type SendResult struct {
	MessageID string
}

// EmailSender is the port for the transactional email provider.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) (SendResult, error)
}
