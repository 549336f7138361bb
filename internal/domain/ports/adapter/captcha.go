package adapter

import "context"

// CaptchaVerifier checks a client-side proof token with the provider.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}
