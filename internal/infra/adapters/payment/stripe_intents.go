package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"gifting-service/internal/domain/ports/adapter"
)

var _ adapter.PaymentIntents = (*StripeIntents)(nil)

const defaultStripeURL = "https://api.stripe.com"

// StripeIntents creates payment intents against a Stripe-compatible API.
type StripeIntents struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewStripeIntents(secretKey, baseURL string, timeout time.Duration) *StripeIntents {
	if baseURL == "" {
		baseURL = defaultStripeURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeIntents{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}
}

func (s *StripeIntents) Name() string { return "stripe" }

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Error        *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *StripeIntents) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (adapter.PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", strings.ToLower(currency))
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set("metadata["+k+"]", metadata[k])
	}

	out, err := s.post(ctx, "/v1/payment_intents", form)
	if err != nil {
		return adapter.PaymentIntent{}, err
	}
	if out.ID == "" {
		return adapter.PaymentIntent{}, fmt.Errorf("stripe: empty intent id")
	}
	return adapter.PaymentIntent{ID: out.ID, ClientSecret: out.ClientSecret}, nil
}

func (s *StripeIntents) CancelIntent(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("stripe: empty intent id")
	}
	form := url.Values{}
	form.Set("cancellation_reason", "abandoned")
	_, err := s.post(ctx, "/v1/payment_intents/"+url.PathEscape(id)+"/cancel", form)
	return err
}

func (s *StripeIntents) post(ctx context.Context, path string, form url.Values) (intentResponse, error) {
	var out intentResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(s.secretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return out, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal response: %w, status: %d", err, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if out.Error != nil {
			return out, fmt.Errorf("stripe error: status %d, code %s: %s", resp.StatusCode, out.Error.Code, out.Error.Message)
		}
		return out, fmt.Errorf("stripe error: status %d", resp.StatusCode)
	}
	return out, nil
}
