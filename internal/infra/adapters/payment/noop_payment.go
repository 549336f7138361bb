package payment

import (
	"context"
	"fmt"
	"sync"

	"gifting-service/internal/domain/ports/adapter"
)

var _ adapter.PaymentIntents = (*NoopPaymentIntents)(nil)

// NoopPaymentIntents hands out synthetic intents. Used in dev and tests.
type NoopPaymentIntents struct {
	mu      sync.Mutex
	seq     int64
	intents map[string]int64 // intent id -> amount
}

func NewNoopPaymentIntents() *NoopPaymentIntents {
	return &NoopPaymentIntents{intents: make(map[string]int64)}
}

func (g *NoopPaymentIntents) Name() string { return "noop" }

func (g *NoopPaymentIntents) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (adapter.PaymentIntent, error) {
	if amount <= 0 {
		return adapter.PaymentIntent{}, fmt.Errorf("noop: amount must be positive")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("pi_noop_%d", g.seq)
	g.intents[id] = amount
	return adapter.PaymentIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *NoopPaymentIntents) CancelIntent(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.intents[id]; !ok {
		return fmt.Errorf("noop: unknown intent %q", id)
	}
	delete(g.intents, id)
	return nil
}

// Amount returns the amount recorded for id. Cancelled intents are gone.
func (g *NoopPaymentIntents) Amount(id string) (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.intents[id]
	return a, ok
}
