//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gifting-service/internal/domain"
	"gifting-service/internal/domain/model"
	"gifting-service/internal/domain/ports/adapter"
	"gifting-service/internal/domain/ports/repository"
)

// -----------------------------
// Utilities
// -----------------------------

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// =============================
// Repositories
// =============================

// ---- MockGiftRepo ----

type MockGiftRepo struct {
	mu    sync.Mutex
	gifts map[string]*model.Gift
	seq   int64

	CreateFunc func(ctx context.Context, g *model.Gift) error
	Creates    int
}

var _ repository.GiftRepository = (*MockGiftRepo)(nil)

func NewMockGiftRepo() *MockGiftRepo {
	return &MockGiftRepo{gifts: make(map[string]*model.Gift)}
}

func (m *MockGiftRepo) Create(ctx context.Context, g *model.Gift) error {
	m.mu.Lock()
	m.Creates++
	m.mu.Unlock()
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, g); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gifts[g.PublicID]; ok {
		return domain.ErrAlreadyExists
	}
	m.seq++
	g.ID = m.seq
	cp := *g
	m.gifts[g.PublicID] = &cp
	return nil
}

func (m *MockGiftRepo) FindByPublicID(ctx context.Context, publicID string) (*model.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gifts[publicID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *MockGiftRepo) MarkClaimed(ctx context.Context, publicID string, now time.Time) (*model.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gifts[publicID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := g.MarkClaimed(now); err != nil {
		return nil, err
	}
	cp := *g
	return &cp, nil
}

func (m *MockGiftRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.gifts)
}

// ---- MockQuotaStore ----

type MockQuotaStore struct {
	mu       sync.Mutex
	counts   map[string]int64
	Err      error
	Releases int
}

var _ repository.QuotaStore = (*MockQuotaStore)(nil)

func NewMockQuotaStore() *MockQuotaStore {
	return &MockQuotaStore{counts: make(map[string]int64)}
}

func (m *MockQuotaStore) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (repository.QuotaResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return repository.QuotaResult{}, m.Err
	}
	c := m.counts[key]
	if c >= int64(limit) {
		return repository.QuotaResult{Allowed: false, Count: c}, nil
	}
	m.counts[key] = c + 1
	return repository.QuotaResult{Allowed: true, Count: c + 1}, nil
}

func (m *MockQuotaStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Releases++
	if m.counts[key] > 0 {
		m.counts[key]--
	}
	return nil
}

func (m *MockQuotaStore) Count(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

// =============================
// Adapters
// =============================

// ---- MockEmailSender ----

type MockEmailSender struct {
	mu   sync.Mutex
	Sent []adapter.EmailMessage

	SendFunc func(ctx context.Context, msg adapter.EmailMessage) (adapter.SendResult, error)
}

var _ adapter.EmailSender = (*MockEmailSender)(nil)

func (m *MockEmailSender) Send(ctx context.Context, msg adapter.EmailMessage) (adapter.SendResult, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return adapter.SendResult{MessageID: "msg-1"}, nil
}

func (m *MockEmailSender) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// ---- MockCaptcha ----

type MockCaptcha struct {
	VerifyFunc func(ctx context.Context, token, remoteIP string) (bool, error)
}

var _ adapter.CaptchaVerifier = (*MockCaptcha)(nil)

func (m *MockCaptcha) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, token, remoteIP)
	}
	return true, nil
}

// ---- MockPayments ----

type MockPayments struct {
	mu        sync.Mutex
	Calls     int
	Err       error
	Cancelled []string
	CancelErr error
}

var _ adapter.PaymentIntents = (*MockPayments)(nil)

func (m *MockPayments) Name() string { return "mock" }

func (m *MockPayments) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (adapter.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return adapter.PaymentIntent{}, m.Err
	}
	return adapter.PaymentIntent{ID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

func (m *MockPayments) CancelIntent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, id)
	return m.CancelErr
}

// ---- retryable test error ----

type retryErr struct{ retry bool }

func (e retryErr) Error() string   { return "provider error" }
func (e retryErr) Retryable() bool { return e.retry }
