//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gifting-service/internal/domain"
	"gifting-service/internal/domain/model"
	"gifting-service/internal/usecase"
)

const testBaseURL = "https://gifts.example.com/"

type giftFixture struct {
	repo       *MockGiftRepo
	quota      *MockQuotaStore
	notices    chan usecase.ClaimLinkNotice
	uc         usecase.GiftUseCase
	guardCfg   usecase.GuardConfig
	giftOpts   usecase.GiftOptions
	extraOpts  []usecase.GiftOption
	guardExtra []usecase.GuardOption
}

func newGiftFixture(t *testing.T, mutate func(f *giftFixture)) *giftFixture {
	t.Helper()
	f := &giftFixture{
		repo:     NewMockGiftRepo(),
		quota:    NewMockQuotaStore(),
		notices:  make(chan usecase.ClaimLinkNotice, 64),
		guardCfg: usecase.DefaultGuardConfig(),
		giftOpts: usecase.GiftOptions{BaseURL: testBaseURL},
	}
	if mutate != nil {
		mutate(f)
	}
	guard := usecase.NewGuard(f.guardCfg, f.quota, newTestLogger(), f.guardExtra...)
	dispatch := func(ctx context.Context, n usecase.ClaimLinkNotice) { f.notices <- n }
	f.uc = usecase.NewGiftUseCase(f.repo, guard, dispatch, f.giftOpts, newTestLogger(), f.extraOpts...)
	return f
}

func validInput() usecase.CreateGiftInput {
	return usecase.CreateGiftInput{
		RecipientEmail: "Alice@Example.com",
		Message:        "Happy birthday!",
		Amount:         2500,
		ClientIP:       "203.0.113.7",
	}
}

func TestGiftUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist the gift and dispatch the claim link", func(t *testing.T) {
		// --- Arrange ---
		f := newGiftFixture(t, nil)

		// --- Act ---
		g, err := f.uc.Create(ctx, validInput())

		// --- Assert ---
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if len(g.PublicID) != 24 {
			t.Errorf("expected 24-char public id, got %q", g.PublicID)
		}
		if g.IsClaimed || g.ClaimedAt != nil {
			t.Error("new gift must be unclaimed")
		}
		if g.RecipientEmail != "alice@example.com" {
			t.Errorf("expected normalized email, got %q", g.RecipientEmail)
		}
		stored, err := f.repo.FindByPublicID(ctx, g.PublicID)
		if err != nil {
			t.Fatalf("gift not persisted: %v", err)
		}
		if stored.Amount != 2500 || stored.Message != "Happy birthday!" {
			t.Errorf("stored gift mismatch: %+v", stored)
		}
		select {
		case n := <-f.notices:
			want := "https://gifts.example.com/claim/" + g.PublicID
			if n.ClaimURL != want || n.To != "alice@example.com" {
				t.Errorf("unexpected notice %+v, want url %s", n, want)
			}
		default:
			t.Fatal("expected one dispatched notice")
		}
		if got := f.uc.ClaimURL(g); got != "https://gifts.example.com/claim/"+g.PublicID {
			t.Errorf("ClaimURL = %q", got)
		}
	})

	t.Run("public ids are unique across many gifts", func(t *testing.T) {
		f := newGiftFixture(t, func(f *giftFixture) {
			f.guardCfg.DailyIPLimit = 1000
			f.guardCfg.DailyRecipientLimit = 1000
			f.notices = make(chan usecase.ClaimLinkNotice, 500)
		})
		seen := make(map[string]struct{})
		for i := 0; i < 300; i++ {
			g, err := f.uc.Create(ctx, validInput())
			if err != nil {
				t.Fatalf("create %d: %v", i, err)
			}
			if _, dup := seen[g.PublicID]; dup {
				t.Fatalf("duplicate public id %s", g.PublicID)
			}
			seen[g.PublicID] = struct{}{}
		}
	})

	t.Run("should reject amounts below the floor without persisting", func(t *testing.T) {
		f := newGiftFixture(t, nil)
		in := validInput()
		in.Amount = 999

		_, err := f.uc.Create(ctx, in)

		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Field != "amount" {
			t.Fatalf("expected amount validation error, got %v", err)
		}
		if f.repo.Count() != 0 || len(f.notices) != 0 {
			t.Error("nothing should be persisted or dispatched")
		}

		in.Amount = 1000
		if _, err := f.uc.Create(ctx, in); err != nil {
			t.Fatalf("amount at the floor should pass, got %v", err)
		}
	})

	t.Run("disposable domain is rejected before quota is touched", func(t *testing.T) {
		f := newGiftFixture(t, nil)
		in := validInput()
		in.RecipientEmail = "bob@mailinator.com"

		if _, err := f.uc.Create(ctx, in); !errors.Is(err, domain.ErrDisposableEmail) {
			t.Fatalf("expected ErrDisposableEmail, got %v", err)
		}
		if f.quota.Count(usecase.DailyIPKey(time.Now(), in.ClientIP)) != 0 {
			t.Error("rejected request must not consume quota")
		}
	})

	t.Run("disposable domain passes when blocking is off", func(t *testing.T) {
		f := newGiftFixture(t, func(f *giftFixture) { f.guardCfg.BlockDisposable = false })
		in := validInput()
		in.RecipientEmail = "bob@mailinator.com"
		if _, err := f.uc.Create(ctx, in); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	})

	t.Run("captcha timeout fails the create", func(t *testing.T) {
		f := newGiftFixture(t, func(f *giftFixture) {
			f.guardCfg.EnforceCaptcha = true
			f.guardExtra = []usecase.GuardOption{usecase.WithCaptcha(&MockCaptcha{
				VerifyFunc: func(ctx context.Context, token, ip string) (bool, error) {
					return false, context.DeadlineExceeded
				},
			})}
		})
		in := validInput()
		in.CaptchaToken = "tok"
		if _, err := f.uc.Create(ctx, in); !errors.Is(err, domain.ErrCaptchaFailed) {
			t.Fatalf("expected ErrCaptchaFailed, got %v", err)
		}
		if f.repo.Count() != 0 {
			t.Error("gift must not be persisted")
		}
	})

	t.Run("recipient quota allows L and rejects L+1", func(t *testing.T) {
		day := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		f := newGiftFixture(t, func(f *giftFixture) {
			f.extraOpts = []usecase.GiftOption{usecase.WithClock(fixedClock(day))}
		})
		limit := usecase.DefaultGuardConfig().DailyRecipientLimit
		for i := 0; i < limit; i++ {
			in := validInput()
			in.ClientIP = fmt.Sprintf("198.51.100.%d", i)
			if _, err := f.uc.Create(ctx, in); err != nil {
				t.Fatalf("create %d: %v", i+1, err)
			}
		}
		in := validInput()
		in.ClientIP = "198.51.100.250"
		_, err := f.uc.Create(ctx, in)
		var dl *domain.DailyLimitError
		if !errors.As(err, &dl) || dl.Scope != domain.QuotaScopeRecipient {
			t.Fatalf("expected recipient limit, got %v", err)
		}
		if f.repo.Count() != limit {
			t.Errorf("expected %d gifts persisted, got %d", limit, f.repo.Count())
		}
	})

	t.Run("persistence failure releases the quota reservation", func(t *testing.T) {
		day := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		f := newGiftFixture(t, func(f *giftFixture) {
			f.extraOpts = []usecase.GiftOption{usecase.WithClock(fixedClock(day))}
		})
		f.repo.CreateFunc = func(ctx context.Context, g *model.Gift) error { return errors.New("disk full") }

		_, err := f.uc.Create(ctx, validInput())
		if !errors.Is(err, domain.ErrOperationFailed) {
			t.Fatalf("expected ErrOperationFailed, got %v", err)
		}
		if c := f.quota.Count(usecase.DailyIPKey(day, "203.0.113.7")); c != 0 {
			t.Errorf("ip counter should be released, got %d", c)
		}
		if c := f.quota.Count(usecase.DailyRecipientKey(day, "alice@example.com")); c != 0 {
			t.Errorf("recipient counter should be released, got %d", c)
		}
		if len(f.notices) != 0 {
			t.Error("no email for an unpersisted gift")
		}
	})

	t.Run("public id collision is retried", func(t *testing.T) {
		var calls int32
		ids := []string{"aaaaaaaaaaaaaaaaaaaaaaaa", "aaaaaaaaaaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbbbbbbbbbb"}
		f := newGiftFixture(t, func(f *giftFixture) {
			f.extraOpts = []usecase.GiftOption{usecase.WithIDGenerator(func() (string, error) {
				i := atomic.AddInt32(&calls, 1) - 1
				return ids[i], nil
			})}
		})
		first, err := f.uc.Create(ctx, validInput())
		if err != nil {
			t.Fatal(err)
		}
		second, err := f.uc.Create(ctx, validInput())
		if err != nil {
			t.Fatalf("expected retry past the collision, got %v", err)
		}
		if first.PublicID == second.PublicID || second.PublicID != ids[2] {
			t.Errorf("unexpected ids %s %s", first.PublicID, second.PublicID)
		}
	})

	t.Run("payment intent is attached when enabled", func(t *testing.T) {
		pay := &MockPayments{}
		f := newGiftFixture(t, func(f *giftFixture) {
			f.extraOpts = []usecase.GiftOption{usecase.WithPaymentIntents(pay)}
		})
		g, err := f.uc.Create(ctx, validInput())
		if err != nil {
			t.Fatal(err)
		}
		if g.PaymentIntentID == nil || *g.PaymentIntentID != "pi_test" {
			t.Errorf("expected payment intent id, got %v", g.PaymentIntentID)
		}
	})

	t.Run("payment failure rejects and releases quota", func(t *testing.T) {
		day := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		pay := &MockPayments{Err: errors.New("card_declined")}
		f := newGiftFixture(t, func(f *giftFixture) {
			f.extraOpts = []usecase.GiftOption{usecase.WithPaymentIntents(pay), usecase.WithClock(fixedClock(day))}
		})
		if _, err := f.uc.Create(ctx, validInput()); !errors.Is(err, domain.ErrPaymentFailed) {
			t.Fatalf("expected ErrPaymentFailed, got %v", err)
		}
		if f.repo.Count() != 0 || f.quota.Count(usecase.DailyIPKey(day, "203.0.113.7")) != 0 {
			t.Error("nothing should be kept after a payment failure")
		}
	})

	t.Run("persistence failure cancels the opened payment intent", func(t *testing.T) {
		// Arrange
		pay := &MockPayments{}
		f := newGiftFixture(t, func(f *giftFixture) {
			f.extraOpts = []usecase.GiftOption{usecase.WithPaymentIntents(pay)}
		})
		f.repo.CreateFunc = func(ctx context.Context, g *model.Gift) error { return errors.New("disk full") }

		// Act
		_, err := f.uc.Create(ctx, validInput())

		// Assert
		if !errors.Is(err, domain.ErrOperationFailed) {
			t.Fatalf("expected ErrOperationFailed, got %v", err)
		}
		if len(pay.Cancelled) != 1 || pay.Cancelled[0] != "pi_test" {
			t.Errorf("expected pi_test to be cancelled, got %v", pay.Cancelled)
		}
	})

	t.Run("failed cancel still reports the persistence error", func(t *testing.T) {
		pay := &MockPayments{CancelErr: errors.New("provider down")}
		f := newGiftFixture(t, func(f *giftFixture) {
			f.extraOpts = []usecase.GiftOption{usecase.WithPaymentIntents(pay)}
		})
		f.repo.CreateFunc = func(ctx context.Context, g *model.Gift) error { return errors.New("disk full") }

		if _, err := f.uc.Create(ctx, validInput()); !errors.Is(err, domain.ErrOperationFailed) {
			t.Fatalf("expected ErrOperationFailed, got %v", err)
		}
		if len(pay.Cancelled) != 1 {
			t.Errorf("expected one cancel attempt, got %d", len(pay.Cancelled))
		}
	})

	t.Run("successful create leaves the intent open", func(t *testing.T) {
		pay := &MockPayments{}
		f := newGiftFixture(t, func(f *giftFixture) {
			f.extraOpts = []usecase.GiftOption{usecase.WithPaymentIntents(pay)}
		})
		if _, err := f.uc.Create(ctx, validInput()); err != nil {
			t.Fatal(err)
		}
		if len(pay.Cancelled) != 0 {
			t.Errorf("unexpected cancel %v", pay.Cancelled)
		}
	})
}

func TestGiftUseCase_GetAndClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip returns what was created", func(t *testing.T) {
		f := newGiftFixture(t, nil)
		created, err := f.uc.Create(ctx, validInput())
		if err != nil {
			t.Fatal(err)
		}
		got, err := f.uc.Get(ctx, created.PublicID)
		if err != nil {
			t.Fatal(err)
		}
		if got.RecipientEmail != created.RecipientEmail || got.Message != created.Message || got.Amount != created.Amount || got.IsClaimed {
			t.Errorf("round trip mismatch: %+v vs %+v", got, created)
		}
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		f := newGiftFixture(t, nil)
		if _, err := f.uc.Get(ctx, "000000000000000000000000"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Get: expected ErrNotFound, got %v", err)
		}
		if _, err := f.uc.Claim(ctx, "000000000000000000000000"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Claim: expected ErrNotFound, got %v", err)
		}
		if _, err := f.uc.Claim(ctx, ""); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Claim empty: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("second claim is rejected", func(t *testing.T) {
		f := newGiftFixture(t, nil)
		g, _ := f.uc.Create(ctx, validInput())

		claimed, err := f.uc.Claim(ctx, g.PublicID)
		if err != nil {
			t.Fatalf("first claim: %v", err)
		}
		if !claimed.IsClaimed || claimed.ClaimedAt == nil {
			t.Error("claim should set the flag and timestamp")
		}
		if _, err := f.uc.Claim(ctx, g.PublicID); !errors.Is(err, domain.ErrAlreadyClaimed) {
			t.Fatalf("second claim: expected ErrAlreadyClaimed, got %v", err)
		}
		got, _ := f.uc.Get(ctx, g.PublicID)
		if !got.ClaimedAt.Equal(*claimed.ClaimedAt) {
			t.Error("claimed_at must not change on a rejected claim")
		}
	})

	t.Run("concurrent claims have exactly one winner", func(t *testing.T) {
		f := newGiftFixture(t, nil)
		g, _ := f.uc.Create(ctx, validInput())

		const k = 32
		var wins, already int32
		var wg sync.WaitGroup
		wg.Add(k)
		for i := 0; i < k; i++ {
			go func() {
				defer wg.Done()
				_, err := f.uc.Claim(ctx, g.PublicID)
				switch {
				case err == nil:
					atomic.AddInt32(&wins, 1)
				case errors.Is(err, domain.ErrAlreadyClaimed):
					atomic.AddInt32(&already, 1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		if wins != 1 || already != k-1 {
			t.Fatalf("expected 1 winner and %d rejections, got %d and %d", k-1, wins, already)
		}
	})

	t.Run("cooldown delays the claim", func(t *testing.T) {
		created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		current := created
		clock := func() time.Time { return current }
		f := newGiftFixture(t, func(f *giftFixture) {
			f.giftOpts.ClaimCooldown = time.Minute
			f.extraOpts = []usecase.GiftOption{usecase.WithClock(clock)}
		})
		g, _ := f.uc.Create(ctx, validInput())

		current = created.Add(20 * time.Second)
		_, err := f.uc.Claim(ctx, g.PublicID)
		var ce *domain.CooldownError
		if !errors.As(err, &ce) {
			t.Fatalf("expected CooldownError, got %v", err)
		}
		if domain.RetrySeconds(ce.RetryAfter) != 40 {
			t.Errorf("expected 40s retry, got %v", ce.RetryAfter)
		}

		current = created.Add(time.Minute)
		if _, err := f.uc.Claim(ctx, g.PublicID); err != nil {
			t.Fatalf("claim after cooldown: %v", err)
		}
	})
}

// Confirms the base URL slash is not doubled in the link.
func TestGiftUseCase_ClaimURLTrimsSlash(t *testing.T) {
	f := newGiftFixture(t, nil)
	g, err := f.uc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(f.uc.ClaimURL(g), "//claim") {
		t.Errorf("double slash in %s", f.uc.ClaimURL(g))
	}
}
