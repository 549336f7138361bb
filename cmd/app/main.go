// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"gifting-service/internal/config"
	"gifting-service/internal/domain/ports/adapter"
	"gifting-service/internal/domain/ports/repository"
	"gifting-service/internal/infra/adapters/captcha"
	"gifting-service/internal/infra/adapters/email"
	payAdapters "gifting-service/internal/infra/adapters/payment"
	"gifting-service/internal/infra/api"
	"gifting-service/internal/infra/db/memory"
	pg "gifting-service/internal/infra/db/postgres"
	"gifting-service/internal/infra/logging"
	"gifting-service/internal/infra/metrics"
	"gifting-service/internal/infra/quota"
	red "gifting-service/internal/infra/redis"
	"gifting-service/internal/infra/sched"
	"gifting-service/internal/infra/worker"
	"gifting-service/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, in-memory stores allowed")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("gifting service stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dev := cfg.Runtime.Dev
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	g, ctx := errgroup.WithContext(ctx)

	// ---- Gift store ----
	var (
		gifts repository.GiftRepository
		ready func(context.Context) error
	)
	if cfg.Database.URL != "" {
		pool, err := pg.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		gifts = pg.NewGiftRepo(pool)
		ready = pool.Ping
		g.Go(func() error {
			pg.SamplePoolStats(ctx, pool, 15*time.Second, logger)
			return nil
		})
		logger.Info().Msg("gift store: postgres")
	} else {
		gifts = memory.NewGiftRepo()
		logger.Warn().Msg("gift store: in-memory (data is lost on restart)")
	}

	// ---- Quota store ----
	var quotaStore repository.QuotaStore
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		quotaStore = red.NewQuotaStore(rc)
		if ready != nil {
			dbReady := ready
			ready = func(ctx context.Context) error {
				return errors.Join(dbReady(ctx), rc.Ping(ctx))
			}
		} else {
			ready = rc.Ping
		}
		logger.Info().Msg("quota store: redis")
	} else {
		ms, err := quota.NewMemoryStore(cfg.Gifts.QuotaCacheSize)
		if err != nil {
			return fmt.Errorf("quota store: %w", err)
		}
		quotaStore = ms
		sweeper := sched.NewSweepWorker(5*time.Minute, ms, logger)
		g.Go(func() error {
			if err := sweeper.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		logger.Info().Int("capacity", cfg.Gifts.QuotaCacheSize).Msg("quota store: in-memory (per instance)")
	}

	// ---- Adapters ----
	var sender adapter.EmailSender
	if cfg.Email.APIKey != "" {
		sender = email.NewResendSender(cfg.Email.APIKey, cfg.Email.BaseURL, cfg.Email.Timeout)
	} else {
		sender = email.NewNoopSender(dev, logger)
		logger.Warn().Msg("email.api_key not set; claim emails are logged, not sent")
	}

	guardOpts := []usecase.GuardOption{}
	if cfg.Captcha.Enforce {
		guardOpts = append(guardOpts, usecase.WithCaptcha(
			captcha.NewTurnstileVerifier(cfg.Captcha.Secret, cfg.Captcha.VerifyURL, cfg.Captcha.Timeout)))
	}

	giftOpts := []usecase.GiftOption{}
	if cfg.Payment.Enabled {
		var intents adapter.PaymentIntents
		if cfg.Payment.SecretKey != "" {
			intents = payAdapters.NewStripeIntents(cfg.Payment.SecretKey, cfg.Payment.BaseURL, cfg.Payment.Timeout)
		} else {
			intents = payAdapters.NewNoopPaymentIntents()
		}
		giftOpts = append(giftOpts, usecase.WithPaymentIntents(intents))
		logger.Info().Str("provider", intents.Name()).Str("currency", cfg.Payment.Currency).Msg("payment intents enabled")
	}

	// ---- Use cases ----
	guard := usecase.NewGuard(usecase.GuardConfig{
		MinAmountCents:      cfg.Gifts.MinAmountCents,
		MaxMessageLen:       cfg.Gifts.MaxMessageLen,
		DailyIPLimit:        cfg.Gifts.DailyIPLimit,
		DailyRecipientLimit: cfg.Gifts.DailyRecipientLimit,
		BlockDisposable:     cfg.Gifts.BlockDisposable,
		EnforceCaptcha:      cfg.Captcha.Enforce,
		BurstLimit:          cfg.Gifts.BurstLimit,
		BurstWindow:         cfg.Gifts.BurstWindow,
	}, quotaStore, logger, guardOpts...)

	notifUC := usecase.NewNotificationUseCase(sender, cfg.Email.From, cfg.Email.RetryGap, dev, logger)

	pool := worker.NewPool(cfg.Worker.Count, logger)
	pool.Start(context.WithoutCancel(ctx))
	defer pool.Stop()

	giftUC := usecase.NewGiftUseCase(gifts, guard, worker.ClaimLinkDispatcher(pool, notifUC, dev, logger), usecase.GiftOptions{
		BaseURL:         cfg.Server.BaseURL,
		ClaimCooldown:   cfg.Gifts.ClaimCooldown,
		PaymentCurrency: cfg.Payment.Currency,
		Dev:             dev,
	}, logger, giftOpts...)

	// ---- HTTP server ----
	srv := api.NewServer(giftUC, guard, api.Options{
		TrustProxy:     cfg.Server.TrustProxy,
		RequestTimeout: cfg.Server.Timeout,
		Ready:          ready,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("base_url", cfg.Server.BaseURL).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// ---- Graceful shutdown ----
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
