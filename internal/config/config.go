// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port       int           `yaml:"port"`
	BaseURL    string        `yaml:"base_url"`    // public origin used in claim links
	TrustProxy bool          `yaml:"trust_proxy"` // honour X-Forwarded-For
	Timeout    time.Duration `yaml:"timeout"`     // per-request deadline
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type GiftsConfig struct {
	MinAmountCents      int64         `yaml:"min_amount_cents"`
	MaxMessageLen       int           `yaml:"max_message_len"`
	DailyIPLimit        int           `yaml:"daily_ip_limit"`
	DailyRecipientLimit int           `yaml:"daily_recipient_limit"`
	BlockDisposable     bool          `yaml:"block_disposable"`
	ClaimCooldown       time.Duration `yaml:"claim_cooldown"`
	BurstLimit          int           `yaml:"burst_limit"`
	BurstWindow         time.Duration `yaml:"burst_window"`
	QuotaCacheSize      int           `yaml:"quota_cache_size"` // in-memory quota store only
}

type CaptchaConfig struct {
	Enforce   bool          `yaml:"enforce"`
	Secret    string        `yaml:"secret"`
	VerifyURL string        `yaml:"verify_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type EmailConfig struct {
	APIKey   string        `yaml:"api_key"`
	From     string        `yaml:"from"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	RetryGap time.Duration `yaml:"retry_gap"`
}

type PaymentConfig struct {
	Enabled   bool          `yaml:"enabled"`
	SecretKey string        `yaml:"secret_key"`
	BaseURL   string        `yaml:"base_url"`
	Currency  string        `yaml:"currency"`
	Timeout   time.Duration `yaml:"timeout"`
}

type WorkerConfig struct {
	Count int `yaml:"count"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Gifts    GiftsConfig    `yaml:"gifts"`
	Captcha  CaptchaConfig  `yaml:"captcha"`
	Email    EmailConfig    `yaml:"email"`
	Payment  PaymentConfig  `yaml:"payment"`
	Worker   WorkerConfig   `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Default returns the configuration used when neither file nor environment
// sets a value.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8080, Timeout: 15 * time.Second},
		Log:    LogConfig{Level: "info", Format: "json"},
		Database: DatabaseConfig{
			MaxConns: 10,
		},
		Gifts: GiftsConfig{
			MinAmountCents:      1000,
			MaxMessageLen:       1000,
			DailyIPLimit:        40,
			DailyRecipientLimit: 8,
			BlockDisposable:     true,
			BurstLimit:          120,
			BurstWindow:         10 * time.Minute,
			QuotaCacheSize:      100000,
		},
		Captcha: CaptchaConfig{
			VerifyURL: "https://challenges.cloudflare.com/turnstile/v0/siteverify",
			Timeout:   10 * time.Second,
		},
		Email: EmailConfig{
			BaseURL:  "https://api.resend.com",
			Timeout:  10 * time.Second,
			RetryGap: 500 * time.Millisecond,
		},
		Payment: PaymentConfig{
			BaseURL:  "https://api.stripe.com",
			Currency: "usd",
			Timeout:  10 * time.Second,
		},
		Worker: WorkerConfig{Count: 4},
	}
}

// LoadConfig reads the YAML file at path (optional when empty or missing),
// applies GIFTS_* environment overrides and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// environment-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(&cfg)
	normalize(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) {
	d := Default()
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.Timeout <= 0 {
		cfg.Server.Timeout = d.Server.Timeout
	}
	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
	if cfg.Gifts.MinAmountCents <= 0 {
		cfg.Gifts.MinAmountCents = d.Gifts.MinAmountCents
	}
	if cfg.Gifts.MaxMessageLen <= 0 {
		cfg.Gifts.MaxMessageLen = d.Gifts.MaxMessageLen
	}
	if cfg.Gifts.DailyIPLimit <= 0 {
		cfg.Gifts.DailyIPLimit = d.Gifts.DailyIPLimit
	}
	if cfg.Gifts.DailyRecipientLimit <= 0 {
		cfg.Gifts.DailyRecipientLimit = d.Gifts.DailyRecipientLimit
	}
	if cfg.Gifts.ClaimCooldown < 0 {
		cfg.Gifts.ClaimCooldown = 0
	}
	if cfg.Gifts.BurstLimit <= 0 {
		cfg.Gifts.BurstLimit = d.Gifts.BurstLimit
	}
	if cfg.Gifts.BurstWindow <= 0 {
		cfg.Gifts.BurstWindow = d.Gifts.BurstWindow
	}
	if cfg.Gifts.QuotaCacheSize <= 0 {
		cfg.Gifts.QuotaCacheSize = d.Gifts.QuotaCacheSize
	}
	if cfg.Captcha.VerifyURL == "" {
		cfg.Captcha.VerifyURL = d.Captcha.VerifyURL
	}
	if cfg.Captcha.Timeout <= 0 {
		cfg.Captcha.Timeout = d.Captcha.Timeout
	}
	if cfg.Email.BaseURL == "" {
		cfg.Email.BaseURL = d.Email.BaseURL
	}
	if cfg.Email.Timeout <= 0 {
		cfg.Email.Timeout = d.Email.Timeout
	}
	if cfg.Email.RetryGap <= 0 {
		cfg.Email.RetryGap = d.Email.RetryGap
	}
	if cfg.Payment.BaseURL == "" {
		cfg.Payment.BaseURL = d.Payment.BaseURL
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = d.Payment.Currency
	}
	cfg.Payment.Currency = strings.ToLower(cfg.Payment.Currency)
	if cfg.Payment.Timeout <= 0 {
		cfg.Payment.Timeout = d.Payment.Timeout
	}
	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = d.Worker.Count
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = d.Database.MaxConns
	}
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url is required")
	}
	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return errors.New("server.base_url must be an absolute http(s) URL")
	}
	if c.Captcha.Enforce && c.Captcha.Secret == "" {
		return errors.New("captcha.secret is required when captcha.enforce is set")
	}
	if c.Payment.Enabled && c.Payment.SecretKey == "" && !c.Runtime.Dev {
		return errors.New("payment.secret_key is required when payment.enabled is set")
	}
	if c.Email.APIKey != "" && c.Email.From == "" {
		return errors.New("email.from is required when email.api_key is set")
	}
	if c.Database.URL == "" && !c.Runtime.Dev {
		return errors.New("database.url is required (or run with -dev for the in-memory store)")
	}
	return nil
}
