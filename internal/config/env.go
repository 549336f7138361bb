package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "GIFTS_"

func applyEnv(cfg *Config) {
	cfg.Server.Port = envInt("PORT", cfg.Server.Port)
	cfg.Server.BaseURL = envString("BASE_URL", cfg.Server.BaseURL)
	cfg.Server.TrustProxy = envBool("TRUST_PROXY", cfg.Server.TrustProxy)
	cfg.Server.Timeout = envDuration("REQUEST_TIMEOUT", cfg.Server.Timeout)

	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envString("LOG_FORMAT", cfg.Log.Format)

	cfg.Database.URL = envString("DATABASE_URL", cfg.Database.URL)
	cfg.Redis.URL = envString("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)

	cfg.Gifts.MinAmountCents = int64(envInt("MIN_AMOUNT_CENTS", int(cfg.Gifts.MinAmountCents)))
	cfg.Gifts.MaxMessageLen = envInt("MAX_MESSAGE_LEN", cfg.Gifts.MaxMessageLen)
	cfg.Gifts.DailyIPLimit = envInt("DAILY_IP_LIMIT", cfg.Gifts.DailyIPLimit)
	cfg.Gifts.DailyRecipientLimit = envInt("DAILY_RECIPIENT_LIMIT", cfg.Gifts.DailyRecipientLimit)
	cfg.Gifts.BlockDisposable = envBool("BLOCK_DISPOSABLE", cfg.Gifts.BlockDisposable)
	cfg.Gifts.ClaimCooldown = envSeconds("CLAIM_COOLDOWN_SECONDS", cfg.Gifts.ClaimCooldown)
	cfg.Gifts.BurstLimit = envInt("BURST_LIMIT", cfg.Gifts.BurstLimit)

	cfg.Captcha.Enforce = envBool("CAPTCHA_ENFORCE", cfg.Captcha.Enforce)
	cfg.Captcha.Secret = envString("CAPTCHA_SECRET", cfg.Captcha.Secret)
	cfg.Captcha.VerifyURL = envString("CAPTCHA_VERIFY_URL", cfg.Captcha.VerifyURL)

	cfg.Email.APIKey = envString("EMAIL_API_KEY", cfg.Email.APIKey)
	cfg.Email.From = envString("EMAIL_FROM", cfg.Email.From)
	cfg.Email.BaseURL = envString("EMAIL_BASE_URL", cfg.Email.BaseURL)

	cfg.Payment.Enabled = envBool("PAYMENT_ENABLED", cfg.Payment.Enabled)
	cfg.Payment.SecretKey = envString("PAYMENT_SECRET_KEY", cfg.Payment.SecretKey)
	cfg.Payment.Currency = envString("PAYMENT_CURRENCY", cfg.Payment.Currency)

	cfg.Worker.Count = envInt("WORKERS", cfg.Worker.Count)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func envString(key, def string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// envInt reads a non-negative int.
func envInt(key string, def int) int {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envSeconds(key string, def time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
