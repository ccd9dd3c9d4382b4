package config

import (
	"time"

	"ridewallet/internal/utils"
)

type PaymentConfig struct {
	Stripe         *StripeConfig `yaml:"stripe"`
	Currency       string        `yaml:"currency"`
	MinTopUpMinor  int64         `yaml:"min_top_up_minor"`
	MaxTopUpMinor  int64         `yaml:"max_top_up_minor"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	StatusCacheTTL time.Duration `yaml:"status_cache_ttl"`
	EventMarkerTTL time.Duration `yaml:"event_marker_ttl"`
	SuccessPath    string        `yaml:"success_path"`
	CancelPath     string        `yaml:"cancel_path"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	APIURL        string `yaml:"api_url"`
}

func loadPaymentConfig() *PaymentConfig {
	return &PaymentConfig{
		Stripe: &StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			APIURL:        getEnv("STRIPE_API_URL", ""),
		},
		Currency:       getEnv("PAYMENT_CURRENCY", utils.DefaultCurrency),
		MinTopUpMinor:  getEnvAsInt64("PAYMENT_MIN_TOP_UP_MINOR", utils.MinTopUpMinor),
		MaxTopUpMinor:  getEnvAsInt64("PAYMENT_MAX_TOP_UP_MINOR", 1000000),
		SessionTTL:     getEnvAsDuration("PAYMENT_SESSION_TTL", utils.CheckoutSessionTTL),
		StatusCacheTTL: getEnvAsDuration("PAYMENT_STATUS_CACHE_TTL", 5*time.Minute),
		EventMarkerTTL: getEnvAsDuration("PAYMENT_EVENT_MARKER_TTL", 72*time.Hour),
		SuccessPath:    getEnv("PAYMENT_SUCCESS_PATH", "/wallet?payment=success&session_id={CHECKOUT_SESSION_ID}"),
		CancelPath:     getEnv("PAYMENT_CANCEL_PATH", "/wallet?payment=cancelled"),
	}
}
