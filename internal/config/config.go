package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBSSLMode  string

	HTTPPort string

	// PaymentProvider selects the gateway implementation: "stripe" or "mock".
	PaymentProvider     string
	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string

	// EmailSender selects the outbound mail implementation: "smtp" or "console".
	EmailSender  string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	AdminEmail   string

	// AMQPURL is optional; empty disables the event publisher.
	AMQPURL       string
	OrderExchange string

	ShippingCost string

	ReconcileInterval time.Duration
	ReconcileAfter    time.Duration
}

func Load() *Config {
	return &Config{
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", "storefront"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		HTTPPort: getEnv("HTTP_PORT", "8080"),

		PaymentProvider:     getEnv("PAYMENT_PROVIDER", "mock"),
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		Currency:            getEnv("CURRENCY", "usd"),

		EmailSender:  getEnv("EMAIL_SENDER", "console"),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "no-reply@storefront.local"),
		AdminEmail:   getEnv("ADMIN_EMAIL", "admin@storefront.local"),

		AMQPURL:       getEnv("AMQP_URL", ""),
		OrderExchange: getEnv("ORDER_EXCHANGE", "order_events"),

		ShippingCost: getEnv("SHIPPING_COST", "5.00"),

		ReconcileInterval: getDuration("RECONCILE_INTERVAL", time.Minute),
		ReconcileAfter:    getDuration("RECONCILE_AFTER", 5*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
