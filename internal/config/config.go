package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string
	Environment          string
	Database             DatabaseConfig
	Payment              PaymentConfig
	Shipping             ShippingConfig
	LogLevel             string
	PaymentWebhookSecret string // PAYMENT_WEBHOOK_SECRET: verify incoming processor webhooks (X-Hub-Signature)
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PaymentConfig is used to call the payment processor (orders, recipients)
type PaymentConfig struct {
	BaseURL string // e.g. https://api.processor.example/core/v5
	APIKey  string // PAYMENT_API_KEY
}

// ShippingConfig is used to call the shipping aggregator for per-store quotes
type ShippingConfig struct {
	BaseURL      string // e.g. https://api.shipping.example/v2
	Token        string // SHIPPING_API_TOKEN
	OriginPostal string // fallback origin CEP when a store has none configured
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "marketapi"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Payment: PaymentConfig{
			BaseURL: strings.TrimSpace(getEnvOrViper("PAYMENT_BASE_URL", "")),
			APIKey:  strings.TrimSpace(getEnvOrViper("PAYMENT_API_KEY", "")),
		},
		Shipping: ShippingConfig{
			BaseURL:      strings.TrimSpace(getEnvOrViper("SHIPPING_BASE_URL", "")),
			Token:        strings.TrimSpace(getEnvOrViper("SHIPPING_API_TOKEN", "")),
			OriginPostal: strings.TrimSpace(getEnvOrViper("SHIPPING_ORIGIN_POSTAL", "")),
		},
		LogLevel:             getEnvOrViper("LOG_LEVEL", "info"),
		PaymentWebhookSecret: strings.TrimSpace(getEnvOrViper("PAYMENT_WEBHOOK_SECRET", "")),
	}

	// Validate required fields
	if cfg.Payment.BaseURL == "" {
		return nil, fmt.Errorf("PAYMENT_BASE_URL is required")
	}
	if cfg.Payment.APIKey == "" {
		return nil, fmt.Errorf("PAYMENT_API_KEY is required")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}
