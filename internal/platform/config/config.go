package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the full configuration surface of the invoicing gateway.
// Values come from configs/config.defaults.yaml, overridden by APP_* env vars.
type Config struct {
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	HTTPPort    int    `mapstructure:"HTTP_PORT"`
	MetricsPort int    `mapstructure:"METRICS_PORT"`
	NATSUrl     string `mapstructure:"NATS_URL"`

	// Provider (PayPal) settings.
	PayPalMode      string `mapstructure:"PAYPAL_MODE"` // "sandbox" or "live"
	PayPalClientID  string `mapstructure:"PAYPAL_CLIENT_ID"`
	PayPalSecret    string `mapstructure:"PAYPAL_SECRET"`
	PayPalWebhookID string `mapstructure:"PAYPAL_WEBHOOK_ID"`

	// Invoice issuance settings.
	SettlementCurrency        string `mapstructure:"SETTLEMENT_CURRENCY"`
	InvoiceBrandName          string `mapstructure:"INVOICE_BRAND_NAME"`
	SellerEmail               string `mapstructure:"SELLER_EMAIL"`
	InvoiceTerms              string `mapstructure:"INVOICE_TERMS"`
	PlaceholderRecipientEmail string `mapstructure:"PLACEHOLDER_RECIPIENT_EMAIL"`
	InvoiceSendMode           string `mapstructure:"INVOICE_SEND_MODE"` // invoicer, placeholder or share_link

	// Webhook reconciliation settings.
	FallbackChannelID string `mapstructure:"FALLBACK_CHANNEL_ID"`
}

func Load(serviceName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.defaults")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix("APP")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("METRICS_PORT", 9094)
	v.SetDefault("NATS_URL", "nats://localhost:4222")

	v.SetDefault("PAYPAL_MODE", "sandbox")
	v.SetDefault("PAYPAL_CLIENT_ID", "")
	v.SetDefault("PAYPAL_SECRET", "")
	v.SetDefault("PAYPAL_WEBHOOK_ID", "")

	v.SetDefault("SETTLEMENT_CURRENCY", "USD")
	v.SetDefault("INVOICE_BRAND_NAME", "Shop")
	v.SetDefault("SELLER_EMAIL", "")
	v.SetDefault("INVOICE_TERMS", "Digital goods. No shipping.")
	v.SetDefault("PLACEHOLDER_RECIPIENT_EMAIL", "")
	v.SetDefault("INVOICE_SEND_MODE", "invoicer")

	v.SetDefault("FALLBACK_CHANNEL_ID", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Base configuration file ('config.defaults.yaml') not found; using defaults and environment variables.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	_ = serviceName // reserved for layered per-service config files
	return &cfg, nil
}
