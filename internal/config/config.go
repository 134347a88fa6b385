package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"rogerbox/internal/gateway/wompi"
	"rogerbox/pkg/utils"
)

type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	Database DatabaseConfig
	JWT      JWTConfig
	Wompi    WompiConfig
	Payments PaymentsConfig
	Catalog  CatalogConfig
	Kafka    KafkaConfig
}

type DatabaseConfig struct {
	URL         string
	AutoMigrate bool
}

type JWTConfig struct {
	Secret string
}

type WompiConfig struct {
	PublicKey       string
	PrivateKey      string
	IntegritySecret string
	EventsSecret    string
	Environment     wompi.Environment
	BaseURL         string
	Timeout         time.Duration
	CallbackBaseURL string
}

type PaymentsConfig struct {
	ReferencePrefix string
	Currency        string
	OrderTTL        time.Duration
	CheckoutTimeout time.Duration
	BlockRepurchase bool
}

type CatalogConfig struct {
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	PaymentsTopic string
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// GatewayConfig is the client configuration derived from the Wompi keys.
func (c *Config) GatewayConfig() wompi.Config {
	return wompi.Config{
		PublicKey:   c.Wompi.PublicKey,
		PrivateKey:  c.Wompi.PrivateKey,
		Environment: c.Wompi.Environment,
		BaseURL:     c.Wompi.BaseURL,
		Timeout:     c.Wompi.Timeout,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_AUTO_MIGRATE", false)
	v.SetDefault("WOMPI_ENVIRONMENT", string(wompi.EnvSandbox))
	v.SetDefault("WOMPI_TIMEOUT", "10s")
	v.SetDefault("PAYMENTS_REFERENCE_PREFIX", "ROGER")
	v.SetDefault("PAYMENTS_CURRENCY", "COP")
	v.SetDefault("PAYMENTS_ORDER_TTL", "30m")
	v.SetDefault("PAYMENTS_CHECKOUT_TIMEOUT", "25s")
	v.SetDefault("PAYMENTS_BLOCK_REPURCHASE", true)
	v.SetDefault("CATALOG_CACHE_TTL", "5m")
	v.SetDefault("KAFKA_PAYMENTS_TOPIC", "rogerbox.payments")
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v), nil
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	setDefaults(v)

	cfg := &Config{
		Port:     v.GetString("PORT"),
		AppEnv:   v.GetString("APP_ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Database: DatabaseConfig{
			URL:         v.GetString("DATABASE_URL"),
			AutoMigrate: v.GetBool("DATABASE_AUTO_MIGRATE"),
		},
		JWT: JWTConfig{Secret: v.GetString("JWT_SECRET")},
		Wompi: WompiConfig{
			PublicKey:       v.GetString("WOMPI_PUBLIC_KEY"),
			PrivateKey:      v.GetString("WOMPI_PRIVATE_KEY"),
			IntegritySecret: v.GetString("WOMPI_INTEGRITY_SECRET"),
			EventsSecret:    v.GetString("WOMPI_EVENTS_SECRET"),
			Environment:     wompi.Environment(strings.ToLower(v.GetString("WOMPI_ENVIRONMENT"))),
			BaseURL:         v.GetString("WOMPI_BASE_URL"),
			Timeout:         v.GetDuration("WOMPI_TIMEOUT"),
			CallbackBaseURL: strings.TrimRight(v.GetString("CALLBACK_BASE_URL"), "/"),
		},
		Payments: PaymentsConfig{
			ReferencePrefix: v.GetString("PAYMENTS_REFERENCE_PREFIX"),
			Currency:        strings.ToUpper(v.GetString("PAYMENTS_CURRENCY")),
			OrderTTL:        v.GetDuration("PAYMENTS_ORDER_TTL"),
			CheckoutTimeout: v.GetDuration("PAYMENTS_CHECKOUT_TIMEOUT"),
			BlockRepurchase: v.GetBool("PAYMENTS_BLOCK_REPURCHASE"),
		},
		Catalog: CatalogConfig{CacheTTL: v.GetDuration("CATALOG_CACHE_TTL")},
		Kafka: KafkaConfig{
			Brokers:       splitList(v.GetString("KAFKA_BROKERS")),
			PaymentsTopic: v.GetString("KAFKA_PAYMENTS_TOPIC"),
		},
	}
	return cfg
}

// Validate fails when a required key is missing or a value is out of range.
func (c *Config) Validate() error {
	var missing []string
	required := map[string]string{
		"DATABASE_URL":           c.Database.URL,
		"JWT_SECRET":             c.JWT.Secret,
		"WOMPI_PUBLIC_KEY":       c.Wompi.PublicKey,
		"WOMPI_PRIVATE_KEY":      c.Wompi.PrivateKey,
		"WOMPI_INTEGRITY_SECRET": c.Wompi.IntegritySecret,
		"WOMPI_EVENTS_SECRET":    c.Wompi.EventsSecret,
	}
	for _, key := range requiredOrder {
		if strings.TrimSpace(required[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", utils.ErrConfiguration, strings.Join(missing, ", "))
	}

	switch c.Wompi.Environment {
	case wompi.EnvSandbox, wompi.EnvProduction:
	default:
		return fmt.Errorf("%w: WOMPI_ENVIRONMENT must be sandbox or production, got %q", utils.ErrConfiguration, c.Wompi.Environment)
	}
	if c.Payments.CheckoutTimeout <= 0 || c.Wompi.Timeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", utils.ErrConfiguration)
	}
	if c.Payments.ReferencePrefix == "" || len(c.Payments.Currency) != 3 {
		return fmt.Errorf("%w: invalid reference prefix or currency", utils.ErrConfiguration)
	}
	return nil
}

var requiredOrder = []string{
	"DATABASE_URL",
	"JWT_SECRET",
	"WOMPI_PUBLIC_KEY",
	"WOMPI_PRIVATE_KEY",
	"WOMPI_INTEGRITY_SECRET",
	"WOMPI_EVENTS_SECRET",
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
