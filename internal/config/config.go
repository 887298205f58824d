package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Storage. An empty DATABASE_URL selects the in-memory store.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// SMSA
	SMSAAPIURL      string `envconfig:"SMSA_API_URL" default:"https://track.smsaexpress.com/SECOM"`
	SMSAPassKey     string `envconfig:"SMSA_PASS_KEY"`
	SMSATrackingURL string `envconfig:"SMSA_TRACKING_URL" default:"https://www.smsaexpress.com/trackingdetails"`
	SMSAEnabled     bool   `envconfig:"SMSA_ENABLED" default:"true"`
	SMSAUseMock     bool   `envconfig:"SMSA_USE_MOCK" default:"false"`

	// ARAMEX
	AramexAPIURL             string `envconfig:"ARAMEX_API_URL" default:"https://ws.aramex.net/ShippingAPI.V2"`
	AramexUserName           string `envconfig:"ARAMEX_USERNAME"`
	AramexPassword           string `envconfig:"ARAMEX_PASSWORD"`
	AramexAccountNumber      string `envconfig:"ARAMEX_ACCOUNT_NUMBER"`
	AramexAccountPin         string `envconfig:"ARAMEX_ACCOUNT_PIN"`
	AramexAccountEntity      string `envconfig:"ARAMEX_ACCOUNT_ENTITY" default:"RUH"`
	AramexAccountCountryCode string `envconfig:"ARAMEX_ACCOUNT_COUNTRY_CODE" default:"SA"`
	AramexTrackingURL        string `envconfig:"ARAMEX_TRACKING_URL" default:"https://www.aramex.com/track/results"`
	AramexEnabled            bool   `envconfig:"ARAMEX_ENABLED" default:"true"`
	AramexUseMock            bool   `envconfig:"ARAMEX_USE_MOCK" default:"false"`

	// Tracking refresh loop
	RefreshInterval  time.Duration `envconfig:"REFRESH_INTERVAL" default:"15m"`
	RefreshStaleness time.Duration `envconfig:"REFRESH_STALENESS" default:"6h"`
	RefreshEnabled   bool          `envconfig:"REFRESH_ENABLED" default:"true"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"courierbridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns the OpenTelemetry resource attributes for this
// configuration, beyond the service identity the tracer sets itself.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool("smsa.enabled", c.SMSAEnabled),
		attribute.Bool("aramex.enabled", c.AramexEnabled),
		attribute.Bool("refresh.enabled", c.RefreshEnabled),
	}
}
