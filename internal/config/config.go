// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	System    SystemConfig              `yaml:"system"`
	Exchanges map[string]ExchangeConfig `yaml:"exchanges"`
	Pairs     []PairConfig              `yaml:"pairs"`
	Order     OrderConfig               `yaml:"order"`
	Ticker    TickerConfig              `yaml:"ticker"`
	Tick      TickConfig                `yaml:"tick"`
	Storage   StorageConfig             `yaml:"storage"`
	Alerting  AlertingConfig            `yaml:"alerting"`
	Telemetry TelemetryConfig           `yaml:"telemetry"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// ExchangeConfig contains exchange-specific configuration
type ExchangeConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
}

// PairConfig names one exchange.symbol the engine watches
type PairConfig struct {
	Exchange string `yaml:"exchange"`
	Symbol   string `yaml:"symbol"`
	State    string `yaml:"state"` // watch | inactive
}

// OrderConfig contains order placement retry settings
type OrderConfig struct {
	Retry   int `yaml:"retry"`    // max retry-hinted re-attempts
	RetryMs int `yaml:"retry_ms"` // delay between attempts
}

// TickerConfig contains price-oracle polling settings
type TickerConfig struct {
	PriceRetries    int `yaml:"price_retries"`
	PriceIntervalMs int `yaml:"price_interval_ms"`
	MaxAgeMs        int `yaml:"max_age_ms"`
}

// TickConfig contains scheduler intervals in milliseconds. The defaults are
// deliberately offset, non-round periods so the emitters never fire in
// lockstep.
type TickConfig struct {
	WarmupMs   int `yaml:"warmup"`
	DefaultMs  int `yaml:"default"`
	SignalMs   int `yaml:"signal"`
	WatchdogMs int `yaml:"watchdog"`
	OrderingMs int `yaml:"ordering"`
}

// StorageConfig contains the sqlite database location
type StorageConfig struct {
	Path     string `yaml:"path"`
	MaxAgeHr int    `yaml:"max_age_hr"` // retention for log/ticker entries
}

// AlertingConfig contains notification channel settings
type AlertingConfig struct {
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
	SlackWebhookURL  string `yaml:"slack_webhook_url"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// ApplyDefaults fills unset values with the engine defaults.
func (c *Config) ApplyDefaults() {
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.Order.Retry == 0 {
		c.Order.Retry = 4
	}
	if c.Order.RetryMs == 0 {
		c.Order.RetryMs = 1500
	}
	if c.Ticker.PriceRetries == 0 {
		c.Ticker.PriceRetries = 40
	}
	if c.Ticker.PriceIntervalMs == 0 {
		c.Ticker.PriceIntervalMs = 200
	}
	if c.Ticker.MaxAgeMs == 0 {
		c.Ticker.MaxAgeMs = 10000
	}
	if c.Tick.WarmupMs == 0 {
		c.Tick.WarmupMs = 30000
	}
	if c.Tick.DefaultMs == 0 {
		c.Tick.DefaultMs = 20100
	}
	if c.Tick.SignalMs == 0 {
		c.Tick.SignalMs = 10600
	}
	if c.Tick.WatchdogMs == 0 {
		c.Tick.WatchdogMs = 30800
	}
	if c.Tick.OrderingMs == 0 {
		c.Tick.OrderingMs = 10800
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "trade_engine.db"
	}
	if c.Storage.MaxAgeHr == 0 {
		c.Storage.MaxAgeHr = 72
	}
	if c.Telemetry.MetricsPort == 0 {
		c.Telemetry.MetricsPort = 9090
	}
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateSystemConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validatePairs(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateOrderConfig(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validatePairs() error {
	if len(c.Pairs) == 0 {
		return ValidationError{
			Field:   "pairs",
			Message: "at least one pair must be configured",
		}
	}

	for i, pair := range c.Pairs {
		if pair.Exchange == "" || pair.Symbol == "" {
			return ValidationError{
				Field:   fmt.Sprintf("pairs[%d]", i),
				Message: "exchange and symbol are required",
			}
		}
		if pair.State != "" && pair.State != "watch" && pair.State != "inactive" {
			return ValidationError{
				Field:   fmt.Sprintf("pairs[%d].state", i),
				Value:   pair.State,
				Message: "must be one of: watch, inactive",
			}
		}
	}

	return nil
}

func (c *Config) validateOrderConfig() error {
	if c.Order.Retry < 0 {
		return ValidationError{
			Field:   "order.retry",
			Value:   c.Order.Retry,
			Message: "must not be negative",
		}
	}
	if c.Order.RetryMs < 0 {
		return ValidationError{
			Field:   "order.retry_ms",
			Value:   c.Order.RetryMs,
			Message: "must not be negative",
		}
	}
	return nil
}

// WatchedPairs returns the pairs in the watch state (default when unset).
func (c *Config) WatchedPairs() []PairConfig {
	var watched []PairConfig
	for _, pair := range c.Pairs {
		if pair.State == "" || pair.State == "watch" {
			watched = append(watched, pair)
		}
	}
	return watched
}

// Duration accessors; yaml carries milliseconds like the config keys.

func (c *Config) OrderRetryDelay() time.Duration {
	return time.Duration(c.Order.RetryMs) * time.Millisecond
}

func (c *Config) TickerPriceInterval() time.Duration {
	return time.Duration(c.Ticker.PriceIntervalMs) * time.Millisecond
}

func (c *Config) TickerMaxAge() time.Duration {
	return time.Duration(c.Ticker.MaxAgeMs) * time.Millisecond
}

func (c *Config) TickWarmup() time.Duration {
	return time.Duration(c.Tick.WarmupMs) * time.Millisecond
}

func (c *Config) TickDefault() time.Duration {
	return time.Duration(c.Tick.DefaultMs) * time.Millisecond
}

func (c *Config) TickSignal() time.Duration {
	return time.Duration(c.Tick.SignalMs) * time.Millisecond
}

func (c *Config) TickWatchdog() time.Duration {
	return time.Duration(c.Tick.WatchdogMs) * time.Millisecond
}

func (c *Config) TickOrdering() time.Duration {
	return time.Duration(c.Tick.OrderingMs) * time.Millisecond
}

func (c *Config) StorageMaxAge() time.Duration {
	return time.Duration(c.Storage.MaxAgeHr) * time.Hour
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	configCopy := *c
	for name, exchange := range configCopy.Exchanges {
		exchange.APIKey = maskString(exchange.APIKey)
		exchange.SecretKey = maskString(exchange.SecretKey)
		configCopy.Exchanges[name] = exchange
	}

	data, _ := yaml.Marshal(configCopy)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func maskString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	cfg := &Config{
		System: SystemConfig{LogLevel: "INFO"},
		Pairs: []PairConfig{
			{Exchange: "mock", Symbol: "BTC/USDT", State: "watch"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}
