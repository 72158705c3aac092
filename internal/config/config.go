// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config enumerates every recognized setting with an explicit default.
type Config struct {
	// Marketplace query API
	PrimaryAPIURL     string `mapstructure:"primary_api_url"`
	SecondaryAPIURL   string `mapstructure:"secondary_api_url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	CacheTTLSeconds   int    `mapstructure:"cache_ttl_seconds"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_seconds"`

	// Chain
	RPCURL         string `mapstructure:"rpc_url"`
	GatewayAddress string `mapstructure:"gateway_address"`

	// Sweep pipeline
	MaxQuantity        int    `mapstructure:"max_quantity"`
	MaxBatchSize       int    `mapstructure:"max_batch_size"`
	OverfetchCeiling   int    `mapstructure:"overfetch_ceiling"`
	GasBase            uint64 `mapstructure:"gas_base"`
	GasPerItem         uint64 `mapstructure:"gas_per_item"`
	GasBufferPercent   int    `mapstructure:"gas_buffer_percent"`
	FallbackGasPerItem uint64 `mapstructure:"fallback_gas_per_item"`
	FallbackGasGwei    int64  `mapstructure:"fallback_gas_gwei"`
	DefaultDailyLimit  string `mapstructure:"default_daily_limit_ron"`
	VerifyBeforeSubmit bool   `mapstructure:"verify_before_submit"`

	// Confirmation monitoring
	PollIntervalMs  int `mapstructure:"poll_interval_ms"`
	MaxPollAttempts int `mapstructure:"max_poll_attempts"`

	// Runner
	Workers      int    `mapstructure:"workers"`
	PostgresURL  string `mapstructure:"postgres_url"`
	DebugLogging bool   `mapstructure:"debug_logging"`
}

const (
	DefaultRequestsPerMinute = 30
	DefaultCacheTTLSeconds   = 15
	DefaultRequestTimeout    = 10
	DefaultMaxQuantity       = 100
	DefaultMaxBatchSize      = 20
	DefaultOverfetchCeiling  = 100
	DefaultGasBase           = uint64(250_000)
	DefaultGasPerItem        = uint64(180_000)
	DefaultGasBufferPercent  = 120
	DefaultFallbackGasGwei   = int64(20)
	DefaultPollIntervalMs    = 3000
	DefaultMaxPollAttempts   = 20
	DefaultWorkers           = 3
)

// Load reads the config file, applies env overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"requests_per_minute":     DefaultRequestsPerMinute,
		"cache_ttl_seconds":       DefaultCacheTTLSeconds,
		"request_timeout_seconds": DefaultRequestTimeout,
		"max_quantity":            DefaultMaxQuantity,
		"max_batch_size":          DefaultMaxBatchSize,
		"overfetch_ceiling":       DefaultOverfetchCeiling,
		"gas_base":                DefaultGasBase,
		"gas_per_item":            DefaultGasPerItem,
		"gas_buffer_percent":      DefaultGasBufferPercent,
		"fallback_gas_per_item":   DefaultGasPerItem,
		"fallback_gas_gwei":       DefaultFallbackGasGwei,
		"default_daily_limit_ron": "500",
		"verify_before_submit":    true,
		"poll_interval_ms":        DefaultPollIntervalMs,
		"max_poll_attempts":       DefaultMaxPollAttempts,
		"workers":                 DefaultWorkers,
		"debug_logging":           false,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SWEEPBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	if env := v.GetString("POSTGRES_URL"); env != "" {
		cfg.PostgresURL = env
	}
	if env := v.GetString("RPC_URL"); env != "" {
		cfg.RPCURL = env
	}

	return &cfg, validate(&cfg)
}

func validate(cfg *Config) error {
	if cfg.PrimaryAPIURL == "" {
		return errors.New("primary_api_url is required")
	}
	if err := validateURL(cfg.PrimaryAPIURL, "http"); err != nil {
		return fmt.Errorf("invalid primary_api_url: %w", err)
	}
	if cfg.SecondaryAPIURL != "" {
		if err := validateURL(cfg.SecondaryAPIURL, "http"); err != nil {
			return fmt.Errorf("invalid secondary_api_url: %w", err)
		}
	}
	if cfg.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if err := validateURL(cfg.RPCURL, "http"); err != nil {
		return fmt.Errorf("invalid rpc_url: %w", err)
	}
	if cfg.GatewayAddress == "" {
		return errors.New("gateway_address is required")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.RequestsPerMinute <= 0 {
		return errors.New("invalid requests_per_minute")
	}
	if cfg.CacheTTLSeconds <= 0 {
		return errors.New("invalid cache_ttl_seconds")
	}
	if cfg.RequestTimeoutSec <= 0 {
		return errors.New("invalid request_timeout_seconds")
	}
	if cfg.MaxQuantity <= 0 {
		return errors.New("invalid max_quantity")
	}
	if cfg.MaxBatchSize <= 0 || cfg.MaxBatchSize > 50 {
		return errors.New("max_batch_size must be between 1 and 50")
	}
	if cfg.OverfetchCeiling < cfg.MaxQuantity {
		return errors.New("overfetch_ceiling must be >= max_quantity")
	}
	if cfg.GasBufferPercent < 100 {
		return errors.New("gas_buffer_percent must be >= 100")
	}
	if cfg.PollIntervalMs <= 0 {
		return errors.New("invalid poll_interval_ms")
	}
	if cfg.MaxPollAttempts <= 0 {
		return errors.New("invalid max_poll_attempts")
	}
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	return nil
}

// RequestTimeout returns the request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// CacheTTL returns the listing cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// PollInterval returns the receipt polling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}
