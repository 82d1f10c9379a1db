package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mfcastro/ativo/internal/core"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Currency  CurrencyConfig  `mapstructure:"currency"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Watchlist []WatchlistItem `mapstructure:"watchlist"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Mode   string `mapstructure:"mode"`
	APIKey string `mapstructure:"api_key"`
}

// ProvidersConfig enables and credentials the upstream adapters. The
// fallback order is fixed by each adapter's priority, not by config.
type ProvidersConfig struct {
	Yahoo     ProviderConfig `mapstructure:"yahoo"`
	Brapi     ProviderConfig `mapstructure:"brapi"`
	CoinGecko ProviderConfig `mapstructure:"coingecko"`
	YFin      ProviderConfig `mapstructure:"yfin"`
}

type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

type CacheConfig struct {
	QuoteTTL      time.Duration `mapstructure:"quote_ttl"`
	HistoricalTTL time.Duration `mapstructure:"historical_ttl"`
	NegativeTTL   time.Duration `mapstructure:"negative_ttl"`
}

type CurrencyConfig struct {
	FallbackRate float64       `mapstructure:"fallback_rate"`
	RateTTL      time.Duration `mapstructure:"rate_ttl"`
}

// RefreshConfig controls the scheduled watchlist refresh.
type RefreshConfig struct {
	Schedule   string        `mapstructure:"schedule"`
	BatchSize  int           `mapstructure:"batch_size"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
}

type WatchlistItem struct {
	Symbol    string `mapstructure:"symbol"`
	AssetType string `mapstructure:"asset_type"`
	Currency  string `mapstructure:"currency"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults. Provider
// credentials fall back to their conventional environment variables so
// a config file is not required to wire tokens.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Mode: "release",
		},
		Providers: ProvidersConfig{
			Yahoo:     ProviderConfig{Enabled: true},
			Brapi:     ProviderConfig{Enabled: true, APIKey: os.Getenv("BRAPI_TOKEN")},
			CoinGecko: ProviderConfig{Enabled: true, APIKey: os.Getenv("COINGECKO_API_KEY")},
			YFin:      ProviderConfig{Enabled: true},
		},
		Cache: CacheConfig{
			QuoteTTL:      time.Minute,
			HistoricalTTL: 30 * time.Minute,
			NegativeTTL:   5 * time.Minute,
		},
		Currency: CurrencyConfig{
			FallbackRate: 5.0,
			RateTTL:      10 * time.Minute,
		},
		Refresh: RefreshConfig{
			Schedule:   "*/5 * * * *",
			BatchSize:  5,
			BatchDelay: 500 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Currency.FallbackRate <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fallback_rate must be positive, got %f", c.Currency.FallbackRate))
	}

	if c.Refresh.BatchSize < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("batch_size must be at least 1, got %d", c.Refresh.BatchSize))
	}

	for _, ttl := range []time.Duration{c.Cache.QuoteTTL, c.Cache.HistoricalTTL, c.Cache.NegativeTTL} {
		if ttl < 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("cache TTLs cannot be negative"))
		}
	}

	for _, item := range c.Watchlist {
		if item.Symbol == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("watchlist items need a symbol"))
		}
		if item.Currency != "" && !core.Currency(item.Currency).IsSupported() {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("watchlist %s: unsupported currency %q", item.Symbol, item.Currency))
		}
	}

	return nil
}
