package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mfcastro/ativo/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
providers:
  brapi:
    enabled: true
    api_key: secret-token
cache:
  quote_ttl: 90s
  negative_ttl: 2m
currency:
  fallback_rate: 5.25
watchlist:
  - symbol: PETR4
    asset_type: br_stock
    currency: BRL
  - symbol: BTC
    asset_type: crypto
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Providers.Brapi.APIKey != "secret-token" {
		t.Errorf("brapi api_key = %q", cfg.Providers.Brapi.APIKey)
	}
	if cfg.Cache.QuoteTTL != 90*time.Second {
		t.Errorf("quote_ttl = %v, want 90s", cfg.Cache.QuoteTTL)
	}
	if cfg.Currency.FallbackRate != 5.25 {
		t.Errorf("fallback_rate = %f", cfg.Currency.FallbackRate)
	}
	if len(cfg.Watchlist) != 2 || cfg.Watchlist[0].Symbol != "PETR4" {
		t.Errorf("watchlist = %+v", cfg.Watchlist)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("ATIVO_TEST_TOKEN", "from-env")

	path := writeConfig(t, `
providers:
  brapi:
    api_key: ${ATIVO_TEST_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Brapi.APIKey != "from-env" {
		t.Errorf("api_key = %q, want from-env", cfg.Providers.Brapi.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaults_EnvCredentials(t *testing.T) {
	t.Setenv("BRAPI_TOKEN", "env-token")
	t.Setenv("COINGECKO_API_KEY", "env-key")

	cfg := Defaults()

	if cfg.Providers.Brapi.APIKey != "env-token" {
		t.Errorf("brapi api_key = %q, want env-token", cfg.Providers.Brapi.APIKey)
	}
	if cfg.Providers.CoinGecko.APIKey != "env-key" {
		t.Errorf("coingecko api_key = %q, want env-key", cfg.Providers.CoinGecko.APIKey)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate, got %v", err)
	}
	if cfg.Cache.QuoteTTL != time.Minute {
		t.Errorf("quote_ttl default = %v", cfg.Cache.QuoteTTL)
	}
	if !cfg.Providers.Yahoo.Enabled {
		t.Error("yahoo should be enabled by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, core.ErrConfigInvalid},
		{"bad fallback rate", func(c *Config) { c.Currency.FallbackRate = -1 }, core.ErrConfigInvalid},
		{"bad batch size", func(c *Config) { c.Refresh.BatchSize = 0 }, core.ErrConfigInvalid},
		{"negative ttl", func(c *Config) { c.Cache.NegativeTTL = -time.Second }, core.ErrConfigInvalid},
		{"watchlist missing symbol", func(c *Config) {
			c.Watchlist = []WatchlistItem{{AssetType: "crypto"}}
		}, core.ErrConfigMissing},
		{"watchlist bad currency", func(c *Config) {
			c.Watchlist = []WatchlistItem{{Symbol: "BTC", Currency: "EUR"}}
		}, core.ErrConfigInvalid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
