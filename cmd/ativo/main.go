package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mfcastro/ativo/internal/app"
	"github.com/mfcastro/ativo/internal/config"
	"github.com/mfcastro/ativo/internal/logger"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "ativo",
	Short: "ativo - multi-provider market data resolution engine",
	Long: `ativo resolves stock and crypto prices through a chain of upstream
providers with caching, USD/BRL conversion and technical indicators.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

// buildApp loads configuration and wires the engine. Shared by every
// subcommand that talks to providers.
func buildApp() (*app.App, *config.Config, *zap.Logger, error) {
	log := logger.Must(debug)

	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return app.New(cfg, log), cfg, log, nil
}

func main() {
	// Credentials like BRAPI_TOKEN may live in a local .env file.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
