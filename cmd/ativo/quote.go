package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfcastro/ativo/internal/core"
)

var (
	quoteCurrency string
	quoteType     string
)

var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL",
	Short: "Resolve a live quote through the provider chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuote,
}

func init() {
	quoteCmd.Flags().StringVar(&quoteCurrency, "currency", "", "target currency (USD or BRL)")
	quoteCmd.Flags().StringVar(&quoteType, "type", "", "asset type (crypto, us_stock, br_stock)")
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	a, _, log, err := buildApp()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	q, err := a.Resolver().GetQuote(ctx, args[0],
		core.AssetType(quoteType),
		core.Currency(strings.ToUpper(quoteCurrency)))
	if err != nil {
		return fmt.Errorf("resolving %s: %w", args[0], err)
	}

	fmt.Printf("%s  %.2f %s", q.Symbol, q.Price, q.Currency)
	if q.ChangePercent != 0 {
		fmt.Printf("  %+.2f%%", q.ChangePercent)
	}
	fmt.Printf("  (%s, %s)\n", q.Source, q.Time.Format(time.RFC3339))
	return nil
}
