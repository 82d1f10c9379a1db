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
	historyDate     string
	historyRange    string
	historyCurrency string
)

var historyCmd = &cobra.Command{
	Use:   "history SYMBOL",
	Short: "Resolve a historical price or series",
	Long: `With --date, resolves the representative closing price for that
calendar day (falling back to the nearest trading day). With --range,
prints the daily series for the trailing period.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyDate, "date", "", "target date (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyRange, "range", "", "trailing range (1mo, 3mo, 6mo, 1y, 2y, 5y)")
	historyCmd.Flags().StringVar(&historyCurrency, "currency", "", "target currency (USD or BRL)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyDate == "" && historyRange == "" {
		return fmt.Errorf("either --date or --range is required")
	}

	a, _, log, err := buildApp()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if historyDate != "" {
		date, err := time.Parse("2006-01-02", historyDate)
		if err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}

		hp, err := a.Resolver().GetHistoricalPrice(ctx, args[0], date, "",
			core.Currency(strings.ToUpper(historyCurrency)))
		if err != nil {
			return fmt.Errorf("resolving %s at %s: %w", args[0], historyDate, err)
		}

		fmt.Printf("%s  %.2f %s  on %s  (%s)",
			hp.Ticker, hp.Price, hp.Currency, hp.Date.Format("2006-01-02"), hp.Source)
		if hp.Degraded {
			fmt.Print("  [degraded: live price substituted]")
		}
		fmt.Println()
		return nil
	}

	series, err := a.Resolver().GetHistoricalSeries(ctx, args[0], historyRange)
	if err != nil {
		return fmt.Errorf("resolving %s series: %w", args[0], err)
	}

	for _, p := range series {
		fmt.Printf("%s  O %.2f  H %.2f  L %.2f  C %.2f  V %d\n",
			p.Date.Format("2006-01-02"), p.Open, p.High, p.Low, p.Close, p.Volume)
	}
	return nil
}
