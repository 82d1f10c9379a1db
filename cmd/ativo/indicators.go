package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfcastro/ativo/internal/indicator"
)

var indicatorsRange string

var indicatorsCmd = &cobra.Command{
	Use:   "indicators SYMBOL",
	Short: "Compute technical indicators from the historical series",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndicators,
}

func init() {
	indicatorsCmd.Flags().StringVar(&indicatorsRange, "range", "1y", "trailing range (1mo, 3mo, 6mo, 1y, 2y, 5y)")
	rootCmd.AddCommand(indicatorsCmd)
}

func runIndicators(cmd *cobra.Command, args []string) error {
	a, _, log, err := buildApp()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	series, err := a.Resolver().GetHistoricalSeries(ctx, args[0], indicatorsRange)
	if err != nil {
		return fmt.Errorf("resolving %s series: %w", args[0], err)
	}

	ind := indicator.Calculate(series)

	fmt.Printf("%s (%s, %d points)\n", args[0], indicatorsRange, len(series))
	printOpt := func(name string, v *float64) {
		if v == nil {
			fmt.Printf("  %-16s n/a\n", name)
			return
		}
		fmt.Printf("  %-16s %.2f\n", name, *v)
	}

	printOpt("volatility %", ind.Volatility)
	fmt.Printf("  %-16s %.2f\n", "max drawdown %", ind.MaxDrawdown)
	printOpt("SMA20", ind.SMA20)
	printOpt("SMA50", ind.SMA50)
	printOpt("SMA200", ind.SMA200)
	printOpt("EMA12", ind.EMA12)
	printOpt("EMA26", ind.EMA26)
	printOpt("MACD", ind.MACD)
	printOpt("RSI14", ind.RSI14)
	printOpt("Bollinger up", ind.BollingerUpper)
	printOpt("Bollinger mid", ind.BollingerMiddle)
	printOpt("Bollinger low", ind.BollingerLower)
	printOpt("ATR14", ind.ATR14)
	fmt.Printf("  %-16s %s\n", "risk", ind.Risk)
	return nil
}
