package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search for symbols across providers",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, _, log, err := buildApp()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	matches, err := a.Resolver().SearchSymbols(ctx, args[0], "")
	if err != nil {
		return fmt.Errorf("searching %q: %w", args[0], err)
	}

	for _, m := range matches {
		fmt.Printf("%-12s %s\n", m.Symbol, m.Name)
	}
	return nil
}
