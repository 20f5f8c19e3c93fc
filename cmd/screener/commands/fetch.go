package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [symbols...]",
	Short: "Fetch daily bars",
	Long: `Fetches daily OHLCV bars for the given symbols and stores them.

Without arguments the currently tracked universe is refreshed. The
benchmark is always fetched alongside the universe.

Example:
  go run ./cmd/screener fetch AAPL MSFT NVDA
  go run ./cmd/screener fetch --days 730
  go run ./cmd/screener fetch AAPL --from 2023-01-01 --to 2024-06-14`,
	RunE: runFetch,
}

var (
	fetchDays int
	fetchFrom string
	fetchTo   string
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().IntVar(&fetchDays, "days", 0, "calendar days of history (default: config HISTORY_DAYS)")
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "start date (YYYY-MM-DD, overrides --days)")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "end date (YYYY-MM-DD, default today)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	app, err := initApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	symbols := args
	if len(symbols) == 0 {
		symbols, err = app.bars.ListSymbols(ctx)
		if err != nil {
			return fmt.Errorf("list symbols: %w", err)
		}
		if len(symbols) == 0 {
			return fmt.Errorf("no symbols tracked yet, pass symbols to fetch")
		}
	}

	to := time.Now().UTC()
	if fetchTo != "" {
		to, err = time.Parse("2006-01-02", fetchTo)
		if err != nil {
			return fmt.Errorf("invalid --to date: %w", err)
		}
	}

	days := fetchDays
	if days <= 0 {
		days = app.cfg.MarketData.HistoryDays
	}
	from := to.AddDate(0, 0, -days)
	if fetchFrom != "" {
		from, err = time.Parse("2006-01-02", fetchFrom)
		if err != nil {
			return fmt.Errorf("invalid --from date: %w", err)
		}
	}

	fmt.Printf("Fetching %d symbols from %s to %s\n",
		len(symbols), from.Format("2006-01-02"), to.Format("2006-01-02"))

	report, err := app.ingestor.Run(ctx, symbols, from, to)
	if err != nil {
		return fmt.Errorf("fetch bars: %w", err)
	}

	printReport("Fetch", report)
	return nil
}
