package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "Relative-strength equity screener",
	Long: `Relative-strength equity screener

Daily OHLCV ingestion, multi-period relative-strength scoring against a
benchmark, cross-sectional ranking, peer-group comparisons and weekly
trend-stage classification.

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener fetch AAPL MSFT NVDA
  go run ./cmd/screener run
  go run ./cmd/screener stage
  go run ./cmd/screener api
  go run ./cmd/screener scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}
