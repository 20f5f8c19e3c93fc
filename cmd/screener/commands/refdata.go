package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// refdataCmd represents the refdata command
var refdataCmd = &cobra.Command{
	Use:   "refdata",
	Short: "Sync sector and industry classifications",
	Long: `Loads symbol classifications from the configured CSV, then scrapes
provider profile pages for tracked symbols the CSV does not cover.

Example:
  go run ./cmd/screener refdata`,
	RunE: runRefdata,
}

func init() {
	rootCmd.AddCommand(refdataCmd)
}

func runRefdata(cmd *cobra.Command, args []string) error {
	app, err := initApp()
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.syncer.Sync(context.Background())
	if err != nil {
		return fmt.Errorf("classification sync: %w", err)
	}

	fmt.Printf("\nClassifications: %d from CSV, %d scraped, %d unclassified\n",
		report.FromCSV, report.Scraped, report.Unclassified)
	return nil
}
