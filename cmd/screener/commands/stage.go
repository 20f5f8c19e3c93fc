package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// stageCmd represents the stage command
var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Classify weekly trend stages",
	Long: `Resamples every tracked symbol to weekly bars and classifies its
trend stage (Basing, Advancing, Topping, Declining, Transitional) with
Mansfield relative strength against the benchmark.

Example:
  go run ./cmd/screener stage`,
	RunE: runStages,
}

func init() {
	rootCmd.AddCommand(stageCmd)
}

func runStages(cmd *cobra.Command, args []string) error {
	app, err := initApp()
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.stages.Run(context.Background())
	if err != nil {
		return fmt.Errorf("stage run: %w", err)
	}

	printReport("Stage classification", report)
	return nil
}
