package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score and rank the universe",
	Long: `Scores every tracked symbol against the benchmark, ranks the
cross-section, computes peer-group scores and refreshes sector trends.

Without --date the latest stored bar date is scored. With --backfill
every trading date in [--from, --to] is scored in order.

Example:
  go run ./cmd/screener run
  go run ./cmd/screener run --date 2024-06-14
  go run ./cmd/screener run --backfill --from 2024-01-01 --to 2024-06-14`,
	RunE: runPipeline,
}

var (
	runDate     string
	runBackfill bool
	runFrom     string
	runTo       string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDate, "date", "", "trade date to score (YYYY-MM-DD, default latest)")
	runCmd.Flags().BoolVar(&runBackfill, "backfill", false, "score every trading date in a range")
	runCmd.Flags().StringVar(&runFrom, "from", "", "backfill start date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runTo, "to", "", "backfill end date (YYYY-MM-DD, default today)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	app, err := initApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	if runBackfill {
		if runFrom == "" {
			return fmt.Errorf("--backfill requires --from")
		}
		from, err := time.Parse("2006-01-02", runFrom)
		if err != nil {
			return fmt.Errorf("invalid --from date: %w", err)
		}
		to := time.Now().UTC()
		if runTo != "" {
			to, err = time.Parse("2006-01-02", runTo)
			if err != nil {
				return fmt.Errorf("invalid --to date: %w", err)
			}
		}

		fmt.Printf("Backfilling scores from %s to %s\n",
			from.Format("2006-01-02"), to.Format("2006-01-02"))

		if err := app.runner.Backfill(ctx, from, to); err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		fmt.Println("Backfill completed")
		return nil
	}

	var asOf time.Time
	if runDate != "" {
		asOf, err = time.Parse("2006-01-02", runDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	report, err := app.runner.Run(ctx, asOf)
	if err != nil {
		return fmt.Errorf("scoring run: %w", err)
	}

	printReport(fmt.Sprintf("Run %s", report.Date.Format("2006-01-02")), report)
	return nil
}
