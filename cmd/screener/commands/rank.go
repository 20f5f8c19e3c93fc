package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Print the score cross-section",
	Long: `Prints the stored relative-strength cross-section for a date,
best first.

Example:
  go run ./cmd/screener rank
  go run ./cmd/screener rank --date 2024-06-14 --top 20`,
	RunE: runRank,
}

var (
	rankDate string
	rankTop  int
)

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringVar(&rankDate, "date", "", "trade date (YYYY-MM-DD, default latest)")
	rankCmd.Flags().IntVar(&rankTop, "top", 25, "number of rows to print")
}

func runRank(cmd *cobra.Command, args []string) error {
	app, err := initApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	var date time.Time
	if rankDate != "" {
		date, err = time.Parse("2006-01-02", rankDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	} else {
		date, err = app.indicators.LatestScoreDate(ctx)
		if err != nil {
			return fmt.Errorf("latest score date: %w", err)
		}
		if date.IsZero() {
			return fmt.Errorf("no scores stored yet, run the pipeline first")
		}
	}

	scores, err := app.indicators.ListScores(ctx, date)
	if err != nil {
		return fmt.Errorf("list scores: %w", err)
	}
	if len(scores) == 0 {
		return fmt.Errorf("no scores for %s", date.Format("2006-01-02"))
	}

	type row struct {
		symbol string
		score  float64
	}
	rows := make([]row, 0, len(scores))
	for symbol, score := range scores {
		rows = append(rows, row{symbol, score})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].symbol < rows[j].symbol
	})

	if rankTop > 0 && rankTop < len(rows) {
		rows = rows[:rankTop]
	}

	fmt.Printf("Relative strength, %s (%d symbols)\n\n", date.Format("2006-01-02"), len(scores))
	for i, r := range rows {
		fmt.Printf("%4d  %-8s %6.2f\n", i+1, r.symbol, r.score)
	}

	return nil
}
