package stage

import (
	"sort"
	"time"

	"github.com/pinger/rstrength/internal/contracts"
)

// WeeklyBar is one calendar week of trading aggregated from daily bars.
// Date is the Friday the week ends on, whether or not Friday traded.
type WeeklyBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// ResampleWeekly aggregates daily bars into weekly bars ending Friday:
// open of the first session, high of the highest, low of the lowest,
// close of the last session, summed volume. Weeks with no sessions are
// simply absent. Input order does not matter; output is date ascending.
func ResampleWeekly(bars []*contracts.PriceBar) []WeeklyBar {
	if len(bars) == 0 {
		return nil
	}

	sorted := make([]*contracts.PriceBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	grouped := make(map[time.Time]*WeeklyBar)
	var order []time.Time

	for _, bar := range sorted {
		week := weekEnding(bar.Date)

		wb, ok := grouped[week]
		if !ok {
			wb = &WeeklyBar{
				Date: week,
				Open: bar.Open,
				High: bar.High,
				Low:  bar.Low,
			}
			grouped[week] = wb
			order = append(order, week)
		}

		if bar.High > wb.High {
			wb.High = bar.High
		}
		if bar.Low < wb.Low {
			wb.Low = bar.Low
		}
		wb.Close = bar.Close
		wb.Volume += bar.Volume
	}

	out := make([]WeeklyBar, len(order))
	for i, week := range order {
		out[i] = *grouped[week]
	}
	return out
}

// weekEnding maps a date to the Friday that closes its trading week.
// Saturday and Sunday roll forward into the following week.
func weekEnding(date time.Time) time.Time {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	offset := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}
