package rs

import (
	"time"

	"github.com/pinger/rstrength/internal/contracts"
)

// TrailingReturn computes the trailing return over the last lookback
// observations of a date-ascending close series:
// (close[t] / close[t-lookback]) - 1 for the latest index t.
//
// Lookbacks count trading observations, not calendar days; the series
// already omits non-trading days. When fewer than lookback+1
// observations exist the second return is false; short history is a
// sentinel, never an error, and callers treat it as a zero contribution
// so partial-history symbols still score on their shorter lookbacks.
func TrailingReturn(closes []float64, lookback int) (float64, bool) {
	if lookback <= 0 || len(closes) < lookback+1 {
		return 0, false
	}

	base := closes[len(closes)-1-lookback]
	if base == 0 {
		return 0, false
	}

	return closes[len(closes)-1]/base - 1, true
}

// DailyChangePct returns the latest day-over-day percent change of a
// date-ascending close series.
func DailyChangePct(closes []float64) (float64, bool) {
	if len(closes) < 2 {
		return 0, false
	}

	prev := closes[len(closes)-2]
	if prev == 0 {
		return 0, false
	}

	return (closes[len(closes)-1]/prev - 1) * 100, true
}

// AlignSeries inner-joins two date-ascending close series on date and
// returns the aligned close values plus the shared dates. Observations
// present in only one series are dropped.
func AlignSeries(a, b []contracts.ClosePoint) (aligned [][2]float64, dates []time.Time) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		da, db := a[i].Date, b[j].Date
		switch {
		case da.Before(db):
			i++
		case db.Before(da):
			j++
		default:
			aligned = append(aligned, [2]float64{a[i].Close, b[j].Close})
			dates = append(dates, da)
			i++
			j++
		}
	}
	return aligned, dates
}
