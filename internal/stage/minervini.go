package stage

import (
	"github.com/pinger/rstrength/internal/contracts"
)

// Trend-template parameters, in trading days.
const (
	templateFastMA   = 50
	templateMidMA    = 150
	templateSlowMA   = 200
	templateSlopeObs = 21  // ~1 month of sessions for the 200-day slope
	templateWindow   = 252 // 52-week high/low window
	templateMinScore = 70.0
)

// TrendTemplate is the pass/fail breakdown of the Minervini trend
// criteria for one symbol on one date.
type TrendTemplate struct {
	AboveMAs     bool // close above 50, 150 and 200-day SMAs
	MAOrder      bool // 150-day SMA above 200-day SMA
	SlowMARising bool // 200-day SMA higher than a month ago
	AboveYearLow bool // close at least 30% above the 52-week low
	NearYearHigh bool // close within 25% of the 52-week high
	StrongRS     bool // rs_score at or above 70
	Qualified    bool // all of the above
}

// EvaluateTrendTemplate checks the trend-template criteria over daily
// closes. ok is false when the history cannot cover the 52-week window
// plus the month needed for the 200-day slope; a short-history symbol is
// skipped, not failed.
func EvaluateTrendTemplate(closes []contracts.ClosePoint, rsScore float64) (TrendTemplate, bool) {
	var tpl TrendTemplate

	need := templateWindow
	if n := templateSlowMA + templateSlopeObs; n > need {
		need = n
	}
	if len(closes) < need {
		return tpl, false
	}

	values := make([]float64, len(closes))
	for i, p := range closes {
		values[i] = p.Close
	}

	last := len(values) - 1
	price := values[last]

	sma50, _ := trailingMean(values, last, templateFastMA)
	sma150, _ := trailingMean(values, last, templateMidMA)
	sma200, _ := trailingMean(values, last, templateSlowMA)
	sma200Prev, _ := trailingMean(values, last-templateSlopeObs, templateSlowMA)

	low, high := windowExtremes(values, last, templateWindow)

	tpl.AboveMAs = price > sma50 && price > sma150 && price > sma200
	tpl.MAOrder = sma150 > sma200
	tpl.SlowMARising = sma200 > sma200Prev
	tpl.AboveYearLow = low > 0 && price >= low*1.30
	tpl.NearYearHigh = high > 0 && price >= high*0.75
	tpl.StrongRS = rsScore >= templateMinScore

	tpl.Qualified = tpl.AboveMAs && tpl.MAOrder && tpl.SlowMARising &&
		tpl.AboveYearLow && tpl.NearYearHigh && tpl.StrongRS

	return tpl, true
}

// windowExtremes returns the min and max of values[i-window+1 .. i].
func windowExtremes(values []float64, i, window int) (low, high float64) {
	low, high = values[i], values[i]
	for j := i - window + 1; j <= i; j++ {
		if values[j] < low {
			low = values[j]
		}
		if values[j] > high {
			high = values[j]
		}
	}
	return low, high
}
