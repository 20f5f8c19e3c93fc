package rs

import (
	"errors"
	"time"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/pkg/logger"
)

// ErrNoComparator is the soft error returned when no valid comparator
// series exists for a basis. Callers skip that basis for the symbol and
// never substitute a zero-filled series, which would silently bias the
// score toward the raw symbol return.
var ErrNoComparator = errors.New("no comparator series available")

// Default lookback periods in trading observations (~3/6/9/12 months)
// and their weights. The most recent quarter is double-weighted.
var (
	DefaultPeriods = []int{63, 126, 189, 252}
	DefaultWeights = []float64{2, 1, 1, 1}
)

// ScoreEngine computes weighted, normalized relative-strength scores
// for a symbol against a comparator series. It holds no mutable state:
// identical inputs always produce identical scores.
type ScoreEngine struct {
	periods []int
	weights []float64
	logger  *logger.Logger
}

// NewScoreEngine creates a score engine with the default period set.
func NewScoreEngine(log *logger.Logger) *ScoreEngine {
	return &ScoreEngine{
		periods: DefaultPeriods,
		weights: DefaultWeights,
		logger:  log,
	}
}

// Score computes the relative-strength score of symbol against a
// comparator. Both series must be date-ascending; they are inner-joined
// on date before any return is measured so that each leg of a period's
// relative momentum spans the same trading days.
//
// Periods the aligned history cannot cover contribute zero and are
// flagged as uncovered, diluting the score rather than invalidating it.
// With no aligned history at all the raw sum is zero and the score
// lands on the midpoint of the [1, 99] range.
func (e *ScoreEngine) Score(symbol string, basis contracts.ScoreBasis, symSeries, compSeries []contracts.ClosePoint) *contracts.RSScore {
	aligned, dates := AlignSeries(symSeries, compSeries)

	symCloses := make([]float64, len(aligned))
	compCloses := make([]float64, len(aligned))
	for i, pair := range aligned {
		symCloses[i] = pair[0]
		compCloses[i] = pair[1]
	}

	score := &contracts.RSScore{
		Symbol:  symbol,
		Date:    latestDate(dates, symSeries),
		Basis:   basis,
		Periods: make([]contracts.PeriodReturn, len(e.periods)),
	}

	raw := 0.0
	for i, period := range e.periods {
		symRet, symOK := TrailingReturn(symCloses, period)
		compRet, compOK := TrailingReturn(compCloses, period)

		pr := contracts.PeriodReturn{Lookback: period}
		if symOK && compOK {
			pr.Value = symRet - compRet
			pr.Covered = true
		}
		score.Periods[i] = pr

		raw += pr.Value * e.weights[i]
	}

	score.Raw = raw
	score.Value = e.normalize(raw)

	if e.logger != nil {
		e.logger.WithFields(map[string]interface{}{
			"symbol":   symbol,
			"basis":    string(basis),
			"raw":      score.Raw,
			"score":    score.Value,
			"coverage": score.Coverage(),
		}).Debug("Computed RS score")
	}

	return score
}

// normalize rescales the raw weighted sum from its theoretical range
// [-sum(weights), +sum(weights)] into [1, 99], clamping to absorb
// floating-point overshoot at the edges.
func (e *ScoreEngine) normalize(raw float64) float64 {
	maxScore := 0.0
	for _, w := range e.weights {
		maxScore += w
	}
	minScore := -maxScore

	normalized := (raw-minScore)/(maxScore-minScore)*98 + 1

	if normalized < 1 {
		return 1
	}
	if normalized > 99 {
		return 99
	}
	return normalized
}

// NewRSLineHigh reports whether the relative-strength line
// (symbol close / comparator close) is at a new high over the trailing
// lookback observations. The rolling-max definition is self-contained:
// it depends only on the price series, not on previously stored scores.
// ok is false when the aligned history is shorter than the lookback.
func NewRSLineHigh(symSeries, compSeries []contracts.ClosePoint, lookback int) (newHigh bool, ok bool) {
	aligned, _ := AlignSeries(symSeries, compSeries)
	if lookback <= 0 || len(aligned) < lookback {
		return false, false
	}

	window := aligned[len(aligned)-lookback:]
	last := ratio(window[len(window)-1])

	high := last
	for _, pair := range window {
		if r := ratio(pair); r > high {
			high = r
		}
	}

	return last >= high, true
}

func ratio(pair [2]float64) float64 {
	if pair[1] == 0 {
		return 0
	}
	return pair[0] / pair[1]
}

func latestDate(aligned []time.Time, symSeries []contracts.ClosePoint) time.Time {
	if len(aligned) > 0 {
		return aligned[len(aligned)-1]
	}
	if len(symSeries) > 0 {
		return symSeries[len(symSeries)-1].Date
	}
	return time.Time{}
}
