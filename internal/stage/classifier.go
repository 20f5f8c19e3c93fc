package stage

import (
	"time"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/pkg/logger"
)

// Classifier parameters, in weeks.
const (
	fastMAPeriod     = 10
	slowMAPeriod     = 30
	mansfieldPeriod  = 52
	volumeMAPeriod   = 20
	volumeAvgPeriod  = 5
	minWeeklyHistory = mansfieldPeriod
)

// Classifier assigns a Weinstein trend stage to a symbol from its weekly
// bars and a benchmark's weekly closes. Classification is stateless: each
// run recomputes the stage from the full weekly history, and the only
// cross-week datum used is the stage of the prior week, to detect a
// Basing to Advancing crossover.
type Classifier struct {
	logger *logger.Logger
}

// NewClassifier creates a trend-stage classifier.
func NewClassifier(log *logger.Logger) *Classifier {
	return &Classifier{logger: log}
}

// Classify computes the latest trend stage for symbol. The symbol and
// benchmark weekly series are inner-joined on week-ending date before
// any indicator is computed.
//
// Fewer than 52 overlapping weeks cannot anchor the Mansfield RS rolling
// mean; the result is then Transitional with no buy signal, never an
// error.
func (c *Classifier) Classify(symbol string, weekly []WeeklyBar, benchmark []WeeklyBar) *contracts.TrendStage {
	closes, benchCloses, volumes, dates := alignWeekly(weekly, benchmark)

	result := &contracts.TrendStage{
		Symbol: symbol,
		Stage:  contracts.StageTransitional,
	}
	if len(dates) > 0 {
		result.AsOf = dates[len(dates)-1]
	}
	if len(closes) < minWeeklyHistory {
		return result
	}

	mansfield, covered := mansfieldRS(closes, benchCloses)

	last := len(closes) - 1
	result.Stage = c.stageAt(closes, mansfield, covered, last)
	result.MansfieldRS = mansfield[last]
	result.BuySignal = c.buySignal(closes, volumes, mansfield, covered, last)

	if c.logger != nil {
		c.logger.WithFields(map[string]interface{}{
			"symbol":       symbol,
			"stage":        string(result.Stage),
			"mansfield_rs": result.MansfieldRS,
			"buy_signal":   result.BuySignal,
			"weeks":        len(closes),
		}).Debug("Classified trend stage")
	}

	return result
}

// stageAt applies the stage rules at week index i. The rules are checked
// in order; the first match wins. A week without a full Mansfield window
// is Transitional: the oscillator is undefined there, not zero.
func (c *Classifier) stageAt(closes, mansfield []float64, covered []bool, i int) contracts.Stage {
	if !covered[i] {
		return contracts.StageTransitional
	}

	smaFast, fastOK := trailingMean(closes, i, fastMAPeriod)
	smaSlow, slowOK := trailingMean(closes, i, slowMAPeriod)
	if !fastOK || !slowOK {
		return contracts.StageTransitional
	}

	price, mrs := closes[i], mansfield[i]

	switch {
	case price > smaSlow && mrs > 0:
		return contracts.StageAdvancing
	case price < smaSlow && mrs < 0:
		return contracts.StageDeclining
	case price > smaFast && smaFast > smaSlow && mrs > -5:
		return contracts.StageBasing
	case price < smaFast && smaFast < smaSlow && mrs < 5:
		return contracts.StageTopping
	default:
		return contracts.StageTransitional
	}
}

// buySignal fires on a Basing to Advancing crossover between the latest
// two weeks, or while Advancing with a confirmed setup: rising close,
// rising fast MA, positive Mansfield RS, and the 5-week average volume
// above the 20-week average.
func (c *Classifier) buySignal(closes []float64, volumes []int64, mansfield []float64, covered []bool, i int) bool {
	if i < 1 {
		return false
	}

	current := c.stageAt(closes, mansfield, covered, i)
	if current != contracts.StageAdvancing {
		return false
	}

	if c.stageAt(closes, mansfield, covered, i-1) == contracts.StageBasing {
		return true
	}

	return c.buySetup(closes, volumes, mansfield, i)
}

func (c *Classifier) buySetup(closes []float64, volumes []int64, mansfield []float64, i int) bool {
	smaSlow, slowOK := trailingMean(closes, i, slowMAPeriod)
	smaFast, fastOK := trailingMean(closes, i, fastMAPeriod)
	prevFast, prevFastOK := trailingMean(closes, i-1, fastMAPeriod)
	if !slowOK || !fastOK || !prevFastOK {
		return false
	}

	return closes[i] > smaSlow &&
		closes[i] > closes[i-1] &&
		smaFast > prevFast &&
		mansfield[i] > 0 &&
		volumeConfirmed(volumes, i)
}

// volumeConfirmed reports whether the 5-week average volume exceeds the
// 20-week average at index i.
func volumeConfirmed(volumes []int64, i int) bool {
	short, shortOK := trailingMeanInt(volumes, i, volumeAvgPeriod)
	long, longOK := trailingMeanInt(volumes, i, volumeMAPeriod)
	return shortOK && longOK && short > long
}

// mansfieldRS computes the Mansfield relative-strength oscillator:
// the close/benchmark ratio (scaled by 100) measured against its own
// 52-week rolling mean, as a percentage deviation. Weeks before the
// rolling mean has a full window are uncovered; their value is
// undefined, and stage rules must not read it as a real zero.
func mansfieldRS(closes, benchCloses []float64) ([]float64, []bool) {
	ratio := make([]float64, len(closes))
	for i := range closes {
		if benchCloses[i] != 0 {
			ratio[i] = closes[i] / benchCloses[i] * 100
		}
	}

	out := make([]float64, len(closes))
	covered := make([]bool, len(closes))
	for i := range ratio {
		zeroLine, ok := trailingMean(ratio, i, mansfieldPeriod)
		if !ok || zeroLine == 0 {
			continue
		}
		out[i] = (ratio[i]/zeroLine - 1) * 100
		covered[i] = true
	}
	return out, covered
}

// alignWeekly inner-joins symbol and benchmark weekly bars on week date,
// returning parallel slices in ascending date order.
func alignWeekly(weekly, benchmark []WeeklyBar) (closes, benchCloses []float64, volumes []int64, dates []time.Time) {
	benchByDate := make(map[time.Time]float64, len(benchmark))
	for _, b := range benchmark {
		benchByDate[b.Date] = b.Close
	}

	for _, w := range weekly {
		benchClose, ok := benchByDate[w.Date]
		if !ok {
			continue
		}
		closes = append(closes, w.Close)
		benchCloses = append(benchCloses, benchClose)
		volumes = append(volumes, w.Volume)
		dates = append(dates, w.Date)
	}
	return closes, benchCloses, volumes, dates
}

// trailingMean is the simple moving average of values[i-period+1 .. i].
// ok is false when the window extends past the start of the series.
func trailingMean(values []float64, i, period int) (float64, bool) {
	if i+1 < period {
		return 0, false
	}
	sum := 0.0
	for j := i - period + 1; j <= i; j++ {
		sum += values[j]
	}
	return sum / float64(period), true
}

func trailingMeanInt(values []int64, i, period int) (float64, bool) {
	if i+1 < period {
		return 0, false
	}
	var sum int64
	for j := i - period + 1; j <= i; j++ {
		sum += values[j]
	}
	return float64(sum) / float64(period), true
}
