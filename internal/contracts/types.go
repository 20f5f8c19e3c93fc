package contracts

import "time"

// PriceBar is one daily OHLCV observation for a symbol. At most one bar
// exists per (symbol, date); the store enforces this with a unique key.
type PriceBar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// ClosePoint is a single date-aligned close observation, used for
// comparator series (benchmark closes or peer-group mean closes).
type ClosePoint struct {
	Date  time.Time
	Close float64
}

// ScoreBasis identifies the comparator a relative-strength score was
// computed against.
type ScoreBasis string

const (
	BasisMarket   ScoreBasis = "market"
	BasisSector   ScoreBasis = "sector"
	BasisIndustry ScoreBasis = "industry"
)

// PeriodReturn carries one lookback period's relative momentum together
// with an explicit coverage flag. Covered=false means the series was too
// short for this lookback and the value contributed zero, distinct from
// a legitimate computed value of zero.
type PeriodReturn struct {
	Lookback int
	Value    float64
	Covered  bool
}

// RSScore is a normalized relative-strength score for one symbol on one
// date against one comparator basis. Value is always within [1, 99];
// Raw is the pre-normalization weighted sum.
type RSScore struct {
	Symbol  string
	Date    time.Time
	Basis   ScoreBasis
	Raw     float64
	Value   float64
	Periods []PeriodReturn
}

// Coverage returns how many lookback periods had sufficient history.
func (s *RSScore) Coverage() int {
	n := 0
	for _, p := range s.Periods {
		if p.Covered {
			n++
		}
	}
	return n
}

// RankEntry is one symbol's position in the cross-sectional ranking for
// a date. Positions partition the universe 1..N with no duplicates;
// Percentile is the 1-99 bucket derived from Position.
type RankEntry struct {
	Symbol     string
	Date       time.Time
	Position   int
	Percentile int
	Score      float64
}

// Stage is a discrete weekly trend classification.
type Stage string

const (
	StageBasing       Stage = "Basing"
	StageAdvancing    Stage = "Advancing"
	StageTopping      Stage = "Topping"
	StageDeclining    Stage = "Declining"
	StageTransitional Stage = "Transitional"
)

// TrendStage is the weekly trend classification result for a symbol.
type TrendStage struct {
	Symbol      string
	AsOf        time.Time
	Stage       Stage
	MansfieldRS float64
	BuySignal   bool
}

// Indicator is the full derived row persisted per (symbol, date).
// Pointer fields are absent when the underlying computation was skipped
// for that symbol (soft missing-data outcomes).
type Indicator struct {
	Symbol string
	Date   time.Time

	// Raw per-period relative returns vs the market benchmark
	RS1 *float64
	RS2 *float64
	RS3 *float64
	RS4 *float64

	RSRaw             *float64
	RSScore           *float64
	RSRank            *int
	RSPercentile      *int
	RSNewHigh         *bool
	PeerScoreSector   *float64
	PeerScoreIndustry *float64
	DailyPctChange    *float64

	Stage       *string
	MansfieldRS *float64
	BuySignal   *bool
}

// Classification is a symbol's sector/industry membership from the
// reference-data collaborator.
type Classification struct {
	Symbol   string
	Name     string
	Sector   string
	Industry string
}

// SectorTrend is the average rs_score across a sector on a date.
type SectorTrend struct {
	Sector     string
	Date       time.Time
	AvgRSScore float64
	Symbols    int
}

// RunReport summarizes a batch run. Every symbol lands in exactly one
// bucket, so a run never ends in an ambiguous partial-success state.
type RunReport struct {
	Date      time.Time
	Processed int
	Skipped   int
	Failed    int
}

// Total returns the number of symbols the run attempted.
func (r *RunReport) Total() int {
	return r.Processed + r.Skipped + r.Failed
}
