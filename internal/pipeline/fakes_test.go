package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/pkg/config"
	"github.com/pinger/rstrength/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "console"})
}

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:  "error",
		LogFormat: "console",
		MarketData: config.MarketDataConfig{
			HistoryDays: 730,
		},
		Pipeline: config.PipelineConfig{
			Benchmark:        "^GSPC",
			Workers:          4,
			PeerLookbackDays: 365,
		},
	}
}

// fakeBars is an in-memory contracts.BarRepository.
type fakeBars struct {
	mu    sync.Mutex
	bars  map[string][]*contracts.PriceBar
	batch int // UpsertBatch call count
}

func newFakeBars() *fakeBars {
	return &fakeBars{bars: make(map[string][]*contracts.PriceBar)}
}

func (f *fakeBars) add(symbol string, days int, end time.Time, price func(i int) float64, volume int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < days; i++ {
		p := price(i)
		f.bars[symbol] = append(f.bars[symbol], &contracts.PriceBar{
			Symbol: symbol,
			Date:   end.AddDate(0, 0, i-days+1),
			Open:   p,
			High:   p,
			Low:    p,
			Close:  p,
			Volume: volume,
		})
	}
}

func (f *fakeBars) Upsert(_ context.Context, bar *contracts.PriceBar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars[bar.Symbol] = append(f.bars[bar.Symbol], bar)
	return nil
}

func (f *fakeBars) UpsertBatch(ctx context.Context, bars []*contracts.PriceBar) error {
	f.mu.Lock()
	f.batch++
	f.mu.Unlock()
	for _, b := range bars {
		if err := f.Upsert(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBars) GetSeries(_ context.Context, symbol string, from, to time.Time) ([]*contracts.PriceBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*contracts.PriceBar
	for _, b := range f.bars[symbol] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBars) GetCloseSeries(ctx context.Context, symbol string, from, to time.Time) ([]contracts.ClosePoint, error) {
	bars, _ := f.GetSeries(ctx, symbol, from, to)
	out := make([]contracts.ClosePoint, len(bars))
	for i, b := range bars {
		out[i] = contracts.ClosePoint{Date: b.Date, Close: b.Close}
	}
	return out, nil
}

func (f *fakeBars) ListSymbols(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	syms := make([]string, 0, len(f.bars))
	for s := range f.bars {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms, nil
}

func (f *fakeBars) LatestDate(context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest time.Time
	for _, series := range f.bars {
		for _, b := range series {
			if b.Date.After(latest) {
				latest = b.Date
			}
		}
	}
	return latest, nil
}

func (f *fakeBars) MeanCloseSeries(_ context.Context, symbols []string, from, to time.Time) ([]contracts.ClosePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, sym := range symbols {
		for _, b := range f.bars[sym] {
			if b.Date.Before(from) || b.Date.After(to) {
				continue
			}
			sums[b.Date] += b.Close
			counts[b.Date]++
		}
	}
	out := make([]contracts.ClosePoint, 0, len(sums))
	for date, sum := range sums {
		out = append(out, contracts.ClosePoint{Date: date, Close: sum / float64(counts[date])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// fakeIndicators is an in-memory contracts.IndicatorRepository.
type fakeIndicators struct {
	mu   sync.Mutex
	rows map[string]*contracts.Indicator
}

func newFakeIndicators() *fakeIndicators {
	return &fakeIndicators{rows: make(map[string]*contracts.Indicator)}
}

func indicatorKey(symbol string, date time.Time) string {
	return symbol + "|" + date.Format("2006-01-02")
}

func (f *fakeIndicators) row(symbol string, date time.Time) *contracts.Indicator {
	key := indicatorKey(symbol, date)
	ind, ok := f.rows[key]
	if !ok {
		ind = &contracts.Indicator{Symbol: symbol, Date: date}
		f.rows[key] = ind
	}
	return ind
}

func (f *fakeIndicators) UpsertScores(_ context.Context, ind *contracts.Indicator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.row(ind.Symbol, ind.Date)
	row.RS1, row.RS2, row.RS3, row.RS4 = ind.RS1, ind.RS2, ind.RS3, ind.RS4
	row.RSRaw, row.RSScore, row.RSNewHigh = ind.RSRaw, ind.RSScore, ind.RSNewHigh
	row.PeerScoreSector, row.PeerScoreIndustry = ind.PeerScoreSector, ind.PeerScoreIndustry
	row.DailyPctChange = ind.DailyPctChange
	return nil
}

func (f *fakeIndicators) UpsertStage(_ context.Context, ts *contracts.TrendStage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.row(ts.Symbol, ts.AsOf)
	stage := string(ts.Stage)
	mrs := ts.MansfieldRS
	buy := ts.BuySignal
	row.Stage, row.MansfieldRS, row.BuySignal = &stage, &mrs, &buy
	return nil
}

func (f *fakeIndicators) UpdateRanks(_ context.Context, entries []contracts.RankEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		row := f.row(e.Symbol, e.Date)
		pos := e.Position
		pct := e.Percentile
		row.RSRank, row.RSPercentile = &pos, &pct
	}
	return nil
}

func (f *fakeIndicators) LatestScoreDate(context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest time.Time
	for _, row := range f.rows {
		if row.RSScore != nil && row.Date.After(latest) {
			latest = row.Date
		}
	}
	return latest, nil
}

func (f *fakeIndicators) ListScores(_ context.Context, date time.Time) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	scores := make(map[string]float64)
	for _, row := range f.rows {
		if row.Date.Equal(date) && row.RSScore != nil {
			scores[row.Symbol] = *row.RSScore
		}
	}
	return scores, nil
}

func (f *fakeIndicators) Get(_ context.Context, symbol string, date time.Time) (*contracts.Indicator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[indicatorKey(symbol, date)], nil
}

func (f *fakeIndicators) GetLatest(_ context.Context, symbol string) (*contracts.Indicator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *contracts.Indicator
	for _, row := range f.rows {
		if row.Symbol != symbol {
			continue
		}
		if latest == nil || row.Date.After(latest.Date) {
			latest = row
		}
	}
	return latest, nil
}

// fakeSymbols is an in-memory contracts.SymbolRepository.
type fakeSymbols struct {
	mu              sync.Mutex
	classifications map[string]*contracts.Classification
}

func newFakeSymbols() *fakeSymbols {
	return &fakeSymbols{classifications: make(map[string]*contracts.Classification)}
}

func (f *fakeSymbols) Upsert(_ context.Context, c *contracts.Classification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifications[c.Symbol] = c
	return nil
}

func (f *fakeSymbols) UpsertBatch(ctx context.Context, cs []*contracts.Classification) error {
	for _, c := range cs {
		if err := f.Upsert(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSymbols) Get(_ context.Context, symbol string) (*contracts.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.classifications[symbol], nil
}

func (f *fakeSymbols) ListPeers(_ context.Context, group, value, exclude string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var peers []string
	for sym, c := range f.classifications {
		if sym == exclude {
			continue
		}
		v := c.Sector
		if group == "industry" {
			v = c.Industry
		}
		if v == value {
			peers = append(peers, sym)
		}
	}
	sort.Strings(peers)
	return peers, nil
}

// fakeTrends records ComputeAndStore calls.
type fakeTrends struct {
	mu    sync.Mutex
	dates []time.Time
}

func (f *fakeTrends) ComputeAndStore(_ context.Context, date time.Time) ([]contracts.SectorTrend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, date)
	return nil, nil
}

func (f *fakeTrends) List(context.Context, string, time.Time, time.Time) ([]contracts.SectorTrend, error) {
	return nil, nil
}
