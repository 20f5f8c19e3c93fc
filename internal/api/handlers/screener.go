package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/internal/stage"
	"github.com/pinger/rstrength/pkg/logger"
)

// ScreenerHandler serves the derived screening data. All endpoints are
// read-only; runs are triggered from the CLI and the scheduler, never
// over HTTP.
type ScreenerHandler struct {
	bars        contracts.BarRepository
	indicators  contracts.IndicatorRepository
	trends      contracts.SectorTrendRepository
	historyDays int
	logger      *logger.Logger
}

// NewScreenerHandler creates a new screener handler.
func NewScreenerHandler(
	bars contracts.BarRepository,
	indicators contracts.IndicatorRepository,
	trends contracts.SectorTrendRepository,
	historyDays int,
	log *logger.Logger,
) *ScreenerHandler {
	return &ScreenerHandler{
		bars:        bars,
		indicators:  indicators,
		trends:      trends,
		historyDays: historyDays,
		logger:      log,
	}
}

// RankItem is one row of the cross-sectional ranking response.
type RankItem struct {
	Symbol  string  `json:"symbol"`
	RSScore float64 `json:"rs_score"`
}

// GetRanks returns the score cross-section for a date, best first.
// GET /api/ranks?date=2024-06-14&limit=50
func (h *ScreenerHandler) GetRanks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, err := h.resolveDate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if date.IsZero() {
		respondError(w, http.StatusNotFound, "No scores available")
		return
	}

	scores, err := h.indicators.ListScores(ctx, date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list scores")
		respondError(w, http.StatusInternalServerError, "Failed to list scores")
		return
	}

	items := make([]RankItem, 0, len(scores))
	for symbol, score := range scores {
		items = append(items, RankItem{Symbol: symbol, RSScore: score})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].RSScore != items[j].RSScore {
			return items[i].RSScore > items[j].RSScore
		}
		return items[i].Symbol < items[j].Symbol
	})

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		if limit < len(items) {
			items = items[:limit]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":  date.Format("2006-01-02"),
		"count": len(items),
		"ranks": items,
	})
}

// GetIndicators returns the indicator row for a symbol.
// GET /api/symbols/{symbol}/indicators?date=2024-06-14
func (h *ScreenerHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := mux.Vars(r)["symbol"]

	var ind *contracts.Indicator
	var err error

	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, parseErr := time.Parse("2006-01-02", dateStr)
		if parseErr != nil {
			respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		ind, err = h.indicators.Get(ctx, symbol, date)
	} else {
		ind, err = h.indicators.GetLatest(ctx, symbol)
	}

	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get indicators")
		respondError(w, http.StatusInternalServerError, "Failed to get indicators")
		return
	}
	if ind == nil {
		respondError(w, http.StatusNotFound, "No indicators for symbol")
		return
	}

	respondJSON(w, http.StatusOK, indicatorResponse(ind))
}

// GetStage returns the latest weekly trend classification for a symbol.
// GET /api/symbols/{symbol}/stage
func (h *ScreenerHandler) GetStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := mux.Vars(r)["symbol"]

	ind, err := h.indicators.GetLatest(ctx, symbol)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get stage")
		respondError(w, http.StatusInternalServerError, "Failed to get stage")
		return
	}
	if ind == nil || ind.Stage == nil {
		respondError(w, http.StatusNotFound, "No stage for symbol")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":       ind.Symbol,
		"as_of":        ind.Date.Format("2006-01-02"),
		"stage":        *ind.Stage,
		"mansfield_rs": ind.MansfieldRS,
		"buy_signal":   ind.BuySignal,
	})
}

// GetTrendTemplate evaluates the trend-template criteria on demand from
// the stored bars and the symbol's latest score.
// GET /api/symbols/{symbol}/template
func (h *ScreenerHandler) GetTrendTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := mux.Vars(r)["symbol"]

	ind, err := h.indicators.GetLatest(ctx, symbol)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get latest score")
		respondError(w, http.StatusInternalServerError, "Failed to evaluate template")
		return
	}
	if ind == nil || ind.RSScore == nil {
		respondError(w, http.StatusNotFound, "No score for symbol")
		return
	}

	from := ind.Date.AddDate(0, 0, -h.historyDays)
	closes, err := h.bars.GetCloseSeries(ctx, symbol, from, ind.Date)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to load closes")
		respondError(w, http.StatusInternalServerError, "Failed to evaluate template")
		return
	}

	tpl, ok := stage.EvaluateTrendTemplate(closes, *ind.RSScore)
	if !ok {
		respondError(w, http.StatusNotFound, "Insufficient history for template")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":         symbol,
		"as_of":          ind.Date.Format("2006-01-02"),
		"above_mas":      tpl.AboveMAs,
		"ma_order":       tpl.MAOrder,
		"slow_ma_rising": tpl.SlowMARising,
		"above_year_low": tpl.AboveYearLow,
		"near_year_high": tpl.NearYearHigh,
		"strong_rs":      tpl.StrongRS,
		"qualified":      tpl.Qualified,
	})
}

// GetSectorTrends returns stored sector trend rows.
// GET /api/sectors/trends?sector=Technology&from=2024-01-01&to=2024-06-14
func (h *ScreenerHandler) GetSectorTrends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sector := r.URL.Query().Get("sector")

	to := time.Now().UTC()
	if s := r.URL.Query().Get("to"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
			return
		}
		to = parsed
	}

	from := to.AddDate(0, -3, 0)
	if s := r.URL.Query().Get("from"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
			return
		}
		from = parsed
	}

	trends, err := h.trends.List(ctx, sector, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sector trends")
		respondError(w, http.StatusInternalServerError, "Failed to list sector trends")
		return
	}

	type trendItem struct {
		Sector     string  `json:"sector"`
		Date       string  `json:"date"`
		AvgRSScore float64 `json:"avg_rs_score"`
		Symbols    int     `json:"symbols"`
	}

	items := make([]trendItem, len(trends))
	for i, t := range trends {
		items[i] = trendItem{
			Sector:     t.Sector,
			Date:       t.Date.Format("2006-01-02"),
			AvgRSScore: t.AvgRSScore,
			Symbols:    t.Symbols,
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(items),
		"trends": items,
	})
}

// resolveDate parses the date query parameter, defaulting to the latest
// scored date.
func (h *ScreenerHandler) resolveDate(r *http.Request) (time.Time, error) {
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date, expected YYYY-MM-DD")
		}
		return date, nil
	}
	return h.indicators.LatestScoreDate(r.Context())
}

// indicatorResponse flattens an indicator row for JSON, keeping absent
// fields as nulls so consumers can tell skipped from zero.
func indicatorResponse(ind *contracts.Indicator) map[string]interface{} {
	return map[string]interface{}{
		"symbol":                 ind.Symbol,
		"date":                   ind.Date.Format("2006-01-02"),
		"rs1":                    ind.RS1,
		"rs2":                    ind.RS2,
		"rs3":                    ind.RS3,
		"rs4":                    ind.RS4,
		"rs_raw":                 ind.RSRaw,
		"rs_score":               ind.RSScore,
		"rs_rank":                ind.RSRank,
		"rs_percentile":          ind.RSPercentile,
		"rs_new_high":            ind.RSNewHigh,
		"peer_rs_score_sector":   ind.PeerScoreSector,
		"peer_rs_score_industry": ind.PeerScoreIndustry,
		"daily_pct_change":       ind.DailyPctChange,
		"stage":                  ind.Stage,
		"mansfield_rs":           ind.MansfieldRS,
		"buy_signal":             ind.BuySignal,
	}
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
