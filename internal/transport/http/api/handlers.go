package apihttp

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stratlab/internal/analysis/performance"
	"stratlab/internal/analysis/visual"
	"stratlab/internal/backtest"
	"stratlab/internal/market"
	"stratlab/internal/pkg/circuit"
	"stratlab/internal/pkg/symbol"
	"stratlab/internal/resolver"
	"stratlab/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type resolveRequest struct {
	Symbols []string `json:"symbols" binding:"required,min=1"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Mode    string   `json:"mode"`
}

type syncRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type executeRequest struct {
	Signals         []types.Signal  `json:"signals" binding:"required"`
	Candles         []market.Candle `json:"candles" binding:"required"`
	StartingCapital float64         `json:"starting_capital"`
}

type summaryRequest struct {
	Trades          []types.SimulatedTrade `json:"trades" binding:"required"`
	StartingCapital float64                `json:"starting_capital"`
}

type breakerView struct {
	Symbol          string     `json:"symbol"`
	State           string     `json:"state"`
	Open            bool       `json:"open"`
	Failures        int        `json:"failures"`
	Threshold       int        `json:"threshold"`
	CooldownSeconds int        `json:"cooldown_seconds"`
	LastFailure     *time.Time `json:"last_failure,omitempty"`
}

func (s *Server) handleResolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	from, to, err := parseWindow(req.From, req.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode := resolver.ParseMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	view := s.resolver.WithPolicy(resolver.PolicyFor(mode, s.policies))
	out := view.ResolveMany(c.Request.Context(), req.Symbols, from, to)
	c.JSON(http.StatusOK, gin.H{"mode": mode.String(), "resolutions": out})
}

func (s *Server) handleSync(c *gin.Context) {
	if s.ingestor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "外部行情源未启用"})
		return
	}
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	from, to, err := parseWindow(req.From, req.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.ingestor.Sync(c.Request.Context(), req.Symbol, from, to)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "sync": res})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sync": res})
}

func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trades, report, err := s.engine.Execute(req.Signals, req.Candles)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summary := performance.Summarize(trades, s.startingCapital(req.StartingCapital))
	c.JSON(http.StatusOK, gin.H{"trades": trades, "report": report, "summary": summary})
}

func (s *Server) handleSummary(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": performance.Summarize(req.Trades, s.startingCapital(req.StartingCapital))})
}

func (s *Server) handleRunStart(c *gin.Context) {
	if s.backtest == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "回测服务未启用"})
		return
	}
	var req backtest.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := s.backtest.Run(c.Request.Context(), req)
	if err != nil {
		if run.Status == backtest.RunStatusFailed {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "run": run})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"run": run})
}

func (s *Server) handleRunList(c *gin.Context) {
	if s.backtest == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "回测服务未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.backtest.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []backtest.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, ok := s.loadRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *Server) handleRunEquity(c *gin.Context) {
	run, ok := s.loadRun(c)
	if !ok {
		return
	}
	page, err := visual.RenderEquityHTML("Backtest "+run.ID, run.Summary)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (s *Server) handleRunEquityPNG(c *gin.Context) {
	run, ok := s.loadRun(c)
	if !ok {
		return
	}
	if len(run.Summary.EquityCurve) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "equity curve is empty"})
		return
	}
	if err := visual.EnsureHeadlessAvailable(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "headless chrome unavailable: " + err.Error()})
		return
	}
	png, err := visual.RenderEquityPNG(c.Request.Context(), "Backtest "+run.ID, run.Summary)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) loadRun(c *gin.Context) (backtest.Run, bool) {
	if s.backtest == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "回测服务未启用"})
		return backtest.Run{}, false
	}
	run, err := s.backtest.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, backtest.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return backtest.Run{}, false
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return backtest.Run{}, false
	}
	return run, true
}

func (s *Server) handleBreakers(c *gin.Context) {
	tracker := s.resolver.Tracker()
	snaps := tracker.Snapshots()
	out := make([]breakerView, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, newBreakerView(snap, tracker))
	}
	c.JSON(http.StatusOK, gin.H{"breakers": out})
}

func (s *Server) handleBreaker(c *gin.Context) {
	key := symbol.Normalize(c.Param("symbol"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 必填"})
		return
	}
	tracker := s.resolver.Tracker()
	c.JSON(http.StatusOK, gin.H{"breaker": newBreakerView(tracker.Snapshot(key), tracker)})
}

func (s *Server) handleExitRules(c *gin.Context) {
	if s.rules == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "退出规则未加载"})
		return
	}
	snap := s.rules.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"version":   snap.Version,
		"loaded_at": snap.LoadedAt,
		"rules":     snap.Table.Entries(),
	})
}

func newBreakerView(snap circuit.Snapshot, tracker *circuit.Tracker) breakerView {
	v := breakerView{
		Symbol:          snap.Name,
		State:           snap.StateLabel(),
		Open:            snap.Open,
		Failures:        snap.Failures,
		Threshold:       tracker.Threshold(),
		CooldownSeconds: int(tracker.Cooldown() / time.Second),
	}
	if !snap.LastFailure.IsZero() {
		last := snap.LastFailure
		v.LastFailure = &last
	}
	return v
}

func (s *Server) startingCapital(raw float64) decimal.Decimal {
	if raw > 0 {
		return decimal.NewFromFloat(raw)
	}
	return s.capital
}

// parseWindow 解析 YYYY-MM-DD；to 为空时取今天。
func parseWindow(rawFrom, rawTo string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if raw := strings.TrimSpace(rawFrom); raw != "" {
		if from, err = market.ParseDate(raw); err != nil {
			return from, to, fmt.Errorf("invalid from %q: %w", raw, err)
		}
	}
	if raw := strings.TrimSpace(rawTo); raw != "" {
		if to, err = market.ParseDate(raw); err != nil {
			return from, to, fmt.Errorf("invalid to %q: %w", raw, err)
		}
	} else {
		to = market.Day(time.Now())
	}
	if !from.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("to %s is before from %s", market.FormatDate(to), market.FormatDate(from))
	}
	return from, to, nil
}
