package web

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"spotbot/config"
	"spotbot/internal/engine"
	"spotbot/internal/exchange"
	"spotbot/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Engine is what the HTTP API reads and drives
type Engine interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context, closePositions bool) (bool, error)
	CloseAllPositions(ctx context.Context) bool
	ClosePosition(ctx context.Context, symbol string) (models.TradeRecord, error)
	IsRunning() bool
	Snapshot() engine.Snapshot
	GetTrades() []models.TradeRecord
	GetBalance(ctx context.Context) (exchange.Balances, error)
	Config() config.EngineConfig
}

// Journal serves persisted trade history across restarts
type Journal interface {
	Recent(ctx context.Context, symbol string, limit int) ([]models.TradeRecord, error)
}

const (
	actionTimeout  = 60 * time.Second
	defaultLimit   = 100
	maxHistoryRows = 1000
)

type Server struct {
	engine  Engine
	journal Journal
	dryRun  bool
	server  *http.Server
	log     *zap.SugaredLogger
}

// NewServer builds the API. journal may be nil.
func NewServer(eng Engine, journal Journal, dryRun bool, port string, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine:  eng,
		journal: journal,
		dryRun:  dryRun,
		log:     log,
	}
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), loggerMiddleware(s.log))

	r.GET("/", s.handleIndex)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/stats", s.handleStats)
		api.GET("/positions", s.handlePositions)
		api.DELETE("/positions/:symbol", s.handleClosePosition)
		api.POST("/positions/close-all", s.handleCloseAll)
		api.GET("/history", s.handleHistory)
		api.GET("/scan", s.handleScan)
		api.GET("/config", s.handleConfig)
		api.POST("/engine/action", s.handleEngineAction)
	}
	return r
}

func (s *Server) Start() {
	s.log.Infof("🌐 Web server starting on http://localhost%s", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorw("❌ Web server error", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	type serviceStatus struct {
		Name    string `json:"name"`
		Status  string `json:"status"`
		Message string `json:"message"`
		Latency int64  `json:"latency_ms"`
	}

	start := time.Now()
	_, err := s.engine.GetBalance(ctx)
	exchangeStatus := serviceStatus{
		Name:    "Binance API",
		Status:  "ok",
		Message: "Connected successfully",
		Latency: time.Since(start).Milliseconds(),
	}
	if err != nil {
		exchangeStatus.Status = "error"
		exchangeStatus.Message = err.Error()
	}

	code := http.StatusOK
	if err != nil {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"engine":    s.engine.Snapshot().State,
		"services":  []serviceStatus{exchangeStatus},
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	snap := s.engine.Snapshot()
	cfg := s.engine.Config()

	inPositions := 0.0
	for _, p := range snap.Positions {
		inPositions += p.EntryPrice * p.Amount
	}

	resp := gin.H{
		"state":          snap.State,
		"running":        s.engine.IsRunning(),
		"is_simulated":   s.dryRun,
		"open_positions": len(snap.Positions),
		"max_slots":      cfg.MaxPositions,
		"free_slots":     cfg.MaxPositions - len(snap.Positions),
		"in_positions":   inPositions,
		"stats":          snap.Stats,
		"last_scan_at":   snap.LastScanAt,
		"timestamp":      time.Now().Unix(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	if balances, err := s.engine.GetBalance(ctx); err == nil {
		resp["balance"] = balances.Free(exchange.QuoteAsset)
	} else {
		resp["balance_error"] = err.Error()
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot().Positions)
}

func (s *Server) handleClosePosition(c *gin.Context) {
	symbol := config.NormalizeSymbol(c.Param("symbol"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), actionTimeout)
	defer cancel()

	s.log.Infof("🔄 Closing position via API: %s", symbol)
	rec, err := s.engine.ClosePosition(ctx, symbol)
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, engine.ErrPositionNotFound) {
			code = http.StatusNotFound
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleCloseAll(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), actionTimeout)
	defer cancel()

	s.log.Info("🛑 Close all requested from API")
	allClosed := s.engine.CloseAllPositions(ctx)

	code := http.StatusOK
	if !allClosed {
		code = http.StatusMultiStatus
	}
	c.JSON(code, gin.H{"all_closed": allClosed})
}

// handleHistory serves this run's trades, or the journal with ?source=journal
func (s *Server) handleHistory(c *gin.Context) {
	limit := queryLimit(c, defaultLimit, maxHistoryRows)
	symbol := config.NormalizeSymbol(c.Query("symbol"))

	if c.Query("source") == "journal" {
		if s.journal == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "trade journal is disabled"})
			return
		}
		records, err := s.journal.Recent(c.Request.Context(), symbol, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, records)
		return
	}

	trades := s.engine.GetTrades()
	out := make([]models.TradeRecord, 0, len(trades))
	for i := len(trades) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol == "" || trades[i].Symbol == symbol {
			out = append(out, trades[i])
		}
	}
	c.JSON(http.StatusOK, out)
}

// handleScan returns the latest scan results, best score first
func (s *Server) handleScan(c *gin.Context) {
	snap := s.engine.Snapshot()
	results := snap.LastScan
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if limit := queryLimit(c, len(results), len(results)); limit < len(results) {
		results = results[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"scanned":    snap.Scanned,
		"total":      snap.Total,
		"updated_at": snap.LastScanAt,
		"results":    results,
	})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Config())
}

func (s *Server) handleEngineAction(c *gin.Context) {
	var req struct {
		Action string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), actionTimeout)
	defer cancel()

	switch req.Action {
	case "start":
		s.log.Info("▶️ Engine start requested from API")
		if err := s.engine.Start(ctx); err != nil {
			c.JSON(actionErrorCode(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": "ok", "state": s.engine.Snapshot().State})
	case "stop", "stop_close":
		s.log.Infof("⏸️ Engine %s requested from API", req.Action)
		allClosed, err := s.engine.Stop(ctx, req.Action == "stop_close")
		if err != nil {
			c.JSON(actionErrorCode(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": "ok", "state": s.engine.Snapshot().State, "all_closed": allClosed})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}

func actionErrorCode(err error) int {
	switch {
	case errors.Is(err, engine.ErrAlreadyRunning), errors.Is(err, engine.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, engine.ErrProbeFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func queryLimit(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// loggerMiddleware logs failed requests only
func loggerMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		log.Warnw("HTTP request failed",
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
