package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"stratlab/internal/backtest"
	"stratlab/internal/config"
	"stratlab/internal/exitplan"
	"stratlab/internal/logger"
	"stratlab/internal/resolver"
	"stratlab/internal/simulation"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Server 暴露 K 线解析、交易模拟、绩效与回测结果的 HTTP API。
type Server struct {
	addr     string
	router   *gin.Engine
	resolver *resolver.Resolver
	policies config.ResolverConfig
	engine   *simulation.Engine
	backtest *backtest.Service
	ingestor *backtest.Ingestor
	rules    *exitplan.Registry
	capital  decimal.Decimal
}

// Config 描述 HTTP Server 的依赖。Backtests/Ingestor/Rules 可为空，对应接口返回 503。
type Config struct {
	Addr            string
	Resolver        *resolver.Resolver
	Policies        config.ResolverConfig
	Engine          *simulation.Engine
	Backtests       *backtest.Service
	Ingestor        *backtest.Ingestor
	Rules           *exitplan.Registry
	StartingCapital decimal.Decimal
}

// NewServer 构建 HTTP Server（不监听）。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("resolver 不能为空")
	}
	if cfg.Engine == nil {
		return nil, errors.New("simulation engine 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		addr:     cfg.Addr,
		router:   router,
		resolver: cfg.Resolver,
		policies: cfg.Policies,
		engine:   cfg.Engine,
		backtest: cfg.Backtests,
		ingestor: cfg.Ingestor,
		rules:    cfg.Rules,
		capital:  cfg.StartingCapital,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := s.router.Group("/api")
	api.POST("/candles/resolve", s.handleResolve)
	api.POST("/candles/sync", s.handleSync)
	api.POST("/trades/execute", s.handleExecute)
	api.POST("/performance/summary", s.handleSummary)
	api.POST("/backtests", s.handleRunStart)
	api.GET("/backtests", s.handleRunList)
	api.GET("/backtests/:id", s.handleRunDetail)
	api.GET("/backtests/:id/equity.html", s.handleRunEquity)
	api.GET("/backtests/:id/equity.png", s.handleRunEquityPNG)
	api.GET("/breaker", s.handleBreakers)
	api.GET("/breaker/:symbol", s.handleBreaker)
	api.GET("/exit-rules", s.handleExitRules)
}

// requestLogger 记录每个请求的状态与耗时。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler 返回底层路由，测试中配合 httptest 使用。
func (s *Server) Handler() http.Handler { return s.router }

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("HTTP API listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
