// Package server 以 HTTP 形式提供指数估值与市场状态。
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marketValuation/internal/market"
	"marketValuation/internal/quote"
	"marketValuation/internal/trace"
)

// HeaderDataSource 响应头，值为 live、partial 或 fallback。
const HeaderDataSource = "X-Data-Source"

const shutdownTimeout = 10 * time.Second

// Valuator 每次调用都重新抓取，不缓存。
type Valuator interface {
	FetchAll(ctx context.Context) quote.Result
}

type StatusProvider interface {
	Current(ctx context.Context) market.Status
}

type Server struct {
	engine *gin.Engine
	addr   string
}

// New debug 级别日志时使用 gin 的 DebugMode。
func New(addr, logLevel string, valuator Valuator, status StatusProvider) *Server {
	if logLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	// 标准输出只留给 JSON 结果
	gin.DefaultWriter = trace.Logger().Out
	gin.DefaultErrorWriter = trace.Logger().Out
	engine := gin.New()
	engine.Use(gin.Recovery(), requestTrace(), cors())
	setupRoutes(engine, valuator, status)
	return &Server{engine: engine, addr: addr}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 阻塞直到 ctx 取消或监听失败；ctx 取消后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		trace.Log(ctx, "server: 监听 %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		trace.Log(ctx, "server: 正在关闭")
		return srv.Shutdown(shutdownCtx)
	}
}

func setupRoutes(r *gin.Engine, valuator Valuator, status StatusProvider) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "market valuation is running",
		})
	})

	api := r.Group("/api")
	{
		api.GET("/market-valuation", marketValuation(valuator))
		api.GET("/market-status", marketStatus(status))
	}
}

// marketValuation 始终返回 200 与 8 条记录，数据来源写在响应头。
func marketValuation(valuator Valuator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		res := valuator.FetchAll(ctx)
		records := res.Records
		source := res.Source
		if !quote.Finite(records) {
			trace.Warn(ctx, "server: 行情含非有限数值，改用全部兜底数据")
			records, source = quote.CombinedFallback(), quote.SourceFallback
		}
		c.Header(HeaderDataSource, source.String())
		c.PureJSON(http.StatusOK, records)
	}
}

func marketStatus(status StatusProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.PureJSON(http.StatusOK, status.Current(c.Request.Context()))
	}
}
