// Package salesapihttp serves the reference sales records resource backed by SQLite.
package salesapihttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"salesboard/internal/logger"
	"salesboard/internal/sales"
	"salesboard/internal/store/gormstore"
	"salesboard/internal/store/querylog"
	"salesboard/internal/transport/http/httpx"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Aggregator answers (statistic, cohort) queries.
type Aggregator interface {
	Aggregate(ctx context.Context, statistic sales.Statistic, cohort sales.Cohort) ([]sales.Record, error)
}

// QueryLog records served queries. Optional.
type QueryLog interface {
	Append(ctx context.Context, e querylog.Entry) (int64, error)
	Recent(ctx context.Context, limit int) ([]querylog.Entry, error)
}

// Config 描述参考销售接口的依赖。
type Config struct {
	Addr  string
	Store Aggregator
	Log   QueryLog
}

// Server 提供 /api/sales 查询接口。
type Server struct {
	addr   string
	store  Aggregator
	log    QueryLog
	router *gin.Engine
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("sales api server requires a store")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	s := &Server{addr: cfg.Addr, store: cfg.Store, log: cfg.Log, router: httpx.NewEngine()}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := s.router.Group("/api/sales")
	api.GET("", s.handleQuery)
	api.GET("/queries", s.handleQueries)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	logger.Infof("sales api listening on %s", s.addr)
	return httpx.Serve(ctx, s.addr, s.router)
}

func (s *Server) handleQuery(c *gin.Context) {
	stat := sales.Statistic(c.Query("stat"))
	cohort := sales.Cohort(c.Query("cohort"))
	traceID := uuid.NewString()
	start := time.Now()

	records, err := s.store.Aggregate(c.Request.Context(), stat, cohort)
	s.record(c.Request.Context(), querylog.Entry{
		TraceID:    traceID,
		Statistic:  string(stat),
		Cohort:     string(cohort),
		Rows:       len(records),
		DurationMS: time.Since(start).Milliseconds(),
		Error:      errString(err),
	})
	c.Header("X-Trace-Id", traceID)
	if err != nil {
		if errors.Is(err, gormstore.ErrUnknownStatistic) || errors.Is(err, gormstore.ErrUnknownCohort) {
			httpx.Error(c, http.StatusBadRequest, err.Error())
			return
		}
		logger.Errorf("[api] sales query failed stat=%q cohort=%q err=%v", stat, cohort, err)
		httpx.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []sales.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleQueries(c *gin.Context) {
	if s.log == nil {
		httpx.Error(c, http.StatusServiceUnavailable, "query log disabled")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := s.log.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] list served queries failed err=%v", err)
		httpx.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"queries": entries})
}

func (s *Server) record(ctx context.Context, e querylog.Entry) {
	if s.log == nil {
		return
	}
	if _, err := s.log.Append(context.WithoutCancel(ctx), e); err != nil {
		logger.Warnf("[api] append query log failed trace=%s err=%v", e.TraceID, err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
