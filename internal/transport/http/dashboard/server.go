// Package dashboardhttp serves the interactive sales chart: selection API,
// rendered page, PNG snapshot and a websocket feed of chart updates.
package dashboardhttp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"salesboard/internal/catalog"
	"salesboard/internal/logger"
	"salesboard/internal/pipeline"
	"salesboard/internal/render"
	"salesboard/internal/sales"
	"salesboard/internal/transport/http/httpx"

	"github.com/gin-gonic/gin"
)

// Config 描述看板 HTTP 服务的依赖。
type Config struct {
	Addr            string
	Pipeline        *pipeline.Pipeline
	Renderer        *render.Renderer
	SnapshotEnabled bool
}

// Server 提供看板页面与 /api 选择接口。
type Server struct {
	addr   string
	pipe   *pipeline.Pipeline
	router *gin.Engine

	mu        sync.RWMutex
	renderer  *render.Renderer
	snapshots bool
}

// ChartPayload is the JSON view of the current chart.
type ChartPayload struct {
	Selection  sales.Selection  `json:"selection"`
	State      pipeline.State   `json:"state"`
	Labels     sales.AxisLabels `json:"labels"`
	Spec       sales.RenderSpec `json:"spec"`
	Records    []sales.Record   `json:"records"`
	Generation uint64           `json:"generation"`
	Version    uint64           `json:"version"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	Summary    string           `json:"summary"`
	Render     render.Options   `json:"render"`
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("dashboard server requires a pipeline")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("dashboard server requires a renderer")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	s := &Server{
		addr:      cfg.Addr,
		pipe:      cfg.Pipeline,
		router:    httpx.NewEngine(),
		renderer:  cfg.Renderer,
		snapshots: cfg.SnapshotEnabled,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/chart.png", s.handleSnapshot)
	s.router.GET("/ws", s.handleWS)
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "state": s.pipe.State()})
	})
	api := s.router.Group("/api")
	api.GET("/options", s.handleOptions)
	api.GET("/chart", s.handleChart)
	api.PATCH("/selection", s.handleSelection)
	api.POST("/refresh", s.handleRefresh)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// SetRenderer swaps the renderer after a configuration reload.
func (s *Server) SetRenderer(r *render.Renderer, snapshots bool) {
	if r == nil {
		return
	}
	s.mu.Lock()
	s.renderer = r
	s.snapshots = snapshots
	s.mu.Unlock()
}

// CurrentRenderer returns the active renderer and whether snapshots are enabled.
func (s *Server) CurrentRenderer() (*render.Renderer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renderer, s.snapshots
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	logger.Infof("dashboard listening on %s", s.addr)
	return httpx.Serve(ctx, s.addr, s.router)
}

func (s *Server) payload(snap pipeline.Snapshot) ChartPayload {
	r, _ := s.CurrentRenderer()
	records := snap.Records
	if records == nil {
		records = []sales.Record{}
	}
	return ChartPayload{
		Selection:  snap.Selection,
		State:      snap.State,
		Labels:     snap.Labels,
		Spec:       snap.Spec,
		Records:    records,
		Generation: snap.Generation,
		Version:    snap.Version,
		UpdatedAt:  snap.UpdatedAt,
		Summary:    r.Subtitle(snap.Spec),
		Render:     r.Options(),
	}
}

func (s *Server) handleOptions(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipe.Catalog())
}

func (s *Server) handleChart(c *gin.Context) {
	c.JSON(http.StatusOK, s.payload(s.pipe.Snapshot()))
}

func (s *Server) handleSelection(c *gin.Context) {
	var patch sales.SelectionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		httpx.Error(c, http.StatusBadRequest, "invalid selection: "+err.Error())
		return
	}
	s.respond(c, s.pipe.SetSelection(c.Request.Context(), patch))
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.respond(c, s.pipe.Refresh(c.Request.Context()))
}

// respond maps pipeline errors to status codes. The body always carries the
// current chart so a client can keep showing the last good data.
func (s *Server) respond(c *gin.Context, err error) {
	chart := s.payload(s.pipe.Snapshot())
	if err == nil {
		c.JSON(http.StatusOK, chart)
		return
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Warnf("[api] chart update failed ip=%s err=%v", c.ClientIP(), err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "chart": chart})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrUnknownOption):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrSuperseded):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	r, _ := s.CurrentRenderer()
	snap := s.pipe.Snapshot()
	html, err := r.HTML(snap.Spec, snap.Labels)
	if err != nil {
		logger.Errorf("[web] render chart failed err=%v", err)
		httpx.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (s *Server) handleSnapshot(c *gin.Context) {
	r, enabled := s.CurrentRenderer()
	if !enabled {
		httpx.Error(c, http.StatusNotFound, "snapshots disabled")
		return
	}
	snap := s.pipe.Snapshot()
	png, err := r.PNG(c.Request.Context(), snap.Spec, snap.Labels)
	if err != nil {
		logger.Warnf("[web] chart snapshot failed err=%v", err)
		httpx.Error(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
