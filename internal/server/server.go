// Package server exposes ProcessTurn over HTTP JSON.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/danielpatrickdp/grounded-assistant/internal/orchestrator"
	"github.com/danielpatrickdp/grounded-assistant/internal/respond"
)

// #region types

// TurnProcessor is the pipeline as the server sees it.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, text string, history []orchestrator.Turn) respond.Response
}

// Options tunes the HTTP surface.
type Options struct {
	// MaxHistory keeps only the most recent history turns of a request.
	MaxHistory int
	// Ready reports whether dependencies are usable; nil means always ready.
	Ready func(ctx context.Context) error
}

// TurnRequest is the body of POST /v1/turns.
type TurnRequest struct {
	Text    string              `json:"text"`
	History []orchestrator.Turn `json:"history,omitempty"`
	// Render adds the markdown rendering of the response.
	Render bool `json:"render,omitempty"`
}

// TurnResponse wraps the pipeline response.
type TurnResponse struct {
	respond.Response
	Markdown string `json:"markdown,omitempty"`
}

// #endregion types

// #region server

// Server routes HTTP requests to the pipeline.
type Server struct {
	engine *gin.Engine
	turns  TurnProcessor
	opts   Options
	logger *slog.Logger
}

// New builds the router.
func New(turns TurnProcessor, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 50
	}
	s := &Server{engine: gin.New(), turns: turns, opts: opts, logger: logger}
	s.engine.Use(gin.Recovery(), s.requestLog())

	s.engine.GET("/healthz", s.health)
	v1 := s.engine.Group("/v1")
	{
		v1.POST("/turns", s.processTurn)
	}
	return s
}

// Handler returns the HTTP handler, instrumented with an otelhttp span per
// request.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, "grounded-assistant")
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// #endregion server

// #region handlers

// processTurn handles POST /v1/turns.
func (s *Server) processTurn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	history := req.History
	if len(history) > s.opts.MaxHistory {
		history = history[len(history)-s.opts.MaxHistory:]
	}

	resp := s.turns.ProcessTurn(c.Request.Context(), req.Text, history)
	out := TurnResponse{Response: resp}
	if req.Render {
		out.Markdown = resp.Render()
	}
	c.JSON(http.StatusOK, out)
}

// health handles GET /healthz.
func (s *Server) health(c *gin.Context) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// #endregion handlers
