// Package server exposes the data-source service as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/insighthub-cli/internal/datasource"
	"github.com/KaramelBytes/insighthub-cli/internal/logging"
)

// DefaultMaxUploadBytes caps request bodies when Options leaves it unset.
const DefaultMaxUploadBytes = 25 << 20

// Options tunes the HTTP layer.
type Options struct {
	MaxUploadBytes int64
	SampleSize     int // default sampleSize for /api/schema
}

// Server routes HTTP requests to a datasource.Service.
type Server struct {
	router *gin.Engine
	svc    *datasource.Service
	log    logging.Logger
	opts   Options
}

// New builds the router. Call gin.SetMode before New to change gin's mode.
func New(svc *datasource.Service, log logging.Logger, opts Options) *Server {
	if log == nil {
		log = logging.Nop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{router: gin.New(), svc: svc, log: log, opts: opts}
	s.router.Use(gin.Recovery(), requestLogger(log), bodyLimit(opts.MaxUploadBytes))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := s.router.Group("/api")
	api.POST("/schema", s.handleSchema)

	ds := api.Group("/data-sources")
	ds.POST("", s.handleCreateDataSource)
	ds.GET("", s.handleListDataSources)
	ds.GET("/:id", s.handleGetDataSource)
	ds.DELETE("/:id", s.handleDeleteDataSource)
	ds.GET("/:id/sample", s.handleSample)
	ds.GET("/:id/insights", s.handleInsights)

	api.POST("/analysis", s.handleCreateAnalysis)
	api.GET("/analysis", s.handleGetAnalysis)
	api.POST("/analysis/:id/feedback", s.handleFeedback)

	api.GET("/reports", s.handleListReports)
	api.POST("/reports", s.handleCreateReport)
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request failed", kv...)
			return
		}
		log.Info("request", kv...)
	}
}

func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
