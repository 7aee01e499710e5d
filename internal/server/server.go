// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/KaramelBytes/spendloom-cli/internal/archive"
	"github.com/KaramelBytes/spendloom-cli/internal/log"
	"github.com/KaramelBytes/spendloom-cli/internal/notify"
	"github.com/KaramelBytes/spendloom-cli/internal/prompt"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

// Options wires the server's collaborators. Nil Summarizer or Archive
// disables the matching endpoints.
type Options struct {
	Analysis   analysis.Options
	Summarizer *prompt.Summarizer
	Archive    *archive.Store
	Publisher  notify.Publisher
	Logger     *log.Logger
	// MaxUploadBytes caps multipart memory; 0 uses 32 MiB.
	MaxUploadBytes int64
	// SummarizeTimeout bounds one shared LLM call; 0 uses 3 minutes.
	SummarizeTimeout time.Duration
	Now              func() time.Time
}

// Server is the HTTP API.
type Server struct {
	router *gin.Engine
	opt    Options
	log    *log.Logger
	calls  singleflight.Group
}

// New builds the router and registers routes.
func New(opt Options) *Server {
	if opt.Logger == nil {
		opt.Logger = log.Discard()
	}
	if opt.Publisher == nil {
		opt.Publisher = notify.Nop{}
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.MaxUploadBytes <= 0 {
		opt.MaxUploadBytes = 32 << 20
	}
	if opt.SummarizeTimeout <= 0 {
		opt.SummarizeTimeout = 3 * time.Minute
	}
	s := &Server{
		router: gin.New(),
		opt:    opt,
		log:    opt.Logger.WithComponent(log.ComponentHTTP),
	}
	s.router.MaxMultipartMemory = opt.MaxUploadBytes
	s.router.Use(gin.Recovery(), s.requestLog())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/export", s.handleExport)
		api.POST("/summarize", s.handleSummarize)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			log.FieldMethod, c.Request.Method,
			log.FieldPath, c.FullPath(),
			log.FieldStatus, c.Writer.Status(),
			log.FieldDuration, time.Since(start).Milliseconds(),
		)
	}
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
