package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Elias8833/webmonetization/internal/handlers"
)

const shutdownTimeout = 10 * time.Second

// Server represents the HTTP server
type Server struct {
	router   *gin.Engine
	handler  *handlers.Handler
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	verbose  bool
}

// NewServer creates a new HTTP server
func NewServer(handler *handlers.Handler, gatherer prometheus.Gatherer, logger *zap.Logger, verbose bool) *Server {
	if verbose {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	server := &Server{
		router:   router,
		handler:  handler,
		gatherer: gatherer,
		logger:   logger.Named("http"),
		verbose:  verbose,
	}

	if verbose {
		router.Use(server.loggingMiddleware)
	}
	server.setupRoutes()
	return server
}

// Router exposes the engine, mainly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		content := api.Group("/exclusive-content")
		{
			content.POST("", s.handler.Generate)
			content.GET("/:id", s.handler.Get)
			content.GET("/:id/script", s.handler.Script)
			content.DELETE("/:id", s.handler.Delete)
		}
		api.POST("/decrypt", s.handler.Decrypt)
	}

	s.router.GET("/health", s.handler.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

// Start serves on port until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Debug("available endpoints",
		zap.Strings("routes", []string{
			"POST /api/exclusive-content",
			"GET  /api/exclusive-content/:id",
			"GET  /api/exclusive-content/:id/script",
			"DELETE /api/exclusive-content/:id",
			"POST /api/decrypt",
			"GET  /health",
			"GET  /metrics",
		}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("duration", time.Since(start)))
}
