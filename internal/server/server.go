// Package server exposes the scan pipeline over HTTP: live scans from
// client-supplied image URLs, simulations over local demo trees, and a
// websocket stream of pipeline stage events.
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/InonELGABSI/houseScanner/internal/checklist"
	"github.com/InonELGABSI/houseScanner/internal/config"
	"github.com/InonELGABSI/houseScanner/internal/pipeline"
	"github.com/InonELGABSI/houseScanner/internal/storage"
)

const pipelineVersion = "2.0.0"

// Server wires the HTTP surface to the pipeline and its suppliers.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	pipe    *pipeline.Pipeline
	fetcher *storage.Fetcher
	local   *storage.Local
	store   *checklist.Store
	engine  *gin.Engine
}

// New assembles the server and its routes.
func New(cfg *config.Config, pipe *pipeline.Pipeline, fetcher *storage.Fetcher,
	local *storage.Local, store *checklist.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		pipe:    pipe,
		fetcher: fetcher,
		local:   local,
		store:   store,
	}
	s.engine = s.router()
	return s
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(s.logger))
	router.Use(CORS())

	router.GET("/health", s.health)

	scan := router.Group("/v1/scan")
	{
		scan.POST("/run", s.runScan)
		scan.GET("/health", s.scanHealth)
	}

	sim := router.Group("/v1/simulate")
	{
		sim.GET("", s.runSimulation)
		sim.GET("/available", s.availableSimulations)
		sim.GET("/stream", s.streamSimulation)
		sim.GET("/health", s.simulateHealth)
	}

	return router
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled or a termination signal
// arrives, then drains in-flight requests within the shutdown window.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Addr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("server listening", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	case sig := <-quit:
		s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "housecheck",
		"version": pipelineVersion,
	})
}

// errorJSON writes the uniform error payload carried by every failing
// response.
func errorJSON(c *gin.Context, status int, msg string, err error) {
	body := gin.H{"error": msg, "request_id": requestID(c)}
	if err != nil {
		body["detail"] = err.Error()
	}
	c.JSON(status, body)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
