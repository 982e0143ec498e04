// Package http provides the fabled HTTP API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fabled/internal/config"
	"github.com/fyrsmithlabs/fabled/internal/rag"
	"github.com/fyrsmithlabs/fabled/internal/vectorstore"
)

// Pipeline is the retrieval-generation entry point used by handlers.
type Pipeline interface {
	Search(ctx context.Context, query string, limit uint64, threshold *float32) ([]vectorstore.SearchResult, error)
	Generate(ctx context.Context, req rag.GenerateRequest) (*rag.GenerateResult, error)
}

// FableReader serves by-ID lookups and collection status.
type FableReader interface {
	GetFable(ctx context.Context, id int) (*vectorstore.Fable, error)
	Count(ctx context.Context) (uint64, error)
	CollectionExists(ctx context.Context) (bool, error)
}

// Server provides the HTTP endpoints for fabled.
type Server struct {
	echo     *echo.Echo
	pipeline Pipeline
	fables   FableReader
	llmCfg   config.LLMConfig
	logger   *zap.Logger
	config   config.ServerConfig
}

// NewServer creates the HTTP server with middleware and routes wired.
func NewServer(cfg config.ServerConfig, llmCfg config.LLMConfig, pipeline Pipeline, fables FableReader, logger *zap.Logger) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if fables == nil {
		return nil, fmt.Errorf("fable reader cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowCredentials: true,
		}))
	}
	e.Use(metricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		pipeline: pipeline,
		fables:   fables,
		llmCfg:   llmCfg,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/models", s.handleModels)
	s.echo.GET("/fables/:id", s.handleGetFable)
	s.echo.POST("/search", s.handleSearch)
	s.echo.POST("/generate", s.handleGenerate)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
