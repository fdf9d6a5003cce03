package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/amirhzn/mida-tracker-backend/internal/api/handlers"
	"github.com/amirhzn/mida-tracker-backend/internal/application/service"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string

	// AllowOverdraw is the default for import commits; requests can
	// still override it per call.
	AllowOverdraw bool
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	imports    *service.ImportService
	matching   *service.MatchService
}

// NewServer creates a new API server.
func NewServer(cfg Config, repo storage.Repository, imports *service.ImportService, matching *service.MatchService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		config:   cfg,
		router:   router,
		logger:   logger,
		repo:     repo,
		imports:  imports,
		matching: matching,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultConfig().AllowedOrigins
	}

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.Use(s.requestLogger())
}

// requestLogger logs each request at debug level, errors at warn.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.URL.Path == "/health" {
			return
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
		}
		if c.Writer.Status() >= 500 {
			s.logger.Warn("request", attrs...)
		} else {
			s.logger.Debug("request", attrs...)
		}
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.GET("/health", healthHandler.Get)

	api := s.router.Group("/api")
	{
		certificates := handlers.NewCertificatesHandler(s.repo, s.logger)
		api.POST("/certificates", certificates.Create)
		api.GET("/certificates", certificates.List)
		api.GET("/certificates/:id", certificates.Get)
		api.DELETE("/certificates/:id", certificates.Delete)

		match := handlers.NewMatchHandler(s.matching, s.logger)
		api.POST("/certificates/:id/match", match.Match)

		imports := handlers.NewImportsHandler(s.imports, s.config.AllowOverdraw, s.logger)
		api.POST("/imports/preview", imports.Preview)
		api.POST("/imports", imports.Commit)
		api.POST("/imports/bulk", imports.CommitBulk)
		api.GET("/imports", imports.List)
		api.GET("/imports/:id", imports.Get)
		api.PUT("/imports/:id", imports.Update)
		api.DELETE("/imports/:id", imports.Delete)

		balances := handlers.NewBalancesHandler(s.imports, s.logger)
		api.GET("/items/:id/balance", balances.ItemBalance)
		api.PUT("/items/:id/threshold", balances.SetItemThreshold)
		api.GET("/balances", balances.List)
		api.GET("/warnings", balances.Warnings)

		ports := handlers.NewPortsHandler(s.imports, s.logger)
		api.GET("/ports/summary", ports.Summary)

		settings := handlers.NewSettingsHandler(s.imports, s.logger)
		api.GET("/settings/warning-threshold", settings.GetWarningThreshold)
		api.PUT("/settings/warning-threshold", settings.SetWarningThreshold)
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying handler for testing.
func (s *Server) Router() http.Handler {
	return s.router
}
