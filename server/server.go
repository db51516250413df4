package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/configs"
	"taskboard/delivery/auth"
	"taskboard/delivery/rest"
	"taskboard/delivery/rest/middleware"
	"taskboard/delivery/websocket"
)

// Deps are the collaborators the HTTP layer is built from
type Deps struct {
	Handler       *rest.Handler
	Authenticator auth.Authenticator
	Hub           *websocket.Hub
	Logger        *zap.Logger
}

// Server wraps the gin engine
type Server struct {
	engine     *gin.Engine
	config     configs.ServerConfig
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg configs.ServerConfig, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()

	// Add middleware
	engine.Use(middleware.Logger(log.Named("http")))
	engine.Use(middleware.Recovery(log.Named("http")))
	engine.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	s := &Server{
		engine:     engine,
		config:     cfg,
		logger:     log,
		httpServer: &http.Server{
			Addr:              cfg.Address(),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	// Register routes
	s.registerRoutes(engine, deps)

	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", auth.HeaderUserID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes(engine *gin.Engine, deps Deps) {
	engine.GET("/health", deps.Handler.Health)

	requireOwner := auth.RequireOwner(deps.Authenticator)

	v1 := engine.Group("/api/v1", requireOwner)
	rest.RegisterTaskRoutes(v1, deps.Handler)
	if deps.Hub != nil {
		v1.GET("/tasks/stream", deps.Hub.HandleWebSocket)
	}

	// unprefixed routes kept for existing clients
	rest.RegisterTaskRoutes(engine.Group("/", requireOwner), deps.Handler)
}

// Handler exposes the engine, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe starts the HTTP server. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.config.Address()))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
