// Package server exposes the HTTP API: webhook ingestion, property and
// conversation reads, host message sending, the auto-pilot toggle, and
// the live conversation stream.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maelis/hostpilot/internal/autopilot"
	"github.com/maelis/hostpilot/internal/logger"
	"github.com/maelis/hostpilot/internal/poller"
	"github.com/maelis/hostpilot/internal/store"
)

// Server wires the HTTP routes to the store and the auto-pilot pipeline.
type Server struct {
	engine     *gin.Engine
	store      store.Store
	controller *autopilot.Controller
	watcher    *poller.Watcher
	logger     *slog.Logger

	// autoPilotDefault seeds the flag on conversations created by webhook
	// ingestion, where no host is present to toggle it.
	autoPilotDefault bool
}

// New creates the server and registers all routes.
func New(st store.Store, controller *autopilot.Controller, watcher *poller.Watcher, autoPilotDefault bool, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), logger.Middleware(log))

	s := &Server{
		engine:           engine,
		store:            st,
		controller:       controller,
		watcher:          watcher,
		logger:           log.With("component", "http_server"),
		autoPilotDefault: autoPilotDefault,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.health)

	api := s.engine.Group("/api")
	{
		api.POST("/webhook/message", s.ingestWebhookMessage)

		api.GET("/properties", s.listProperties)
		api.GET("/properties/:id", s.getProperty)
		api.GET("/properties/:id/conversations", s.listConversations)

		api.GET("/conversations/:id", s.getConversation)
		api.POST("/conversations/:id/messages", s.sendMessage)
		api.PUT("/conversations/:id/autopilot", s.setAutoPilot)
		api.GET("/conversations/:id/stream", s.streamConversation)
	}
}

// Handler returns the root HTTP handler for use by the app's http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}
