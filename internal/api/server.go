package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/volanre/jollyred/internal/game"
)

// ServerConfig holds the API server settings
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	AdminToken     string
	DefaultProfile string
	RateLimit      RateLimitConfig
	BroadcastHz    int
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine      EngineInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	broadcastHz int
	httpServer  *http.Server
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
func NewServer(engine EngineInterface, store StoreInterface, commands CommandSink, cfg ServerConfig) *Server {
	origins := cfg.AllowedOrigins
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	s := &Server{
		engine:      engine,
		wsHub:       NewWebSocketHub(NewOriginChecker(origins), commands),
		rateLimiter: NewIPRateLimiter(cfg.RateLimit),
		broadcastHz: cfg.BroadcastHz,
	}

	s.router = NewRouter(RouterConfig{
		Engine:         engine,
		Store:          store,
		RateLimiter:    s.rateLimiter,
		CORSOrigins:    origins,
		AdminToken:     cfg.AdminToken,
		DefaultProfile: cfg.DefaultProfile,
	})

	// WebSocket route needs the hub instance, so it is not part of NewRouter
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start begins the HTTP server AND starts background workers.
// It blocks until Shutdown; a clean shutdown returns nil.
func (s *Server) Start() error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine, s.broadcastHz)

	log.Printf("🌐 API server starting on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops accepting requests, disconnects WebSocket clients and
// stops background workers
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// BroadcastDamage forwards a damage event to WebSocket clients
func (s *Server) BroadcastDamage(ev game.DamageEvent) {
	s.wsHub.Broadcast("character:damaged", ev)
}

// BroadcastDeath forwards a death to WebSocket clients
func (s *Server) BroadcastDeath(rec game.DeathRecord) {
	s.wsHub.Broadcast("character:died", rec)
}
