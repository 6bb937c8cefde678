package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/volanre/jollyred/internal/game"
	"github.com/volanre/jollyred/internal/stats"
)

// EngineInterface defines the game engine methods used by the API.
// This interface enables mocking for tests without spinning up the full game loop.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// GetSnapshot returns a copy of the latest published snapshot
	GetSnapshot() *game.GameSnapshot
	Spawn(name string, profile game.Profile) (game.CharacterSnapshot, error)
	SpawnAt(name string, profile game.Profile, x float64) (game.CharacterSnapshot, error)
	Remove(id string) error
	Get(id string) (game.CharacterSnapshot, error)
	ApplyInput(id string, ev game.InputEvent) (bool, error)
	ApplyDamage(id string, rawAttack int, ignoreDefense bool) (game.DamageResult, error)
	Heal(id string, amount int) (int, error)
	AddModifier(id string, stat stats.Stat, m stats.Modifier) error
	RemoveModifier(id string, stat stats.Stat, m stats.Modifier) (bool, error)
	Trace(id string) ([]game.TraceSample, error)
}

// StoreInterface defines the persistence methods used by the API.
// *storage.Store satisfies it.
type StoreInterface interface {
	GetProfile(ctx context.Context, name string) (game.Profile, error)
	ListProfiles(ctx context.Context) ([]game.Profile, error)
	SaveProfile(ctx context.Context, p game.Profile) error
	ListDeaths(ctx context.Context, limit int) ([]game.DeathRecord, error)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: game.NewEngine(game.DefaultEngineConfig()),
//	    Store:  fakeStore,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	ts := httptest.NewServer(api.NewRouter(cfg))
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Store holds profiles and the death ledger. If nil, only the
	// built-in default profile is available and /api/deaths is empty.
	Store StoreInterface

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost origins are allowed.
	CORSOrigins []string

	// AdminToken guards mutating routes. Empty leaves them open.
	AdminToken string

	// DefaultProfile is used by spawn requests that name no profile
	DefaultProfile string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router
type routerHandlers struct {
	engine         EngineInterface
	store          StoreInterface
	defaultProfile string
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE apart from the rate limiter cleanup
// goroutine when no RateLimiter is passed in. No listeners are opened, so it
// is safe to use with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	// CORS configuration
	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", AdminTokenHeader},
		AllowCredentials: true,
	}))

	defaultProfile := cfg.DefaultProfile
	if defaultProfile == "" {
		defaultProfile = game.DefaultProfileName
	}
	h := &routerHandlers{
		engine:         cfg.Engine,
		store:          cfg.Store,
		defaultProfile: defaultProfile,
	}
	admin := NewAdminAuth(cfg.AdminToken)

	r.Route("/api", func(r chi.Router) {
		// Game state
		r.Get("/state", h.handleGetState)

		// Characters
		r.Route("/characters", func(r chi.Router) {
			r.Post("/", h.handleSpawn)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetCharacter)
				r.Post("/input", h.handleInput)
				r.Get("/trace.png", h.handleTracePNG)

				// Admin only
				r.Group(func(r chi.Router) {
					r.Use(admin.Middleware)
					r.Delete("/", h.handleRemove)
					r.Post("/damage", h.handleDamage)
					r.Post("/heal", h.handleHeal)
					r.Post("/modifiers", h.handleAddModifier)
					r.Delete("/modifiers", h.handleRemoveModifier)
				})
			})
		})

		// Profiles
		r.Get("/profiles", h.handleListProfiles)
		r.Get("/profiles/{name}", h.handleGetProfile)
		r.With(admin.Middleware).Put("/profiles/{name}", h.handlePutProfile)

		// Death ledger
		r.Get("/deaths", h.handleListDeaths)
	})

	return r
}
