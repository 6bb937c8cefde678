package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/volanre/jollyred/internal/api"
	"github.com/volanre/jollyred/internal/command"
	"github.com/volanre/jollyred/internal/config"
	"github.com/volanre/jollyred/internal/game"
	"github.com/volanre/jollyred/internal/storage"
)

// ConfigPath is read when JOLLYRED_CONFIG is not set
const ConfigPath = "config/jollyred.yaml"

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("❌ Fatal: %v", err)
		os.Exit(1)
	}
	log.Println("👋 Goodbye!")
}

func run(ctx context.Context) error {
	log.Println("🎮 ================================")
	log.Println("🎮  JOLLYRED - CHARACTER ENGINE")
	log.Println("🎮 ================================")

	cfgPath := ConfigPath
	if p := os.Getenv("JOLLYRED_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Printf("🎮 Config: %d TPS, fixed step %gs, %d profiles", cfg.Engine.TickRate, cfg.Engine.FixedTimestep, len(cfg.Profiles))

	// Storage is optional; without it only configured profiles exist
	var store *storage.Store
	if cfg.Storage.DSN != "" {
		store, err = storage.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		seeded, err := store.SeedProfiles(ctx, cfg.Profiles)
		if err != nil {
			return fmt.Errorf("seeding profiles: %w", err)
		}
		log.Printf("💾 Storage ready (%d new profiles seeded)", seeded)
	} else {
		log.Println("⚠️ No storage DSN, deaths will not be recorded")
	}

	engine := game.NewEngine(cfg.GameConfig())
	limits := engine.Config().Limits
	log.Printf("🛡️ Resource limits: %d characters, %d per snapshot, %d trace samples",
		limits.MaxCharacters, limits.MaxSnapshotCharacters, limits.TraceLength)

	// Commands from WebSocket clients
	handler := command.NewHandler(engine, command.RateLimitConfig{
		PerSecond: cfg.Server.CommandsPerSec,
		Burst:     int(cfg.Server.CommandsPerSec),
	})
	queue := command.NewCommandQueue(handler, command.QueueConfig{Workers: cfg.Server.CommandWorkers})
	queue.OnProcessed = func(_ command.Command, accepted bool, err error) {
		api.RecordCommand(accepted, err)
	}

	server := api.NewServer(engine, apiStore(store), queue, api.ServerConfig{
		Addr:           ":" + strconv.Itoa(cfg.Server.Port),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AdminToken:     cfg.Server.AdminToken,
		DefaultProfile: cfg.Character.DefaultProfile,
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RequestsPerSec,
			Burst:             cfg.Server.RequestBurst,
		},
		BroadcastHz: cfg.Server.BroadcastHz,
	})

	// Engine events feed metrics and WebSocket clients
	engine.SetCallbacks(
		func(ev game.DamageEvent) {
			api.RecordDamage(ev)
			server.BroadcastDamage(ev)
		},
		func(rec game.DeathRecord) {
			api.RecordDeath(rec)
			server.BroadcastDeath(rec)
		},
		api.RecordAction,
	)
	engine.SetTickObserver(api.RecordTick)
	if store != nil {
		engine.SetDeathRecorder(store)
	}

	api.RegisterEventLogMetrics(engine.EventLogStats)
	if cfg.EventLog.Path != "" {
		if err := engine.StartEventLog(cfg.EventLog.Path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", cfg.EventLog.Path)
		}
	}

	debugServer := api.NewDebugServer(api.ObservabilityConfig{
		Enabled:    cfg.Debug.Enabled,
		ListenAddr: "127.0.0.1:" + strconv.Itoa(cfg.Debug.Port),
	}, func() error {
		if store == nil {
			return nil
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return store.Ping(pingCtx)
	})

	engine.Start()
	queue.Start()
	log.Println("✅ Game Engine started")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	if debugServer != nil {
		g.Go(func() error {
			if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Println("🛑 Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ API server shutdown: %v", err)
		}
		if debugServer != nil {
			debugServer.Shutdown(shutdownCtx)
		}
		queue.Stop()
		engine.Stop()
		engine.StopEventLog()
		return nil
	})

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	return g.Wait()
}

// apiStore keeps a nil *storage.Store from becoming a non-nil interface
func apiStore(s *storage.Store) api.StoreInterface {
	if s == nil {
		return nil
	}
	return s
}
