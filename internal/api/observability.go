package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/volanre/jollyred/internal/game"
)

// Metrics with bounded cardinality (no per-character labels to prevent DoS)
var (
	// Game engine metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in game tick",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	characterCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_character_count",
		Help: "Current number of characters",
	})

	aliveCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_alive_character_count",
		Help: "Current number of living characters",
	})

	damageApplied = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_damage_applied",
		Help:    "Health removed per hit after defense",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	deathsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_deaths_total",
		Help: "Characters killed",
	})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_actions_total",
		Help: "Input events by kind and outcome",
	}, []string{"input", "accepted"}) // Bounded: one value per game.InputKind

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "command_queue_commands_total",
		Help: "Commands processed from remote clients",
	}, []string{"result"}) // Bounded: "accepted", "declined", "error"

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter, origin check or auth",
	}, []string{"reason"})

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})

	eventLogOnce sync.Once
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // Keep on localhost in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DebugHandler serves pprof, Prometheus metrics and a health check.
// health may be nil; when it returns an error /health answers 503.
func DebugHandler(cfg ObservabilityConfig, health func() error) http.Handler {
	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return handler
}

// NewDebugServer builds the internal observability server. The caller runs
// ListenAndServe; nil means the server is disabled.
func NewDebugServer(cfg ObservabilityConfig, health func() error) *http.Server {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	log.Printf("📊 Debug server on %s", cfg.ListenAddr)
	log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
	log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           DebugHandler(cfg, health),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records latency by chi route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// RecordTick records tick timing for metrics
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
}

// UpdateCharacterCounts updates the character gauges from a snapshot
func UpdateCharacterCounts(snap *game.GameSnapshot) {
	characterCount.Set(float64(snap.CharacterCount))
	aliveCount.Set(float64(snap.AliveCount))
}

// RecordDamage records one applied hit
func RecordDamage(ev game.DamageEvent) {
	damageApplied.Observe(float64(ev.Result.Applied))
}

// RecordDeath counts a death
func RecordDeath(game.DeathRecord) {
	deathsTotal.Inc()
}

// RecordAction counts an input event by kind
func RecordAction(ev game.ActionEvent) {
	actionsTotal.WithLabelValues(ev.Input.Kind.String(), strconv.FormatBool(ev.Accepted)).Inc()
}

// RecordCommand counts a processed client command
func RecordCommand(accepted bool, err error) {
	switch {
	case err != nil:
		commandsTotal.WithLabelValues("error").Inc()
	case accepted:
		commandsTotal.WithLabelValues("accepted").Inc()
	default:
		commandsTotal.WithLabelValues("declined").Inc()
	}
}

// RegisterEventLogMetrics exports event log counters read from stats.
// Only the first call registers.
func RegisterEventLogMetrics(stats func() game.EventLogStats) {
	eventLogOnce.Do(func() {
		promauto.NewCounterFunc(prometheus.CounterOpts{
			Name: "event_log_total",
			Help: "Total events logged",
		}, func() float64 { return float64(stats().Total) })

		promauto.NewCounterFunc(prometheus.CounterOpts{
			Name: "event_log_dropped_total",
			Help: "Events dropped due to rate limiting or buffer full",
		}, func() float64 { return float64(stats().Dropped) })
	})
}

// RecordConnectionRejected increments the rejection counter.
// reason must be one of: "rate_limit", "origin", "unauthorized", "ws_total_limit", "ws_ip_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
