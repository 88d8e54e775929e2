// Nosh search server: provides the HTTP API, manages enrichment
// workers, and orchestrates the restaurant search pipeline.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/noshhq/nosh/pkg/api"
	"github.com/noshhq/nosh/pkg/auth"
	"github.com/noshhq/nosh/pkg/config"
	"github.com/noshhq/nosh/pkg/enrich"
	"github.com/noshhq/nosh/pkg/filters"
	"github.com/noshhq/nosh/pkg/gate"
	"github.com/noshhq/nosh/pkg/intent"
	"github.com/noshhq/nosh/pkg/jobs"
	"github.com/noshhq/nosh/pkg/llm"
	"github.com/noshhq/nosh/pkg/orchestrator"
	"github.com/noshhq/nosh/pkg/places"
	"github.com/noshhq/nosh/pkg/push"
	"github.com/noshhq/nosh/pkg/ratelimit"
	"github.com/noshhq/nosh/pkg/routemap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	// 1. Load and validate configuration (fail fast in production)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting nosh",
		"env", cfg.Env,
		"http_port", cfg.HTTPPort,
		"redis", cfg.RedisURL != "")

	ctx := context.Background()

	// 2. Connect Redis when configured; everything falls back to
	// in-process stores otherwise (single-replica development mode).
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			slog.Warn("Redis unreachable at startup, stores will report degraded until it recovers", "error", err)
		} else {
			slog.Info("Connected to Redis")
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				slog.Error("Error closing Redis client", "error", err)
			}
		}()
	} else if cfg.Production() {
		slog.Warn("REDIS_URL unset in production: jobs, sessions and tickets are replica-local")
	}

	// 3. Backing stores
	var (
		jobStore    jobs.Store
		sessions    auth.SessionStore
		tickets     auth.TicketService
		placesCache places.Cache
		enrichCache enrich.Cache
		enrichLock  enrich.Locker
		limiter     ratelimit.Limiter
	)
	if redisClient != nil {
		jobStore = jobs.NewRedisStore(redisClient, cfg.Jobs.TTL)
		sessions = auth.NewRedisSessionStore(redisClient, cfg.SessionTTL)
		tickets = auth.NewRedisTicketService(redisClient, cfg.TicketTTL)
		placesCache = places.NewRedisCache(redisClient)
		redisEnrich := enrich.NewRedisStore(redisClient)
		enrichCache = redisEnrich
		enrichLock = redisEnrich
		limiter = ratelimit.NewRedisLimiter(redisClient)
	} else {
		jobStore = jobs.NewMemoryStore(cfg.Jobs.TTL)
		sessions = auth.NewMemorySessionStore(cfg.SessionTTL)
		tickets = auth.NewMemoryTicketService(cfg.TicketTTL)
		placesCache = places.NewMemoryCache()
		memEnrich := enrich.NewMemoryStore()
		enrichCache = memEnrich
		enrichLock = memEnrich
		limiter = ratelimit.NewMemoryLimiter()
	}

	// 4. Pipeline stages
	llmClient := llm.NewClient(cfg.LLM)
	gateClf := gate.NewClassifier(llmClient, cfg.Pipeline.GateTimeout)
	intentClf := intent.NewClassifier(llmClient, cfg.Pipeline.IntentTimeout)
	mapper := routemap.NewMapper(llmClient, routemap.Timeouts{
		TextSearch: cfg.Pipeline.TextSearchTimeout,
		Nearby:     cfg.Pipeline.NearbyTimeout,
		Landmark:   cfg.Pipeline.LandmarkTimeout,
	})
	extractor := filters.NewExtractor(llmClient, cfg.Pipeline.FiltersTimeout)
	adapter := places.NewAdapter(cfg.Places, placesCache)

	// 5. Push channels: one publisher fans out to the socket manager
	// and the SSE broker.
	connMgr := push.NewConnectionManager(cfg.Push.WriteTimeout, cfg.Push.IdleTimeout)
	broker := push.NewBroker()
	publisher := push.NewPublisher(push.Fanout{connMgr, broker})

	// 6. Enrichment workers (started before the HTTP server)
	providers, err := enrich.LoadProviders(cfg.Enrich.ProvidersFile)
	if err != nil {
		slog.Error("Failed to load enrichment providers", "error", err)
		os.Exit(1)
	}
	searcher := enrich.NewHTTPSearcher(cfg.Enrich.SearchEndpoint, cfg.Enrich.SearchAPIKey, cfg.Enrich.SearchTimeout)
	enricher := enrich.NewService(providers, searcher, enrichCache, enrichLock, publisher, enrich.Options{
		WorkersPerProvider: cfg.Enrich.WorkersPerProvider,
		QueueCapacity:      cfg.Enrich.QueueCapacity,
		CacheTTL:           cfg.Enrich.CacheTTL,
		LockTTL:            cfg.Enrich.LockTTL,
		SearchTimeout:      cfg.Enrich.SearchTimeout,
	})
	enricher.Start()
	slog.Info("Enrichment workers started",
		"providers", enricher.Providers(),
		"workers_per_provider", cfg.Enrich.WorkersPerProvider)

	orch := orchestrator.New(gateClf, intentClf, mapper, extractor, adapter,
		jobStore, publisher, enricher, cfg.Pipeline.DefaultRegion)

	// 7. HTTP server
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)
	httpServer := api.NewServer(cfg, issuer, sessions, tickets, orch,
		jobStore, connMgr, broker, limiter, adapter, enricher, redisClient)

	// 8. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.HTTPPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: drain workers, close sockets, stop HTTP.
	workerShutdownCtx, workerCancel := context.WithTimeout(ctx, 15*time.Second)
	defer workerCancel()

	enrichDone := make(chan struct{})
	go func() {
		enricher.Stop()
		close(enrichDone)
	}()
	select {
	case <-enrichDone:
		slog.Info("Enrichment workers stopped gracefully")
	case <-workerShutdownCtx.Done():
		slog.Warn("Enrichment shutdown timeout exceeded, queued jobs dropped")
	}

	connMgr.Shutdown()

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
