package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/audit"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/auth"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/config"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/database"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/handlers"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/metrics"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/middleware"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/policy"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository/postgres"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository/sqlite"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/security"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting storefront",
		"port", cfg.Port,
		"database_type", cfg.DatabaseType,
		"rate_limiting_enabled", cfg.RateLimitingEnabled,
		"ip_blocking_enabled", cfg.IPBlockingEnabled,
		"admin_enabled", cfg.AdminUsername != "" && cfg.AdminPassword != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize repositories
	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize repositories", "error", err)
		os.Exit(1)
	}
	defer func() {
		if repos.Cleanup != nil {
			if err := repos.Cleanup(); err != nil {
				slog.Error("repository cleanup failed", "error", err)
			}
		}
	}()

	slog.Info("repositories initialized", "backend", repos.DatabaseType)

	app, err := buildApp(ctx, cfg, repos)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.dispatcher.Shutdown()

	// Start hygiene worker (lazy expiry keeps the decision path correct on
	// its own; this only bounds memory and the audit table).
	go app.runCleanupWorker(ctx, cfg)

	// Setup HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		// Stop the hygiene worker
		cancel()

		// Give outstanding requests 10 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			os.Exit(1)
		}

		slog.Info("server shutdown complete")
	}
}

// openRepositories selects the persistence backend from configuration.
func openRepositories(ctx context.Context, cfg *config.Config) (*repository.Repositories, error) {
	switch cfg.DatabaseType {
	case repository.DatabaseTypePostgres:
		return postgres.NewRepositories(ctx, cfg)
	default:
		db, err := database.Initialize(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return sqlite.NewRepositories(db)
	}
}

// app holds the wired application: the HTTP handler plus the long-lived
// components the lifecycle hooks need.
type app struct {
	handler    http.Handler
	dispatcher *audit.Dispatcher
	store      *security.ReputationStore
	window     *security.SlidingWindow
	detector   *security.ErrorSpikeDetector
	sessions   *auth.SessionStore
	repos      *repository.Repositories
	clock      security.Clock
}

// buildApp wires repositories, policy provider, security stores, pipeline,
// middleware chain, and routes into a ready handler. The audit dispatcher is
// started; the caller owns its shutdown.
func buildApp(ctx context.Context, cfg *config.Config, repos *repository.Repositories) (*app, error) {
	clock := security.SystemClock{}
	startTime := clock.Now()

	// Policy: environment defaults, overridden by the settings row when one
	// exists, cached with a short TTL so the hot path stays off the store.
	fallback := fallbackPolicy(cfg)
	policies := policy.NewCached(
		policy.NewStoreProvider(repos.Settings, fallback),
		time.Duration(cfg.PolicyCacheTTLSeconds)*time.Second,
	)

	// Audit events go to the log and to the database, delivered off the
	// request path by a worker pool.
	dispatcher := audit.NewDispatcher(
		audit.MultiSink{audit.LogSink{}, audit.NewStoreSink(repos.Events)},
		cfg.AuditWorkers,
		cfg.AuditBufferSize,
		audit.NewPrometheusMetrics(),
	)
	dispatcher.Start()

	// Reputation store, mirrored to the database so blocks survive restarts.
	store := security.NewReputationStore(clock, blockMirror{repo: repos.Reputation})
	if blocks, err := repos.Reputation.ListActive(ctx, clock.Now()); err != nil {
		slog.Warn("failed to load persisted ip blocks, starting empty", "error", err)
	} else if n := store.Hydrate(blocksFromRecords(blocks)); n > 0 {
		slog.Info("restored ip blocks", "count", n)
	}

	// Apply the settings row's whitelist and blacklist, if any.
	if settings, err := repos.Settings.Get(ctx); err != nil {
		slog.Warn("failed to load security settings, using environment defaults", "error", err)
	} else if settings != nil {
		added, removed := handlers.ApplySecurityLists(ctx, store, settings.WhitelistedIPs, settings.BlacklistedIPs, clock.Now())
		slog.Info("applied security lists from settings",
			"whitelisted", len(settings.WhitelistedIPs),
			"blacklist_added", added,
			"blacklist_removed", removed,
		)
	}

	window := security.NewSlidingWindow()
	limiter := security.NewRateLimiter(window, clock)
	detector := security.NewErrorSpikeDetector(clock, store, dispatcher)
	pipeline := security.NewPipeline(policies, store, limiter, detector, dispatcher, clock)

	// Demo accounts and sessions. The boundary contract is "principal plus
	// roles per request"; this in-memory implementation exists to exercise
	// it, not to specify authentication.
	creds := auth.NewCredentialStore()
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if err := creds.Seed(cfg.AdminUsername, cfg.AdminPassword, auth.RoleAdmin); err != nil {
			dispatcher.Shutdown()
			return nil, err
		}
		slog.Info("admin account seeded", "username", cfg.AdminUsername)
	}
	if cfg.DemoUsername != "" && cfg.DemoPassword != "" {
		if err := creds.Seed(cfg.DemoUsername, cfg.DemoPassword, auth.RoleCustomer); err != nil {
			dispatcher.Shutdown()
			return nil, err
		}
		slog.Info("demo account seeded", "username", cfg.DemoUsername)
	}
	sessions := auth.NewSessionStore(auth.DefaultSessionTTL, clock)

	admission := middleware.NewAdmission(pipeline, auth.NewResolver(sessions), cfg.TrustProxyHeaders, cfg.TrustedProxyIPs)

	// Setup HTTP router
	mux := http.NewServeMux()
	catalog := handlers.NewCatalog()

	mux.HandleFunc("/", handlers.HomeHandler())
	mux.HandleFunc("/products", handlers.ProductsHandler(catalog))
	mux.HandleFunc("/products/", handlers.ProductHandler(catalog))
	mux.HandleFunc("/account/login", handlers.LoginHandler(creds, sessions, cfg.SecureCookies))
	mux.HandleFunc("/account/logout", handlers.LogoutHandler(sessions, cfg.SecureCookies))

	mux.HandleFunc("/health", handlers.HealthHandler(repos, store, clock, startTime))
	mux.HandleFunc("/health/live", handlers.HealthLivenessHandler(repos.Health))
	mux.Handle("/metrics", handlers.MetricsHandler(store))

	// Admin security API
	requireAdmin := middleware.RequireAdmin(sessions)
	mux.Handle("/admin/api/security/settings", requireAdmin(handlers.AdminSecuritySettingsHandler(repos.Settings, policies, store, fallback, dispatcher, clock)))
	mux.Handle("/admin/api/security/block", requireAdmin(handlers.AdminBlockIPHandler(store, policies, dispatcher)))
	mux.Handle("/admin/api/security/unblock", requireAdmin(handlers.AdminUnblockIPHandler(store, dispatcher)))
	mux.Handle("/admin/api/security/whitelist", requireAdmin(handlers.AdminWhitelistHandler(repos.Settings, store, dispatcher)))
	mux.Handle("/admin/api/security/blocks", requireAdmin(handlers.AdminListBlocksHandler(store, clock)))
	mux.Handle("/admin/api/security/events", requireAdmin(handlers.AdminSecurityEventsHandler(repos.Events)))
	mux.Handle("/admin/api/security/stats", requireAdmin(handlers.AdminSecurityStatsHandler(store, clock)))

	// Middleware chain, outermost first. Admission sits innermost so denied
	// requests still show up in logs and metrics.
	handler := middleware.RecoveryMiddleware(
		middleware.LoggingMiddleware(
			middleware.SecurityHeadersMiddleware(
				metrics.Middleware(
					admission.Middleware(mux),
				),
			),
		),
	)

	return &app{
		handler:    handler,
		dispatcher: dispatcher,
		store:      store,
		window:     window,
		detector:   detector,
		sessions:   sessions,
		repos:      repos,
		clock:      clock,
	}, nil
}

// runCleanupWorker periodically drops expired and abandoned state: lapsed
// blocks (memory and database), stale rate-limit logs, stale error buckets,
// expired sessions, and audit rows past retention.
func (a *app) runCleanupWorker(ctx context.Context, cfg *config.Config) {
	interval := time.Duration(cfg.CleanupIntervalMinutes) * time.Minute
	retention := time.Duration(cfg.EventRetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := a.clock.Now()
			blocksDropped := a.store.CleanupExpired(now)
			logsSwept := a.window.Sweep(now)
			bucketsSwept := a.detector.Sweep(now)
			sessionsDropped := a.sessions.CleanupExpired()

			if _, err := a.repos.Reputation.CleanupExpired(ctx, now); err != nil {
				slog.Error("failed to clean up expired ip blocks", "error", err)
			}
			eventsDropped, err := a.repos.Events.CleanupOlderThan(ctx, now.Add(-retention))
			if err != nil {
				slog.Error("failed to clean up old security events", "error", err)
			}

			slog.Debug("cleanup pass complete",
				"expired_blocks", blocksDropped,
				"swept_rate_logs", logsSwept,
				"swept_error_buckets", bucketsSwept,
				"expired_sessions", sessionsDropped,
				"pruned_events", eventsDropped,
			)
		}
	}
}

// fallbackPolicy maps environment configuration onto the policy in effect
// until a settings row is written.
func fallbackPolicy(cfg *config.Config) policy.Policy {
	return policy.Policy{
		RateLimitingEnabled:           cfg.RateLimitingEnabled,
		IPBlockingEnabled:             cfg.IPBlockingEnabled,
		MaxRequestsPerMinute:          cfg.MaxRequestsPerMinute,
		MaxRequestsPerSecond:          cfg.MaxRequestsPerSecond,
		MaxRequestsPerMinuteAuth:      cfg.MaxRequestsPerMinuteAuth,
		MaxRequestsPerSecondAuth:      cfg.MaxRequestsPerSecondAuth,
		ExemptAdminsFromRateLimiting:  cfg.ExemptAdminsFromRateLimiting,
		ErrorSpikeThresholdPerMinute:  cfg.ErrorSpikeThresholdPerMinute,
		ErrorSpikeConsecutiveMinutes:  cfg.ErrorSpikeConsecutiveMinutes,
		AutoPermanentBlacklistEnabled: cfg.AutoPermanentBlacklistEnabled,
		IPBlockDurationMinutes:        cfg.IPBlockDurationMinutes,
	}.Normalized()
}

// blockMirror adapts the reputation repository to the store's persister
// interface, translating between the in-memory and persisted block shapes.
type blockMirror struct {
	repo repository.ReputationRepository
}

func (m blockMirror) SaveBlock(ctx context.Context, b security.Block) error {
	return m.repo.Upsert(ctx, &repository.BlockedIP{
		IPAddress: b.IP,
		Reason:    b.Reason,
		Source:    b.Source,
		Permanent: b.Permanent(),
		BlockedAt: b.BlockedAt,
		ExpiresAt: b.ExpiresAt,
	})
}

func (m blockMirror) DeleteBlock(ctx context.Context, ip string) error {
	err := m.repo.Remove(ctx, ip)
	if errors.Is(err, repository.ErrNotFound) {
		// Unblocking an ip that was never persisted is not a failure.
		return nil
	}
	return err
}

// blocksFromRecords converts persisted rows into store entries.
func blocksFromRecords(records []repository.BlockedIP) []security.Block {
	blocks := make([]security.Block, 0, len(records))
	for _, rec := range records {
		blocks = append(blocks, security.Block{
			IP:        rec.IPAddress,
			Reason:    rec.Reason,
			Source:    rec.Source,
			BlockedAt: rec.BlockedAt,
			ExpiresAt: rec.ExpiresAt,
		})
	}
	return blocks
}
