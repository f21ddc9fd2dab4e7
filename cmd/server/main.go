package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/phuttachad/dormcore/internal/handler"
	"github.com/phuttachad/dormcore/internal/infrastructure/identity"
	"github.com/phuttachad/dormcore/internal/infrastructure/logger"
	"github.com/phuttachad/dormcore/internal/infrastructure/redis"
	"github.com/phuttachad/dormcore/internal/observability/metrics"
	"github.com/phuttachad/dormcore/internal/observability/tracing"
	"github.com/phuttachad/dormcore/internal/repository"
	"github.com/phuttachad/dormcore/internal/security/audit"
	"github.com/phuttachad/dormcore/internal/security/auth"
	"github.com/phuttachad/dormcore/internal/security/middleware"
	"github.com/phuttachad/dormcore/internal/security/ratelimit"
	"github.com/phuttachad/dormcore/internal/service"
	"github.com/phuttachad/dormcore/internal/worker"
	"github.com/phuttachad/dormcore/pkg/config"
	"github.com/phuttachad/dormcore/pkg/database"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting dormcore server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set)
	shutdownTracing, err := tracing.Init(ctx, log, "dormcore", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	// 4. Postgres
	db, err := database.NewConnectionPool(ctx, cfg.DatabaseURL, nil, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	// 5. Redis
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	// 6. Identity gateway client
	gateway := identity.NewClient(cfg.IdentityGatewayURL, cfg.IdentityGatewayTimeout, log)

	// 7. Repositories
	tenantRepo := repository.NewPostgresTenantRepository(db.GetDB(), log)
	roomRepo := repository.NewPostgresRoomRepository(db.GetDB(), log)
	occupancyRepo := repository.NewPostgresOccupancyRepository(db.GetDB(), log)
	identityRepo := repository.NewPostgresIdentityRepository(db.GetDB(), log)
	profileRepo := repository.NewPostgresProfileRepository(db.GetDB(), log)
	orphanRepo := repository.NewPostgresOrphanRepository(db.GetDB(), log)

	// 8. Services
	occupantBoard := handler.NewOccupantBoard(occupancyRepo, log, cfg.CORSAllowedOrigins)
	admissionService := service.NewAdmissionService(roomRepo, occupancyRepo, occupantBoard, log)
	provisionLock := redis.NewProvisionLock(redisClient)
	provisioningService := service.NewProvisioningService(
		gateway, identityRepo, tenantRepo, profileRepo, orphanRepo,
		provisionLock, cfg.ProvisionLockTTL, log,
	)
	tenantService := service.NewTenantService(tenantRepo, log)
	contractService := service.NewContractService(cfg.DocumentBaseURL, cfg.DocumentCacheTTL, log)

	// 9. Handlers
	provisionHandler := handler.NewProvisionHandler(provisioningService, log)
	admissionHandler := handler.NewAdmissionHandler(admissionService, log)
	roomHandler := handler.NewRoomHandler(admissionService, occupancyRepo, log)
	tenantHandler := handler.NewTenantHandler(tenantService, contractService, log)
	orphanHandler := handler.NewOrphanHandler(orphanRepo, log)
	healthHandler := handler.NewHealthHandler(db, redisClient, log)

	// 10. Security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	auditLogger := audit.NewLogger(log)

	// 11. Routes
	mux := http.NewServeMux()
	mux.Handle("POST /api/provision", middleware.RequireAdmin(auditLogger)(provisionHandler))
	mux.HandleFunc("POST /api/rooms/{id}/admissions", admissionHandler.Admit)
	mux.HandleFunc("POST /api/occupancy/{id}/checkout", admissionHandler.CheckOut)
	mux.HandleFunc("GET /api/rooms", roomHandler.List)
	mux.HandleFunc("GET /api/rooms/{id}", roomHandler.Get)
	mux.HandleFunc("GET /api/rooms/{id}/occupants", roomHandler.Occupants)
	mux.HandleFunc("POST /api/tenants", tenantHandler.Create)
	mux.HandleFunc("GET /api/tenants/{id}", tenantHandler.Get)
	mux.HandleFunc("PATCH /api/tenants/{id}", tenantHandler.Update)
	mux.HandleFunc("GET /api/tenants/{id}/contract", tenantHandler.Contract)
	mux.HandleFunc("GET /api/orphans", orphanHandler.List)
	mux.HandleFunc("POST /api/orphans/{id}/resolve", orphanHandler.Resolve)
	mux.Handle("GET /ws/rooms/{id}/occupants", occupantBoard)
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// CORS honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, If-Match")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain: request ID -> metrics -> audit -> rate limit -> JWT -> CORS/mux
	rootHandler := middleware.RequestIDMiddleware()(
		metrics.HTTPMetricsMiddleware(
			middleware.AuditMiddleware(auditLogger)(
				middleware.RateLimitMiddleware(rateLimiter, log)(
					middleware.JWTMiddleware(tokenManager, log)(
						middleware.ValidateJSONContentType(log)(handlerWithCORS),
					),
				),
			),
		),
	)
	rootHandler = otelhttp.NewHandler(rootHandler, "dormcore")

	// 12. Orphan sweeper in background
	sweeper := worker.NewOrphanSweeper(orphanRepo, log, cfg.OrphanSweepInterval)
	go sweeper.Start(ctx)

	// 13. HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", cfg.RateLimitRequests),
		slog.Duration("rate_limit_window", cfg.RateLimitWindow),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stop the orphan sweeper
	rateLimiter.Stop()
	log.Info("server stopped")
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
