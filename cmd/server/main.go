package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/optix/options-engine/internal/engine"
	"github.com/optix/options-engine/internal/ledger"
	"github.com/optix/options-engine/internal/metrics"
	"github.com/optix/options-engine/internal/oracle"
	"github.com/optix/options-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()
	var rdb *redis.Client

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb = redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Token ledger ---
	// The production token ledger is an external system; the in-memory
	// ledger serves development and integration testing.
	ld := ledger.NewMemory()

	// --- Price oracle ---
	var orc oracle.Oracle
	if rdb != nil {
		orc = oracle.NewRedisFeed(rdb)
		slog.Info("Redis oracle feed enabled")
	} else {
		slog.Warn("no Redis configured, using static oracle (quotes must be set in-process)")
		orc = oracle.NewStatic()
	}

	// --- WebSocket hub ---
	wsHub := engine.NewWSHub()
	go wsHub.Run()

	// --- Engine service ---
	svc := engine.NewService(st, ld, orc, wsHub)

	// Optional auto-bootstrap for fresh deployments.
	if admin := os.Getenv("ADMIN_ID"); admin != "" {
		window := uint64(600)
		if w := os.Getenv("SETTLEMENT_WINDOW_SECONDS"); w != "" {
			parsed, err := strconv.ParseUint(w, 10, 64)
			if err != nil {
				slog.Error("invalid SETTLEMENT_WINDOW_SECONDS", "err", err)
				os.Exit(1)
			}
			window = parsed
		}
		if _, err := svc.InitializeState(context.Background(), admin, window); err != nil {
			slog.Info("state bootstrap skipped", "reason", err.Error())
		}
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"options-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time lifecycle events.
		r.Get("/ws", wsHub.HandleWS)

		// Bootstrap.
		r.Post("/state", svc.HandleInitState)
		r.Get("/state", svc.HandleGetState)
		r.Post("/underlyings", svc.HandleInitUnderlying)
		r.Get("/underlyings", svc.HandleListUnderlyings)

		// Series lifecycle.
		r.Post("/series", svc.HandleCreateSeries)
		r.Get("/series", svc.HandleListSeries)
		r.Get("/series/{seriesID}", svc.HandleGetSeries)
		r.Post("/series/{seriesID}/burn", svc.HandleBurn)
		r.Post("/series/{seriesID}/settle", svc.HandleSettle)
		r.Post("/series/{seriesID}/settle/override", svc.HandleOverrideSettle)
		r.Post("/series/{seriesID}/close", svc.HandleClose)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("options-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down options-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("options-engine stopped")
}
