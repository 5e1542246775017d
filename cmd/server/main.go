package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/api"
	"github.com/hearthtask/notify-engine/internal/channel"
	"github.com/hearthtask/notify-engine/internal/config"
	"github.com/hearthtask/notify-engine/internal/db"
	"github.com/hearthtask/notify-engine/internal/dispatcher"
	"github.com/hearthtask/notify-engine/internal/metrics"
	"github.com/hearthtask/notify-engine/internal/provider"
	"github.com/hearthtask/notify-engine/internal/queue"
	"github.com/hearthtask/notify-engine/internal/ratelimiter"
	"github.com/hearthtask/notify-engine/internal/repository"
	"github.com/hearthtask/notify-engine/internal/retry"
	"github.com/hearthtask/notify-engine/internal/service"
	"github.com/hearthtask/notify-engine/internal/tracker"
	"github.com/hearthtask/notify-engine/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := queue.New()

	scheduleRepo := repository.NewPgScheduleRepository(pool)
	prefRepo := repository.NewPgPreferenceRepository(pool)
	throttleRepo := repository.NewPgThrottleRepository(pool)
	attemptRepo := repository.NewPgAttemptRepository(pool)

	trk := tracker.New(attemptRepo, cfg.TrackerBuffer, logger)
	trk.OnEvent = m.TrackerHook()

	router := channel.New(prefRepo)
	limiter := ratelimiter.New(throttleRepo, cfg.ThrottleLimit, cfg.ThrottleWindow)
	plimiter := ratelimiter.NewProviderLimiters(cfg.ProviderRate)
	providers := provider.NewRegistry(cfg.ProviderBaseURL, cfg.ProviderTimeout)
	policy := retry.NewPolicy(cfg.RetryBase, cfg.RetryMax)

	svc := service.NewEngineService(scheduleRepo, prefRepo, trk, cfg.GraceWindow, cfg.MaxAttempts, logger)

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	onSent, onFailed := m.WorkerHooks()
	workerPool := worker.NewPool(
		cfg.Workers, q, scheduleRepo, prefRepo, providers, limiter, plimiter, policy, trk,
		logger, worker.MetricHooks{OnSent: onSent, OnFailed: onFailed},
	)
	workerPool.Start(workerCtx)

	go trk.Run(workerCtx)

	onMaterialized, onDeferred := m.DispatcherHooks()
	disp := dispatcher.New(
		scheduleRepo, router, limiter, q,
		cfg.TickInterval, cfg.MaterializeCap, cfg.MaxAttempts,
		logger, dispatcher.Hooks{OnMaterialized: onMaterialized, OnDeferred: onDeferred},
	)
	go disp.Run(workerCtx)

	// Sample queue depths for the Prometheus gauges.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				high, normal, low := q.Depths()
				m.QueueDepthHigh.Set(float64(high))
				m.QueueDepthNormal.Set(float64(normal))
				m.QueueDepthLow.Set(float64(low))
			}
		}
	}()

	// ---- HTTP server ----
	httpRouter := api.NewRouter(svc, trk, q, pool, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpRouter,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal the dispatcher, tracker, and workers to stop.
	cancelWorkers()

	// 3. Wait for in-flight deliveries to finish their current message.
	workerPool.Wait()

	logger.Info("server stopped cleanly")
}
