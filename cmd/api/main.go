package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-stock-analytics/internal/app"
	"go-stock-analytics/internal/config"
	"go-stock-analytics/internal/handler"
	"go-stock-analytics/internal/scheduler"
	"go-stock-analytics/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// 2. Setup logger
	zlog, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Database, clients and services
	a, err := app.New(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	if err := a.SeedMerchant(ctx); err != nil {
		zlog.Warn("seeding merchant failed", zap.Error(err))
	}

	// 4. WebSocket hub
	go a.Hub.Run(ctx)

	// 5. Handlers
	handlers := handler.Handlers{
		Auth:            handler.NewAuthHandler(a.AuthService, zlog),
		Sync:            handler.NewSyncHandler(a.SyncService, zlog),
		Dashboard:       handler.NewDashboardHandler(a.AnalyticsService, zlog),
		Catalog:         handler.NewCatalogHandler(a.Products, a.Orders, a.AnalyticsService, zlog),
		Recommendations: handler.NewRecommendationHandler(a.RecommendationService, zlog),
		Health:          handler.NewHealthHandler(a.RecommendationService, a.Platforms, zlog),
		AuthService:     a.AuthService,
		Hub:             a.Hub,
	}

	// 6. Setup Fiber
	srv := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	srv.Use(recover.New())
	srv.Use(cors.New())
	srv.Use(logger.Fiber(zlog))

	srv.Get("/metrics", adaptor.HTTPHandler(a.Metrics.Handler()))
	handler.Register(srv, handlers)

	// 7. Background refresh
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(cfg.Scheduler, a.Merchants, a.SyncService, a.RecommendationService, zlog)
		sched.Start(ctx)
	}

	// 8. Graceful Shutdown
	go func() {
		if err := srv.Listen(":" + cfg.App.Port); err != nil {
			zlog.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			zlog.Warn("scheduler did not stop in time", zap.Error(err))
		}
	}
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		zlog.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	zlog.Info("server exited")
}
