// Package app wires configuration into the repositories, clients and services
// shared by the API server and the one-shot sync command.
package app

import (
	"context"
	"errors"
	"fmt"

	"go-stock-analytics/internal/config"
	"go-stock-analytics/internal/lock"
	"go-stock-analytics/internal/metrics"
	"go-stock-analytics/internal/model"
	"go-stock-analytics/internal/platform"
	"go-stock-analytics/internal/prediction"
	"go-stock-analytics/internal/repository"
	"go-stock-analytics/internal/service"
	"go-stock-analytics/internal/ws"
	"go-stock-analytics/pkg/database"
	"go-stock-analytics/pkg/jwt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the wired dependency graph
type App struct {
	Config  *config.Config
	Log     *zap.Logger
	DB      *gorm.DB
	Metrics *metrics.Metrics
	Hub     *ws.Hub
	Redis   *redis.Client // nil unless redis.enabled

	Merchants repository.MerchantRepository
	Products  repository.ProductRepository
	Orders    repository.OrderRepository
	Analytics repository.AnalyticsRepository

	Platforms platform.Factory
	Predictor prediction.Predictor
	Tokens    *jwt.Manager

	SyncService           service.SyncService
	AnalyticsService      service.AnalyticsService
	RecommendationService service.RecommendationService
	AuthService           service.AuthService
}

// New connects to the database (and Redis when enabled), migrates the schema
// and builds every service
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return Build(ctx, cfg, log, db)
}

// Build wires the services on an already open database
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, db *gorm.DB) (*App, error) {
	a := &App{
		Config:    cfg,
		Log:       log,
		DB:        db,
		Metrics:   metrics.New(),
		Hub:       ws.NewHub(log),
		Merchants: repository.NewMerchantRepo(db),
		Products:  repository.NewProductRepo(db),
		Orders:    repository.NewOrderRepo(db),
		Analytics: repository.NewAnalyticsRepo(db),
		Tokens:    jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration),
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Enabled {
		client, err := lock.Connect(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = client
		locker = lock.NewRedisLocker(client, cfg.App.Name+":sync:")
		log.Info("using redis sync locks", zap.String("addr", cfg.Redis.Addr()))
	}

	a.Platforms = platform.NewClientFactory(cfg.Platform, a.Metrics, log)
	a.Predictor = prediction.NewHTTPClient(cfg.Prediction.BaseURL, cfg.Prediction.Timeout, a.Metrics)

	a.SyncService = service.NewSyncService(service.SyncDeps{
		DB:            db,
		MerchantRepo:  a.Merchants,
		ProductRepo:   a.Products,
		OrderRepo:     a.Orders,
		AnalyticsRepo: a.Analytics,
		Platforms:     a.Platforms,
		Locker:        locker,
		Notifier:      a.Hub,
		Metrics:       a.Metrics,
		Logger:        log,
	}, service.SyncOptions{
		PageSize:          cfg.Sync.PageSize,
		Workers:           cfg.Sync.Workers,
		OrderLookbackDays: cfg.Sync.OrderLookbackDays,
		LockTTL:           cfg.Sync.LockTTL,
	})
	a.AnalyticsService = service.NewAnalyticsService(a.Products, a.Orders, a.Analytics, log)
	a.RecommendationService = service.NewRecommendationService(a.Products, a.Analytics, a.AnalyticsService, a.Predictor, a.Hub, log)
	a.AuthService = service.NewAuthService(a.Merchants, a.Tokens)
	return a, nil
}

// SeedMerchant creates the configured merchant, or refreshes its platform
// token, when seed.shop_domain is set
func (a *App) SeedMerchant(ctx context.Context) error {
	seed := a.Config.Seed
	if seed.ShopDomain == "" {
		return nil
	}

	m, err := a.Merchants.FindByShopDomain(ctx, seed.ShopDomain)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		m = &model.Merchant{
			ShopDomain:        seed.ShopDomain,
			Name:              seed.ShopDomain,
			AccessToken:       seed.AccessToken,
			LowStockThreshold: model.DefaultLowStockThreshold,
			SyncEnabled:       true,
		}
		m.CreatedBy = model.AuditSystem
		m.UpdatedBy = model.AuditSystem
		if err := m.SetSecret(seed.Secret); err != nil {
			return err
		}
		if err := a.Merchants.Create(ctx, m); err != nil {
			return err
		}
		a.Log.Info("seeded merchant", zap.String("shop", m.ShopDomain))
		return nil
	case err != nil:
		return err
	}

	if seed.AccessToken != "" && m.AccessToken != seed.AccessToken {
		m.AccessToken = seed.AccessToken
		m.UpdatedBy = model.AuditSystem
		if err := a.Merchants.Update(ctx, m); err != nil {
			return err
		}
		a.Log.Info("refreshed merchant access token", zap.String("shop", m.ShopDomain))
	}
	return nil
}

// Close releases the database and Redis connections
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
