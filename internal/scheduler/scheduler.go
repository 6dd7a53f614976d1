// Package scheduler runs the sync pipeline for every sync-enabled merchant on an interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-stock-analytics/internal/apperror"
	"go-stock-analytics/internal/config"
	"go-stock-analytics/internal/model"
	"go-stock-analytics/internal/repository"
	"go-stock-analytics/internal/service"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler periodically syncs products, then orders, then (optionally)
// recommendations for each merchant. A failing step is logged and the
// next one still runs.
type Scheduler struct {
	cfg             config.SchedulerConfig
	merchants       repository.MerchantRepository
	sync            service.SyncService
	recommendations service.RecommendationService
	log             *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

func New(cfg config.SchedulerConfig, merchants repository.MerchantRepository, syncSvc service.SyncService, recs service.RecommendationService, log *zap.Logger) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Scheduler{cfg: cfg, merchants: merchants, sync: syncSvc, recommendations: recs, log: log.Named("scheduler")}
}

// Start launches the loop. The first pass runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.runLoop(ctx)

	s.log.Info("scheduler started", zap.Duration("interval", s.cfg.Interval), zap.Int("max_concurrent", s.cfg.MaxConcurrent))
}

// Stop cancels the loop and waits for the current pass, bounded by ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce syncs every sync-enabled merchant, at most MaxConcurrent at a time
func (s *Scheduler) RunOnce(ctx context.Context) {
	merchants, err := s.merchants.FindSyncEnabled(ctx)
	if err != nil {
		s.log.Error("listing sync-enabled merchants failed", zap.Error(err))
		return
	}
	if len(merchants) == 0 {
		s.log.Debug("no sync-enabled merchants")
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.MaxConcurrent)
	for i := range merchants {
		m := &merchants[i]
		g.Go(func() error {
			s.runMerchant(ctx, m)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) runMerchant(ctx context.Context, m *model.Merchant) {
	log := s.log.With(zap.String("merchant", m.ShopDomain))

	if _, err := s.sync.SyncProducts(ctx, m.ID); err != nil {
		s.logStepError(log, "products", err)
	}
	if ctx.Err() != nil {
		return
	}
	if _, err := s.sync.SyncOrders(ctx, m.ID, nil); err != nil {
		s.logStepError(log, "orders", err)
	}
	if ctx.Err() != nil || !s.cfg.RunRecommendations || s.recommendations == nil {
		return
	}
	if _, err := s.recommendations.GetRestockRecommendations(ctx, m.ID); err != nil {
		s.logStepError(log, "recommendations", err)
	}
}

func (s *Scheduler) logStepError(log *zap.Logger, step string, err error) {
	if errors.Is(err, apperror.ErrSyncInProgress) {
		log.Info("step skipped, already running", zap.String("step", step))
		return
	}
	log.Error("scheduled step failed", zap.String("step", step), zap.Bool("retryable", apperror.IsRetryable(err)), zap.Error(err))
}
