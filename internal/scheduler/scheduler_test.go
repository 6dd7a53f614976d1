package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-stock-analytics/internal/apperror"
	"go-stock-analytics/internal/config"
	"go-stock-analytics/internal/repository"
	"go-stock-analytics/internal/service"
	"go-stock-analytics/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSync struct {
	mu         sync.Mutex
	steps      []string
	productErr error
}

func (r *recordingSync) record(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recordingSync) Steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.steps...)
}

func (r *recordingSync) SyncProducts(_ context.Context, id uuid.UUID) (*service.SyncResult, error) {
	r.record("products:" + id.String())
	return &service.SyncResult{}, r.productErr
}

func (r *recordingSync) SyncOrders(_ context.Context, id uuid.UUID, sinceDays *int) (*service.SyncResult, error) {
	if sinceDays != nil {
		return nil, errors.New("scheduler must use the configured lookback")
	}
	r.record("orders:" + id.String())
	return &service.SyncResult{}, nil
}

type recordingRecommendations struct {
	service.RecommendationService
	sync *recordingSync
}

func (r *recordingRecommendations) GetRestockRecommendations(_ context.Context, id uuid.UUID) ([]service.RecommendationView, error) {
	r.sync.record("recommendations:" + id.String())
	return nil, nil
}

func TestRunOnce_RunsStepsInOrder(t *testing.T) {
	db := testutil.NewDB(t)
	m := testutil.CreateMerchant(t, db, "acme.myshopify.com")
	disabled := testutil.CreateMerchant(t, db, "off.myshopify.com")
	require.NoError(t, db.Model(disabled).Update("sync_enabled", false).Error)

	rec := &recordingSync{productErr: &apperror.SyncError{Kind: "products", Page: 1, Retryable: true, Err: errors.New("timeout")}}
	core, logs := observer.New(zap.InfoLevel)
	s := New(config.SchedulerConfig{Interval: time.Hour, RunRecommendations: true, MaxConcurrent: 2},
		repository.NewMerchantRepo(db), rec, &recordingRecommendations{sync: rec}, zap.New(core))

	s.RunOnce(context.Background())

	id := m.ID.String()
	assert.Equal(t, []string{"products:" + id, "orders:" + id, "recommendations:" + id}, rec.Steps())
	assert.Equal(t, 1, logs.FilterMessage("scheduled step failed").Len())
}

func TestRunOnce_SkipsRecommendationsWhenDisabled(t *testing.T) {
	db := testutil.NewDB(t)
	m := testutil.CreateMerchant(t, db, "acme.myshopify.com")

	rec := &recordingSync{productErr: apperror.ErrSyncInProgress}
	s := New(config.SchedulerConfig{Interval: time.Hour}, repository.NewMerchantRepo(db), rec, &recordingRecommendations{sync: rec}, zap.NewNop())

	s.RunOnce(context.Background())
	assert.Equal(t, []string{"products:" + m.ID.String(), "orders:" + m.ID.String()}, rec.Steps())
}

func TestStartStop(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateMerchant(t, db, "acme.myshopify.com")

	rec := &recordingSync{}
	s := New(config.SchedulerConfig{Interval: time.Hour}, repository.NewMerchantRepo(db), rec, nil, zap.NewNop())

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return len(rec.Steps()) == 2 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
