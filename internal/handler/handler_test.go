package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-stock-analytics/internal/apperror"
	"go-stock-analytics/internal/model"
	"go-stock-analytics/internal/platform"
	"go-stock-analytics/internal/prediction"
	"go-stock-analytics/internal/repository"
	"go-stock-analytics/internal/service"
	"go-stock-analytics/internal/testutil"
	"go-stock-analytics/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubSync struct {
	err       error
	sinceDays *int
	called    bool
}

func (s *stubSync) SyncProducts(context.Context, uuid.UUID) (*service.SyncResult, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	return &service.SyncResult{Kind: service.KindProducts, Upserted: 3}, nil
}

func (s *stubSync) SyncOrders(_ context.Context, _ uuid.UUID, sinceDays *int) (*service.SyncResult, error) {
	s.called = true
	s.sinceDays = sinceDays
	if s.err != nil {
		return nil, s.err
	}
	return &service.SyncResult{Kind: service.KindOrders}, nil
}

type stubPredictor struct{ err error }

func (p *stubPredictor) Restock(context.Context, []prediction.Item) ([]prediction.Prediction, error) {
	return nil, p.err
}

func (p *stubPredictor) Simulate(context.Context, []prediction.Item, []prediction.Scenario) (map[string]json.RawMessage, error) {
	return map[string]json.RawMessage{}, p.err
}

func (p *stubPredictor) Health(context.Context) (*prediction.Health, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &prediction.Health{Status: "ok", Version: "1.2.0"}, nil
}

type stubPlatform struct {
	platform.Platform
	count int
	err   error
}

func (p *stubPlatform) CountProducts(context.Context) (int, error) { return p.count, p.err }

type stubFactory struct{ p *stubPlatform }

func (f stubFactory) ForMerchant(*model.Merchant) (platform.Platform, error) { return f.p, nil }

type apiFixture struct {
	app       *fiber.App
	db        *gorm.DB
	token     string
	merchant  *model.Merchant
	sync      *stubSync
	predictor *stubPredictor
	platform  *stubPlatform
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()
	f := &apiFixture{
		db:        db,
		merchant:  testutil.CreateMerchant(t, db, "acme.myshopify.com"),
		sync:      &stubSync{},
		predictor: &stubPredictor{},
		platform:  &stubPlatform{count: 12},
	}

	merchants := repository.NewMerchantRepo(db)
	products := repository.NewProductRepo(db)
	orders := repository.NewOrderRepo(db)
	rows := repository.NewAnalyticsRepo(db)

	auth := service.NewAuthService(merchants, jwt.NewManager("handler-test-secret", "test", time.Hour))
	analytics := service.NewAnalyticsService(products, orders, rows, nil)
	recommendations := service.NewRecommendationService(products, rows, analytics, f.predictor, nil, log)

	f.app = fiber.New()
	Register(f.app, Handlers{
		Auth:            NewAuthHandler(auth, log),
		Sync:            NewSyncHandler(f.sync, log),
		Dashboard:       NewDashboardHandler(analytics, log),
		Catalog:         NewCatalogHandler(products, orders, analytics, log),
		Recommendations: NewRecommendationHandler(recommendations, log),
		Health:          NewHealthHandler(recommendations, stubFactory{f.platform}, log),
		AuthService:     auth,
	})

	resp, err := auth.IssueToken(context.Background(), "acme.myshopify.com", "secret")
	require.NoError(t, err)
	f.token = resp.Token
	return f
}

func (f *apiFixture) do(t *testing.T, method, target, body string, authed bool) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if authed {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+f.token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestAuthToken(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, http.MethodPost, "/api/v1/auth/token", `{"shop_domain":"not a domain","secret":"x"}`, false)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/v1/auth/token", `{"shop_domain":"acme.myshopify.com","secret":"wrong"}`, false)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := f.do(t, http.MethodPost, "/api/v1/auth/token", `{"shop_domain":"acme.myshopify.com","secret":"secret"}`, false)
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, body["token"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, http.MethodGet, "/api/v1/dashboard", "", false)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer garbage")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	status, _ = f.do(t, http.MethodPost, "/api/v1/auth/revoke", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = f.do(t, http.MethodGet, "/api/v1/dashboard", "", true)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestSyncErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"success", nil, fiber.StatusOK},
		{"unknown merchant", apperror.ErrMerchantNotFound, fiber.StatusNotFound},
		{"already running", apperror.ErrSyncInProgress, fiber.StatusConflict},
		{"page failure", &apperror.SyncError{Kind: "products", Page: 3, Retryable: true, Err: errors.New("timeout")}, fiber.StatusBadGateway},
		{"unexpected", errors.New("disk full"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			f.sync.err = tt.err

			status, body := f.do(t, http.MethodPost, "/api/v1/sync/products", "", true)
			assert.Equal(t, tt.status, status)
			if tt.status == fiber.StatusBadGateway {
				assert.Equal(t, true, body["retryable"])
				assert.EqualValues(t, 3, body["page"])
			}
		})
	}
}

func TestSyncOrdersSinceDays(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, http.MethodPost, "/api/v1/sync/orders?sinceDays=abc", "", true)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, f.sync.called)

	status, _ = f.do(t, http.MethodPost, "/api/v1/sync/orders?sinceDays=7", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, f.sync.sinceDays)
	assert.Equal(t, 7, *f.sync.sinceDays)

	status, _ = f.do(t, http.MethodPost, "/api/v1/sync/orders", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, f.sync.sinceDays)

	f.sync.err = service.ErrInvalidLookback
	status, _ = f.do(t, http.MethodPost, "/api/v1/sync/orders?sinceDays=-1", "", true)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestDashboardAndCatalog(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/v1/dashboard", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body["total_products"])

	status, body = f.do(t, http.MethodGet, "/api/v1/products?limit=1000", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, maxPageLimit, body["limit"])

	status, _ = f.do(t, http.MethodGet, "/api/v1/orders", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = f.do(t, http.MethodGet, "/api/v1/analytics", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = f.do(t, http.MethodGet, "/api/v1/dashboard/restock-estimates", "", true)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRecommendationsWhenPredictionDown(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.db.Create(&model.Product{
		MerchantID:       f.merchant.ID,
		ShopifyProductID: "1",
		Title:            "Mug",
		Variants:         []model.Variant{testutil.Variant("11", "MUG", 3, "9.00")},
	}).Error)
	f.predictor.err = &apperror.ConnectivityError{Service: "prediction", Op: "restock", Err: context.DeadlineExceeded}

	status, body := f.do(t, http.MethodPost, "/api/v1/recommendations", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["data"])

	status, body = f.do(t, http.MethodGet, "/api/v1/recommendations/status", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, string(service.RecommendationFailed), body["state"])
	assert.NotEmpty(t, body["error"])

	status, body = f.do(t, http.MethodGet, "/api/v1/health/prediction", "", false)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", body["status"])
}

func TestSimulationValidation(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, http.MethodPost, "/api/v1/simulations", `{"scenarios":[{"name":"","demandChange":0}]}`, true)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/v1/simulations", "", true)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestHealthProbes(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/v1/health/prediction", "", false)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "1.2.0", body["version"])

	status, body = f.do(t, http.MethodGet, "/api/v1/health/platform", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 12, body["products"])

	f.platform.err = &apperror.ConnectivityError{Service: "platform", Op: "count products", Err: errors.New("401")}
	status, _ = f.do(t, http.MethodGet, "/api/v1/health/platform", "", true)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}
