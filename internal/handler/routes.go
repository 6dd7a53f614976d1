package handler

import (
	"go-stock-analytics/internal/middleware"
	"go-stock-analytics/internal/service"
	"go-stock-analytics/internal/ws"

	"github.com/gofiber/fiber/v2"
)

// Handlers groups everything Register mounts
type Handlers struct {
	Auth            *AuthHandler
	Sync            *SyncHandler
	Dashboard       *DashboardHandler
	Catalog         *CatalogHandler
	Recommendations *RecommendationHandler
	Health          *HealthHandler
	AuthService     service.AuthService
	Hub             *ws.Hub // optional
}

// Register mounts the API under /api/v1 and the websocket under /ws
func Register(app *fiber.App, h Handlers) {
	requireAuth := middleware.RequireAuth(h.AuthService)
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	api.Post("/auth/token", h.Auth.Token)
	api.Get("/health/prediction", h.Health.Prediction)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)
	protected.Post("/auth/revoke", h.Auth.Revoke)

	protected.Post("/sync/products", h.Sync.SyncProducts)
	protected.Post("/sync/orders", h.Sync.SyncOrders)

	protected.Get("/dashboard", h.Dashboard.GetDashboard)
	protected.Get("/dashboard/restock-estimates", h.Dashboard.GetRestockEstimates)

	protected.Get("/products", h.Catalog.ListProducts)
	protected.Get("/orders", h.Catalog.ListOrders)
	protected.Get("/analytics", h.Catalog.ListAnalytics)

	protected.Get("/recommendations", h.Recommendations.List)
	protected.Post("/recommendations", h.Recommendations.Generate)
	protected.Get("/recommendations/status", h.Recommendations.Status)
	protected.Post("/simulations", h.Recommendations.Simulate)

	protected.Get("/health/platform", h.Health.Platform)

	if h.Hub != nil {
		app.Use("/ws", ws.RequireUpgrade)
		app.Get("/ws", requireAuth, h.Hub.Handler(middleware.LocalMerchantID))
	}
}
