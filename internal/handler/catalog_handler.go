package handler

import (
	"go-stock-analytics/internal/middleware"
	"go-stock-analytics/internal/repository"
	"go-stock-analytics/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 250
)

// CatalogHandler exposes the synced products, orders and analytics read-only
type CatalogHandler struct {
	products  repository.ProductRepository
	orders    repository.OrderRepository
	analytics service.AnalyticsService
	log       *zap.Logger
}

func NewCatalogHandler(products repository.ProductRepository, orders repository.OrderRepository, analytics service.AnalyticsService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{products: products, orders: orders, analytics: analytics, log: log}
}

// pageFromQuery reads limit and offset, clamping limit to maxPageLimit
func pageFromQuery(c *fiber.Ctx) repository.Page {
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit <= 0 {
		limit = defaultPageLimit
	}
	return repository.Page{Limit: min(limit, maxPageLimit), Offset: max(c.QueryInt("offset", 0), 0)}
}

// ListProducts
// GET /api/v1/products?limit=&offset=
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	page := pageFromQuery(c)
	products, total, err := h.products.List(c.UserContext(), merchantID, page)
	if err != nil {
		return respondError(c, h.log, err, "Failed to fetch products")
	}
	return c.JSON(fiber.Map{"data": products, "total": total, "limit": page.Limit, "offset": page.Offset})
}

// ListOrders
// GET /api/v1/orders?limit=&offset=
func (h *CatalogHandler) ListOrders(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	page := pageFromQuery(c)
	orders, total, err := h.orders.List(c.UserContext(), merchantID, page)
	if err != nil {
		return respondError(c, h.log, err, "Failed to fetch orders")
	}
	return c.JSON(fiber.Map{"data": orders, "total": total, "limit": page.Limit, "offset": page.Offset})
}

// ListAnalytics returns the analytics rows of live variants
// GET /api/v1/analytics
func (h *CatalogHandler) ListAnalytics(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	rows, err := h.analytics.ListAnalytics(c.UserContext(), merchantID)
	if err != nil {
		return respondError(c, h.log, err, "Failed to fetch analytics")
	}
	return c.JSON(fiber.Map{"data": rows})
}
