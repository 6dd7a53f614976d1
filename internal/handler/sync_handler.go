package handler

import (
	"strconv"

	"go-stock-analytics/internal/middleware"
	"go-stock-analytics/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SyncHandler struct {
	service service.SyncService
	log     *zap.Logger
}

func NewSyncHandler(s service.SyncService, log *zap.Logger) *SyncHandler {
	return &SyncHandler{service: s, log: log}
}

// SyncProducts pulls the full catalog
// POST /api/v1/sync/products
func (h *SyncHandler) SyncProducts(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	res, err := h.service.SyncProducts(c.UserContext(), merchantID)
	if err != nil {
		return respondError(c, h.log, err, "Product sync failed")
	}
	return c.JSON(fiber.Map{"message": "Products synced", "data": res})
}

// SyncOrders pulls recent orders. Query params: sinceDays (default from config)
// POST /api/v1/sync/orders
func (h *SyncHandler) SyncOrders(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var sinceDays *int
	if raw := c.Query("sinceDays"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": service.ErrInvalidLookback.Error()})
		}
		sinceDays = &days
	}

	res, err := h.service.SyncOrders(c.UserContext(), merchantID, sinceDays)
	if err != nil {
		return respondError(c, h.log, err, "Order sync failed")
	}
	return c.JSON(fiber.Map{"message": "Orders synced", "data": res})
}
