package handler

import (
	"go-stock-analytics/internal/middleware"
	"go-stock-analytics/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	service service.AnalyticsService
	log     *zap.Logger
}

func NewDashboardHandler(s service.AnalyticsService, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: s, log: log}
}

// GetDashboard returns the dashboard aggregates
func (h *DashboardHandler) GetDashboard(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	agg, err := h.service.GetDashboardAggregates(c.UserContext(), merchantID)
	if err != nil {
		return respondError(c, h.log, err, "Failed to fetch dashboard")
	}
	return c.JSON(agg)
}

// GetRestockEstimates returns the locally computed restock estimates
func (h *DashboardHandler) GetRestockEstimates(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	estimates, err := h.service.LocalRestockEstimates(c.UserContext(), merchantID)
	if err != nil {
		return respondError(c, h.log, err, "Failed to compute restock estimates")
	}
	return c.JSON(fiber.Map{"data": estimates})
}
