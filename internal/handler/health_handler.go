package handler

import (
	"context"
	"time"

	"go-stock-analytics/internal/middleware"
	"go-stock-analytics/internal/platform"
	"go-stock-analytics/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const probeTimeout = 10 * time.Second

// HealthHandler probes the external collaborators
type HealthHandler struct {
	recommendations service.RecommendationService
	platforms       platform.Factory
	log             *zap.Logger
}

func NewHealthHandler(recommendations service.RecommendationService, platforms platform.Factory, log *zap.Logger) *HealthHandler {
	return &HealthHandler{recommendations: recommendations, platforms: platforms, log: log}
}

// Prediction
// GET /api/v1/health/prediction
func (h *HealthHandler) Prediction(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
	defer cancel()

	health, err := h.recommendations.Probe(ctx)
	if err != nil {
		h.log.Warn("prediction probe failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": health.Status, "version": health.Version})
}

// Platform checks the calling merchant's shop credentials with a product count
// GET /api/v1/health/platform
func (h *HealthHandler) Platform(c *fiber.Ctx) error {
	merchant, ok := middleware.Merchant(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	client, err := h.platforms.ForMerchant(merchant)
	if err != nil {
		return respondError(c, h.log, err, "Platform client unavailable")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
	defer cancel()
	count, err := client.CountProducts(ctx)
	if err != nil {
		h.log.Warn("platform probe failed", zap.String("merchant", merchant.ShopDomain), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok", "shop_domain": merchant.ShopDomain, "products": count})
}
