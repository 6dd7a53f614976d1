package handler

import (
	"go-stock-analytics/internal/middleware"
	"go-stock-analytics/internal/prediction"
	"go-stock-analytics/internal/service"
	"go-stock-analytics/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type RecommendationHandler struct {
	service service.RecommendationService
	log     *zap.Logger
}

func NewRecommendationHandler(s service.RecommendationService, log *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{service: s, log: log}
}

// List returns the stored recommendations
// GET /api/v1/recommendations
func (h *RecommendationHandler) List(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	views, err := h.service.StoredRecommendations(c.UserContext(), merchantID)
	if err != nil {
		return respondError(c, h.log, err, "Failed to fetch recommendations")
	}
	return c.JSON(fiber.Map{"data": views})
}

// Generate asks the prediction service for fresh recommendations.
// An unreachable service yields an empty list; the status endpoint tells why.
// POST /api/v1/recommendations
func (h *RecommendationHandler) Generate(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	views, err := h.service.GetRestockRecommendations(c.UserContext(), merchantID)
	if err != nil {
		return respondError(c, h.log, err, "Failed to generate recommendations")
	}
	return c.JSON(fiber.Map{"data": views, "status": h.service.Status(merchantID)})
}

// Status
// GET /api/v1/recommendations/status
func (h *RecommendationHandler) Status(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	return c.JSON(h.service.Status(merchantID))
}

// SimulationRequest names the scenarios to run; empty runs the defaults
type SimulationRequest struct {
	Scenarios []prediction.Scenario `json:"scenarios" validate:"dive"`
}

// Simulate
// POST /api/v1/simulations
func (h *RecommendationHandler) Simulate(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req SimulationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
		}
		if errs := validator.ValidateStruct(req); errs != nil {
			return validationFailed(c, errs)
		}
	}

	results, err := h.service.RunInventorySimulations(c.UserContext(), merchantID, req.Scenarios)
	if err != nil {
		return respondError(c, h.log, err, "Failed to run simulations")
	}
	return c.JSON(fiber.Map{"data": results})
}
