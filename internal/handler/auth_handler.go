package handler

import (
	"errors"

	"go-stock-analytics/internal/middleware"
	"go-stock-analytics/internal/service"
	"go-stock-analytics/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService service.AuthService
	log         *zap.Logger
}

func NewAuthHandler(authService service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// TokenRequest exchanges merchant credentials for a token
type TokenRequest struct {
	ShopDomain string `json:"shop_domain" validate:"required,fqdn"`
	Secret     string `json:"secret" validate:"required"`
}

// Token issues a merchant token
// POST /api/v1/auth/token
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(req); errs != nil {
		return validationFailed(c, errs)
	}

	resp, err := h.authService.IssueToken(c.UserContext(), req.ShopDomain, req.Secret)
	if errors.Is(err, service.ErrInvalidCredentials) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return respondError(c, h.log, err, "Failed to issue token")
	}
	return c.JSON(resp)
}

// Revoke invalidates all tokens of the calling merchant
// POST /api/v1/auth/revoke
func (h *AuthHandler) Revoke(c *fiber.Ctx) error {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	if err := h.authService.RevokeTokens(c.UserContext(), merchantID); err != nil {
		return respondError(c, h.log, err, "Failed to revoke tokens")
	}
	return c.JSON(fiber.Map{"message": "Tokens revoked"})
}
