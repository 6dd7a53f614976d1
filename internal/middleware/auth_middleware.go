package middleware

import (
	"errors"
	"strings"

	"go-stock-analytics/internal/model"
	"go-stock-analytics/internal/service"
	"go-stock-analytics/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	LocalMerchantID = "merchant_id"
	LocalMerchant   = "merchant"
)

// RequireAuth validates the bearer token and stores the merchant in the context.
// Websocket upgrades cannot set headers, so a token query parameter is accepted too.
func RequireAuth(auth service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}

		merchant, err := auth.Authenticate(c.UserContext(), token)
		switch {
		case errors.Is(err, service.ErrTokenRevoked):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token has been revoked"})
		case errors.Is(err, jwt.ErrInvalidToken), errors.Is(err, jwt.ErrMissingToken):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to verify token"})
		}

		c.Locals(LocalMerchantID, merchant.ID.String())
		c.Locals(LocalMerchant, merchant)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		if q := c.Query("token"); q != "" {
			return q, nil
		}
		return "", jwt.ErrMissingToken
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization format, use: Bearer <token>")
	}
	return parts[1], nil
}

// MerchantID returns the authenticated merchant's id
func MerchantID(c *fiber.Ctx) (uuid.UUID, bool) {
	raw, ok := c.Locals(LocalMerchantID).(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

// Merchant returns the authenticated merchant
func Merchant(c *fiber.Ctx) (*model.Merchant, bool) {
	m, ok := c.Locals(LocalMerchant).(*model.Merchant)
	return m, ok
}
