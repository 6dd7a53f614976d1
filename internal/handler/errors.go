package handler

import (
	"errors"

	"go-stock-analytics/internal/apperror"
	"go-stock-analytics/internal/service"
	"go-stock-analytics/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps service errors to HTTP statuses. Unknown errors are
// logged and reported with the generic message.
func respondError(c *fiber.Ctx, log *zap.Logger, err error, message string) error {
	var syncErr *apperror.SyncError
	var connErr *apperror.ConnectivityError

	switch {
	case errors.Is(err, apperror.ErrMerchantNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperror.ErrSyncInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidLookback):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &syncErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":     message,
			"detail":    syncErr.Error(),
			"page":      syncErr.Page,
			"retryable": syncErr.Retryable,
		})
	case errors.As(err, &connErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": message, "detail": connErr.Error()})
	}

	log.Error(message, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
}

func validationFailed(c *fiber.Ctx, errs []*validator.ErrorResponse) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Validation failed", "fields": errs})
}
