package handler

import (
	"go-pos-ledger/internal/middleware"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// currentUser returns the authenticated user set by RequireAuth.
func currentUser(c *fiber.Ctx) *model.User {
	return middleware.CurrentUser(c)
}

func getUserID(c *fiber.Ctx) string {
	userID := c.Locals("user_id")
	if userID == nil {
		return "system"
	}
	return userID.(string)
}

func parseUUID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}

// respondError maps an error to the API's error envelope: a machine-readable
// kind plus the per-item detail list.
func respondError(c *fiber.Ctx, err error) error {
	body := fiber.Map{
		"error": err.Error(),
		"kind":  apperr.KindOf(err),
	}
	if details := apperr.DetailsOf(err); len(details) > 0 {
		body["details"] = details
	}
	return c.Status(apperr.HTTPStatus(err)).JSON(body)
}
