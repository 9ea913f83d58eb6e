package respond

import (
	stderrors "errors"
	"strings"

	"social-connect/internal/shared/errors"

	"github.com/gofiber/fiber/v2"
)

// Error writes err as {"error": <code>, "message": <text>} with the status
// carried by the AppError. Unclassified errors become a 500.
func Error(c *fiber.Ctx, err error) error {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "An internal error occurred",
		})
	}

	code := appErr.Code
	if code == "" {
		code = strings.ToLower(string(appErr.Type))
	}
	body := fiber.Map{
		"error":   code,
		"message": appErr.Message,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	return c.Status(errors.HTTPStatus(appErr)).JSON(body)
}

// BadRequest answers a body that could not be parsed
func BadRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "invalid_request_body",
		"message": "Invalid request body",
	})
}
