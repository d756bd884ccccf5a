// Package response writes JSON bodies and the shared error envelope
// {"error":{"code","message","details"}}.
package response

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeServiceError    = "SERVICE_ERROR"
	CodeAIError         = "AI_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details any) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details any) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

// Conflict reports a request that is valid but no longer applies, such as
// cancelling a finished job.
func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message, nil)
}

func RateLimited(c *fiber.Ctx, retryAfter int) error {
	if retryAfter > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
	}
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func AIError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadGateway, CodeAIError, message, nil)
}

func OK(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}

func Accepted(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}
