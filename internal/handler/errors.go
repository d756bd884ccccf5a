package handler

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/searchai/api/internal/service"
	"github.com/searchai/api/pkg/response"
)

// serviceError maps service sentinel errors onto the error envelope
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		return response.ValidationError(c, "Query is required", nil)
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Search not found")
	case errors.Is(err, service.ErrResultNotFound):
		return response.NotFound(c, "Result not found")
	case errors.Is(err, service.ErrJobTerminal):
		return response.Conflict(c, "Search already finished")
	}

	slog.ErrorContext(c.UserContext(), "request failed", "path", c.Path(), "error", err)
	return response.ServiceError(c, err.Error())
}

func formatValidationErrors(err error) any {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string)
		for _, e := range validationErrors {
			fields[e.Field()] = e.Tag()
		}
		return fields
	}
	return nil
}
