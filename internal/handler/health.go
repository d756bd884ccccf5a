package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/searchai/api/pkg/response"
)

// HealthCheck checks one backing component
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks   map[string]HealthCheck
	features map[string]bool
}

// NewHealthHandler reports the result of every check plus which optional
// integrations are configured.
func NewHealthHandler(checks map[string]HealthCheck, features map[string]bool) *HealthHandler {
	return &HealthHandler{checks: checks, features: features}
}

// Root handles GET /
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"timestamp": time.Now().Unix(),
	})
}

// Health handles GET /health. A failing component degrades the status and
// returns 503.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "ok"
	components := make(fiber.Map, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = "degraded"
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	body := fiber.Map{
		"status":     status,
		"components": components,
		"services":   h.features,
	}
	if status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}
	return response.OK(c, body)
}
