package handler

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/searchai/api/internal/service"
	"github.com/searchai/api/pkg/response"
)

type ResultHandler struct {
	service *service.ResultService
}

func NewResultHandler(svc *service.ResultService) *ResultHandler {
	return &ResultHandler{service: svc}
}

// List handles GET /data/
func (h *ResultHandler) List(c *fiber.Ctx) error {
	result, err := h.service.List(c.UserContext())
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// DeleteByQuery handles DELETE /search/:query. Every result stored under
// exactly this query is removed.
func (h *ResultHandler) DeleteByQuery(c *fiber.Ctx) error {
	query, err := url.PathUnescape(c.Params("query"))
	if err != nil || strings.TrimSpace(query) == "" {
		return response.ValidationError(c, "Query is required", nil)
	}

	result, err := h.service.DeleteByQuery(c.UserContext(), query)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// DeleteByID handles DELETE /results/:id
func (h *ResultHandler) DeleteByID(c *fiber.Ctx) error {
	result, err := h.service.DeleteByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// SourceDetail handles GET /source_detail?url=
func (h *ResultHandler) SourceDetail(c *fiber.Ctx) error {
	sourceURL := strings.TrimSpace(c.Query("url"))
	if sourceURL == "" {
		return response.ValidationError(c, "URL is required", nil)
	}

	result, err := h.service.SourceDetail(c.UserContext(), sourceURL)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}
