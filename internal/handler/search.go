package handler

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/searchai/api/internal/model"
	"github.com/searchai/api/internal/service"
	"github.com/searchai/api/pkg/response"
)

type SearchHandler struct {
	service     *service.SearchService
	validator   *validator.Validate
	syncTimeout time.Duration
}

func NewSearchHandler(svc *service.SearchService, v *validator.Validate, syncTimeout time.Duration) *SearchHandler {
	return &SearchHandler{
		service:     svc,
		validator:   v,
		syncTimeout: syncTimeout,
	}
}

// Run godoc
// @Summary      Run a search and wait for it
// @Description  Blocks until the search finishes or the sync timeout passes. A search that is still running is returned with status "processing" and 202.
// @Tags         search
// @Produce      json
// @Param        query  query     string  true  "Search query"
// @Success      200    {object}  model.SearchRunResponse
// @Success      202    {object}  model.SearchRunResponse
// @Failure      400    {object}  response.ErrorResponse
// @Router       /search/ [get]
func (h *SearchHandler) Run(c *fiber.Ctx) error {
	req := model.SearchSubmitRequest{Query: strings.TrimSpace(c.Query("query"))}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Run(c.UserContext(), req.Query, h.syncTimeout)
	if err != nil {
		return serviceError(c, err)
	}

	if result.Status == model.JobStatusProcessing || result.Status == model.JobStatusCancelling {
		return response.Accepted(c, result)
	}
	return response.OK(c, result)
}

// Submit godoc
// @Summary      Start a search
// @Tags         search
// @Accept       json
// @Produce      json
// @Param        body  body      model.SearchSubmitRequest  true  "Search query"
// @Success      202   {object}  model.SearchSubmitResponse
// @Failure      400   {object}  response.ErrorResponse
// @Router       /search [post]
func (h *SearchHandler) Submit(c *fiber.Ctx) error {
	var req model.SearchSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	req.Query = strings.TrimSpace(req.Query)
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Submit(c.UserContext(), req.Query)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, result)
}

// Status godoc
// @Summary      Get search progress
// @Tags         search
// @Produce      json
// @Param        id   path      string  true  "Search ID"
// @Success      200  {object}  model.SearchStatusResponse
// @Failure      404  {object}  response.ErrorResponse
// @Router       /search/{id}/status [get]
func (h *SearchHandler) Status(c *fiber.Ctx) error {
	result, err := h.service.GetStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// Cancel godoc
// @Summary      Cancel a search
// @Description  Queued searches are cancelled at once; running ones move to "cancelling".
// @Tags         search
// @Produce      json
// @Param        id   path      string  true  "Search ID"
// @Success      200  {object}  model.SearchCancelResponse
// @Failure      404  {object}  response.ErrorResponse
// @Failure      409  {object}  response.ErrorResponse
// @Router       /cancel/{id} [post]
func (h *SearchHandler) Cancel(c *fiber.Ctx) error {
	result, err := h.service.Cancel(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}
