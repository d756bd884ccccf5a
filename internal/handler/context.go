package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/searchai/api/internal/model"
	"github.com/searchai/api/internal/service"
	"github.com/searchai/api/pkg/response"
)

type ContextHandler struct {
	service   *service.ContextService
	validator *validator.Validate
}

func NewContextHandler(svc *service.ContextService, v *validator.Validate) *ContextHandler {
	return &ContextHandler{
		service:   svc,
		validator: v,
	}
}

// Ask godoc
// @Summary      Ask a follow-up question about a stored search
// @Description  The answer is tagged text, markdown, table or graph.
// @Tags         context
// @Accept       json
// @Produce      json
// @Param        body  body      model.AskContextRequest  true  "Question"
// @Success      200   {object}  model.ContextResponse
// @Failure      400   {object}  response.ErrorResponse
// @Failure      404   {object}  response.ErrorResponse
// @Failure      502   {object}  response.ErrorResponse
// @Router       /ask_context [post]
func (h *ContextHandler) Ask(c *fiber.Ctx) error {
	var req model.AskContextRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	req.OriginalQuery = strings.TrimSpace(req.OriginalQuery)
	req.UserQuestion = strings.TrimSpace(req.UserQuestion)
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Ask(c.UserContext(), &req)
	if err != nil {
		if errors.Is(err, service.ErrResultNotFound) {
			return response.NotFound(c, "No stored result for this query")
		}
		return response.AIError(c, err.Error())
	}

	return response.OK(c, result)
}
