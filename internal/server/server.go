// Package server assembles the HTTP application: middleware, routes and the
// error envelope.
package server

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/searchai/api/internal/handler"
	"github.com/searchai/api/internal/metrics"
	"github.com/searchai/api/internal/middleware"
	"github.com/searchai/api/internal/service"
	ws "github.com/searchai/api/internal/websocket"
	"github.com/searchai/api/pkg/response"
)

// Deps are the services the routes are bound to
type Deps struct {
	Searches    *service.SearchService
	Results     *service.ResultService
	Contexts    *service.ContextService
	Hub         *ws.Hub
	Health      *handler.HealthHandler
	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter // nil disables rate limiting

	SyncTimeout   time.Duration
	SearchPerHour int
	AskPerMin     int
	AccessLog     bool
	Debug         bool
}

// New builds the fiber app with every route registered
func New(deps Deps) *fiber.App {
	validate := validator.New()

	searchHandler := handler.NewSearchHandler(deps.Searches, validate, deps.SyncTimeout)
	resultHandler := handler.NewResultHandler(deps.Results)
	contextHandler := handler.NewContextHandler(deps.Contexts, validate)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	if deps.AccessLog {
		logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
		if deps.Debug {
			logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		}
		app.Use(logger.New(logger.Config{
			Format: logFormat,
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Public routes
	app.Get("/", deps.Health.Root)
	app.Get("/health", deps.Health.Health)
	app.Get("/metrics", metrics.Handler())

	searchLimit, askLimit := passThrough, passThrough
	if deps.RateLimiter != nil {
		searchLimit = deps.RateLimiter.SearchLimit(deps.SearchPerHour)
		askLimit = deps.RateLimiter.AskLimit(deps.AskPerMin)
	}

	// Authenticated routes
	api := app.Group("/", deps.Auth.Authenticate())

	api.Get("/data/", resultHandler.List)
	api.Get("/source_detail", resultHandler.SourceDetail)
	api.Delete("/results/:id", resultHandler.DeleteByID)

	api.Get("/search/", searchLimit, searchHandler.Run)
	api.Post("/search", searchLimit, searchHandler.Submit)
	api.Get("/search/:id/status", searchHandler.Status)
	api.Delete("/search/:query", resultHandler.DeleteByQuery)
	api.Post("/cancel/:id", searchHandler.Cancel)

	api.Post("/ask_context", askLimit, contextHandler.Ask)

	// WebSocket routes
	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	api.Get("/ws/search/:id", websocket.New(func(c *websocket.Conn) {
		deps.Hub.HandleConnection(c, c.Params("id"))
	}))

	return app
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	switch code {
	case fiber.StatusNotFound:
		errCode = response.CodeNotFound
	case fiber.StatusBadRequest, fiber.StatusUpgradeRequired, fiber.StatusRequestEntityTooLarge:
		errCode = response.CodeValidationError
	}

	return response.Error(c, code, errCode, message, nil)
}
