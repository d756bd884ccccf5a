package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/searchai/api/internal/auth"
	"github.com/searchai/api/pkg/response"
)

type AuthMiddleware struct {
	jwtSecret string
}

// NewAuthMiddleware creates the bearer token check. An empty secret turns
// authentication off.
func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret}
}

// Enabled reports whether requests must carry a token
func (m *AuthMiddleware) Enabled() bool {
	return m.jwtSecret != ""
}

// Authenticate validates JWT token from Authorization header. Websocket
// upgrades may pass the token as ?token= since browsers cannot set headers.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.Enabled() {
			return c.Next()
		}

		tokenString := c.Query("token")
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return response.Unauthorized(c, "Invalid authorization header format")
			}
			tokenString = parts[1]
		}
		if tokenString == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		claims, err := auth.ValidateToken(tokenString, m.jwtSecret)
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		// Store user info in context
		c.Locals("userId", claims.UserID)
		c.Locals("email", claims.Email)

		return c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}
