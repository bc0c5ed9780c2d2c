package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)        // Health check endpoint
	v1.GET("/tokens", h.Tokens)        // Tagged token lists
	v1.GET("/tokens/:mint", h.Token)   // Token detail
	v1.GET("/prices/:mint", h.Price)   // Live price lookup

	// Model-backed endpoints with rate limiting: every request here can cost
	// a completion.
	aigroup := v1.Group("/ai")
	aigroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.2), // 1 request every 5 seconds
		Burst:     2,               // Allow burst of 2 requests
		ExpiresIn: 2 * time.Minute, // Rate limit window
	})))
	aigroup.POST("/ask", h.Ask) // Grounded document question answering

	// Conversation sessions
	sessions := v1.Group("/sessions")
	sessions.POST("/:id/messages", h.SessionMessage) // One conversation turn
	sessions.POST("/:id/token", h.SessionToken)      // Focus session on a token
	sessions.GET("/:id/rules", h.SessionRules)       // List session rules
	sessions.POST("/:id/rules", h.SessionAddRule)    // Add session rule

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
