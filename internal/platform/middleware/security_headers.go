package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets response headers suited to a JSON and PNG API that
// serves patient records. WebSocket handshakes are left alone: the upgrader
// writes its own response and these headers would never be sent.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsWebSocketUpgrade(c.Request()) {
				return next(c)
			}
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")

			// Rendered charts are fetched as images by the forms UI.
			h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self' data:; frame-ancestors 'none'")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			if h.Get("Cache-Control") == "" {
				h.Set("Cache-Control", "no-store")
			}

			return next(c)
		}
	}
}
