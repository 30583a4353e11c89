package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger writes one entry per request. Upgraded capture and viewer
// connections are logged when they close, with their session id and the
// connection's lifetime.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			} else if strings.HasPrefix(req.URL.Path, "/health") {
				evt = logger.Debug()
			}

			if sid, ok := upgraded(c); ok {
				evt.
					Str("request_id", rid).
					Str("session_id", sid).
					Str("path", req.URL.Path).
					Int("status", http.StatusSwitchingProtocols).
					Dur("duration", time.Since(start)).
					Str("remote_ip", c.RealIP()).
					Msg("websocket closed")
				return err
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Int64("bytes_out", c.Response().Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
