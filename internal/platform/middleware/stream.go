package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// SessionIDKey is the echo context key under which WebSocket handlers store
// the id of the capture session or viewer they opened. Handlers set it only
// once the connection has been upgraded.
const SessionIDKey = "session_id"

// IsWebSocketUpgrade reports whether r asks for a WebSocket connection.
func IsWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") ||
		strings.HasSuffix(r.URL.Path, "/ws")
}

// upgraded returns the session id of a hijacked WebSocket connection.
func upgraded(c echo.Context) (string, bool) {
	sid, _ := c.Get(SessionIDKey).(string)
	return sid, sid != ""
}
