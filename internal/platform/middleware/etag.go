package middleware

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ETag buffers successful GET/HEAD responses, tags them with a hash of the
// body and answers a matching If-None-Match with 304. Responses stay
// private: they carry patient data. It is meant for route-level use on
// rendered charts and form exports, not for streaming endpoints.
func ETag(maxAge int) echo.MiddlewareFunc {
	cacheControl := fmt.Sprintf("private, max-age=%d", maxAge)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}

			res := c.Response()
			orig := res.Writer
			buf := &bufferedWriter{ResponseWriter: orig, status: http.StatusOK}
			res.Writer = buf

			err := next(c)
			res.Writer = orig
			if err != nil {
				return err
			}

			if buf.status >= 400 {
				return buf.flush()
			}

			tag := computeETag(buf.body.Bytes())
			h := orig.Header()
			h.Set("ETag", tag)
			h.Set("Cache-Control", cacheControl)

			if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatch(inm, tag) {
				orig.WriteHeader(http.StatusNotModified)
				return nil
			}
			return buf.flush()
		}
	}
}

type bufferedWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *bufferedWriter) Write(b []byte) (int, error) { return w.body.Write(b) }

func (w *bufferedWriter) WriteHeader(code int) { w.status = code }

func (w *bufferedWriter) Flush() {}

func (w *bufferedWriter) flush() error {
	w.ResponseWriter.WriteHeader(w.status)
	_, err := w.ResponseWriter.Write(w.body.Bytes())
	return err
}

func computeETag(body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf(`"%x"`, sum[:16])
}

// etagMatch supports comma-separated lists, "*" and weak validators.
func etagMatch(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == tag {
			return true
		}
	}
	return false
}
