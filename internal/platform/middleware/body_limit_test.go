package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1M", 1 << 20, false},
		{"4M", 4 << 20, false},
		{"512K", 512 << 10, false},
		{"512kb", 512 << 10, false},
		{"1G", 1 << 30, false},
		{"1024", 1024, false},
		{"", 0, true},
		{"invalid", 0, true},
		{"0M", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLimit(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLimit(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}

	if got := parseLimit("nope"); got != 1<<20 {
		t.Errorf("parseLimit fallback = %d, want 1MB", got)
	}
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/forms/consent/Dupont", strings.NewReader(`{"patient":{"name":"Dupont"}}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		if len(b) == 0 {
			t.Error("expected non-empty body")
		}
		called = true
		return c.NoContent(http.StatusNoContent)
	}

	h := BodyLimit("1K", "1M")(handler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestBodyLimit_RejectsByContentLength(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/forms/consent/Dupont", strings.NewReader(strings.Repeat("a", 2048)))
	c := e.NewContext(req, httptest.NewRecorder())

	h := BodyLimit("1K", "1M")(func(c echo.Context) error {
		t.Error("handler must not run")
		return nil
	})
	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
}

func TestBodyLimit_RejectsWhileReading(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/forms/consent/Dupont", strings.NewReader(strings.Repeat("a", 2048)))
	req.ContentLength = -1
	c := e.NewContext(req, httptest.NewRecorder())

	h := BodyLimit("1K", "1M")(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})
	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
}

func TestBodyLimit_ImportGetsLargerLimit(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/forms/intraop/import", strings.NewReader(strings.Repeat("a", 2048)))
	c := e.NewContext(req, httptest.NewRecorder())

	h := BodyLimit("1K", "1M")(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
