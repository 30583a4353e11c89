package main

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/anesthesia/internal/config"
	"github.com/ehr/anesthesia/internal/domain/forms"
	"github.com/ehr/anesthesia/internal/platform/db"
	"github.com/ehr/anesthesia/internal/platform/rendercache"
)

// memRepo is a forms.Repository kept in memory.
type memRepo struct {
	mu      sync.Mutex
	records map[string]*forms.Record
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*forms.Record)}
}

func (m *memRepo) Upsert(_ context.Context, r *forms.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(r.Kind) + "/" + r.PatientName
	if prev, ok := m.records[key]; ok {
		r.ID, r.CreatedAt = prev.ID, prev.CreatedAt
	} else {
		r.ID, r.CreatedAt = uuid.New(), time.Now()
	}
	r.UpdatedAt = time.Now()
	stored := *r
	m.records[key] = &stored
	return nil
}

func (m *memRepo) Get(_ context.Context, kind forms.Kind, patient string) (*forms.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[string(kind)+"/"+patient]
	if !ok {
		return nil, forms.ErrNotFound
	}
	return r, nil
}

func (m *memRepo) List(_ context.Context, kind forms.Kind, limit, offset int) ([]*forms.Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*forms.Record
	for _, r := range m.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (m *memRepo) Delete(_ context.Context, kind forms.Kind, patient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, string(kind)+"/"+patient)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:             "test",
		CORSOrigins:     []string{"http://localhost:3000"},
		BodyLimit:       "1M",
		ImportLimit:     "4M",
		RequestTimeout:  5 * time.Second,
		RenderCacheTTL:  time.Minute,
		SignatureWidth:  500,
		SignatureHeight: 200,
		ChartWidth:      300,
		ChartHeight:     150,
	}
}

func testDeps(pingErr error) serverDeps {
	return serverDeps{
		Forms: newMemRepo(),
		Cache: rendercache.NewMemoryCache(),
		Ping:  func(context.Context) error { return pingErr },
		Stats: func() *db.PoolStats { return &db.PoolStats{MaxConns: 4, Healthy: pingErr == nil} },
	}
}

func TestServer_Health(t *testing.T) {
	e := newServer(testConfig(), zerolog.Nop(), testDeps(nil))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestServer_HealthDB(t *testing.T) {
	tests := []struct {
		name   string
		ping   error
		status int
	}{
		{"healthy", nil, http.StatusOK},
		{"down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServer(testConfig(), zerolog.Nop(), testDeps(tt.ping))
			req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestServer_FormRoundTrip(t *testing.T) {
	e := newServer(testConfig(), zerolog.Nop(), testDeps(nil))

	body := `{"patient":{"name":"Jean Dupont"},"procedure":"hernia repair"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/forms/intraop/Jean%20Dupont", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/forms/intraop/Jean%20Dupont", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"hernia repair"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/forms/intraop/Jean%20Dupont/chart.png", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("chart.png: expected 200, got %d", rec.Code)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Errorf("chart.png is not a PNG: %v", err)
	}
}

func TestServer_BodyLimit(t *testing.T) {
	e := newServer(testConfig(), zerolog.Nop(), testDeps(nil))

	big := `{"procedure":"` + strings.Repeat("x", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/forms/consultation/Dupont", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestRenderChartFile(t *testing.T) {
	ctx := context.Background()
	svc := forms.NewService(newMemRepo())
	svc.SetChartSize(300, 150)
	chart := `{"tension":[{"x":10,"y":10},{"x":100,"y":50}],"frequence":[],"saturation":[],"temperature":[]}`
	if _, err := svc.Save(ctx, forms.KindIntraop, "Dupont", []byte(`{"chart":`+chart+`}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out := filepath.Join(t.TempDir(), "chart.png")
	if err := renderChartFile(ctx, svc, "Dupont", out); err != nil {
		t.Fatalf("renderChartFile: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 600 || cfg.Height != 300 {
		t.Errorf("expected 600x300, got %dx%d", cfg.Width, cfg.Height)
	}

	if err := renderChartFile(ctx, svc, "Nobody", out); !errors.Is(err, forms.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMigrationsDir(t *testing.T) {
	cfg := &config.Config{MigrationsDir: "./migrations"}

	cmd := &cobra.Command{}
	cmd.Flags().String("dir", "", "")
	if got := migrationsDir(cmd, cfg); got != "./migrations" {
		t.Errorf("expected config default, got %q", got)
	}
	_ = cmd.Flags().Set("dir", "/srv/sql")
	if got := migrationsDir(cmd, cfg); got != "/srv/sql" {
		t.Errorf("expected flag value, got %q", got)
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printStatus(cmd, []db.MigrationStatus{
		{Version: 1, Name: "forms", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "signatures"},
	})
	out := buf.String()
	if !strings.Contains(out, "2026-03-01 08:00:00") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected status output:\n%s", out)
	}
}
