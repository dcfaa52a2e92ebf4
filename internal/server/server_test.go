package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/optiprice/internal/domain"
	"github.com/alanyoungcy/optiprice/internal/server/handler"
)

type emptyProducts struct{}

func (emptyProducts) List(context.Context) ([]domain.Product, error) { return nil, nil }
func (emptyProducts) Get(context.Context, string) (domain.Product, error) {
	return domain.Product{}, domain.ErrNotFound
}
func (emptyProducts) Select(context.Context, string) (domain.Product, error) {
	return domain.Product{}, domain.ErrNotFound
}
func (emptyProducts) Selected(context.Context) (domain.Product, error) {
	return domain.Product{ID: "selected-route"}, nil
}
func (emptyProducts) Simulate(context.Context, string, float64) (domain.SimulationResult, error) {
	return domain.SimulationResult{}, nil
}
func (emptyProducts) Curve(context.Context, string) ([]domain.CurvePoint, error) { return nil, nil }
func (emptyProducts) Optimize(context.Context, string) (domain.OptimizeResult, error) {
	return domain.OptimizeResult{}, nil
}
func (emptyProducts) Apply(context.Context, string) (domain.Product, error) {
	return domain.Product{}, nil
}

type idleController struct{}

func (idleController) Discover(context.Context, string, string) domain.DiscoverySession {
	return domain.DiscoverySession{}
}
func (idleController) Snapshot() domain.DiscoverySession { return domain.DiscoverySession{} }

// slowController stands in for a matcher call that outlasts the write timeout.
type slowController struct{ delay time.Duration }

func (c slowController) Discover(context.Context, string, string) domain.DiscoverySession {
	time.Sleep(c.delay)
	return domain.DiscoverySession{ID: "slow-session"}
}
func (slowController) Snapshot() domain.DiscoverySession { return domain.DiscoverySession{} }

type noHistory struct{}

func (noHistory) History(context.Context, int) ([]domain.DiscoverySession, error) { return nil, nil }

type connected struct{}

func (connected) State() domain.ConnectivityState { return domain.ConnectivityConnected }

func newTestServer(apiKey string) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(Config{Port: 0, APIKey: apiKey}, Handlers{
		Health:    handler.NewHealthHandler(nil, logger),
		Status:    handler.NewStatusHandler("server", "http://matcher", connected{}),
		Products:  handler.NewProductHandler(emptyProducts{}, logger),
		Discovery: handler.NewDiscoveryHandler(idleController{}, noHistory{}, nil, logger),
	}, nil, nil, logger)
}

func TestRoutes(t *testing.T) {
	h := newTestServer("").Handler()

	tests := []struct {
		method, path string
		want         int
		body         string
	}{
		{"GET", "/api/health", 200, `"status":"ok"`},
		{"GET", "/api/status", 200, `"connectivity":"connected"`},
		{"GET", "/api/products", 200, `"products":[]`},
		{"GET", "/api/products/selected", 200, `selected-route`},
		{"GET", "/api/products/missing", 404, ``},
		{"GET", "/api/discovery/history", 200, `"sessions":[]`},
		{"GET", "/api/discovery/archive", 404, `not enabled`},
		{"DELETE", "/api/products", 405, ``},
		{"GET", "/api/unknown", 404, ``},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
		if !strings.Contains(rec.Body.String(), tt.body) {
			t.Errorf("%s %s: body = %s", tt.method, tt.path, rec.Body)
		}
	}
}

func TestAuthProtectsAPI(t *testing.T) {
	h := newTestServer("k").Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/products", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestDiscoverOutlivesWriteTimeout(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(Config{}, Handlers{
		Health:    handler.NewHealthHandler(nil, logger),
		Status:    handler.NewStatusHandler("server", "http://matcher", connected{}),
		Products:  handler.NewProductHandler(emptyProducts{}, logger),
		Discovery: handler.NewDiscoveryHandler(slowController{delay: 150 * time.Millisecond}, noHistory{}, nil, logger),
	}, nil, nil, logger)

	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.Config.WriteTimeout = 50 * time.Millisecond
	ts.Start()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/discovery", "application/json", strings.NewReader(`{"keyword":"k"}`))
	if err != nil {
		t.Fatalf("POST /api/discovery: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	if !strings.Contains(string(body), "slow-session") {
		t.Errorf("body = %s", body)
	}
}
