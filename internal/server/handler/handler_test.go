package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubProducts struct {
	products map[string]domain.Product
	selected string
	err      error // forced error for every call when set
}

func newStubProducts() *stubProducts {
	return &stubProducts{products: map[string]domain.Product{
		"p-1": {ID: "p-1", Name: "Chair", Cost: 50, Price: 100, Elasticity: -2, BaselineVolume: 500},
	}}
}

func (s *stubProducts) get(id string) (domain.Product, error) {
	if s.err != nil {
		return domain.Product{}, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("stub: get %q: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (s *stubProducts) List(context.Context) ([]domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubProducts) Get(_ context.Context, id string) (domain.Product, error) { return s.get(id) }

func (s *stubProducts) Select(_ context.Context, id string) (domain.Product, error) {
	p, err := s.get(id)
	if err == nil {
		s.selected = id
	}
	return p, err
}

func (s *stubProducts) Selected(context.Context) (domain.Product, error) { return s.get(s.selected) }

func (s *stubProducts) Simulate(_ context.Context, id string, price float64) (domain.SimulationResult, error) {
	if _, err := s.get(id); err != nil {
		return domain.SimulationResult{}, err
	}
	if price < 0 {
		return domain.SimulationResult{}, fmt.Errorf("stub: %w: negative price", domain.ErrInvalidInput)
	}
	return domain.SimulationResult{Volume: 400, Revenue: price * 400}, nil
}

func (s *stubProducts) Curve(_ context.Context, id string) ([]domain.CurvePoint, error) {
	if _, err := s.get(id); err != nil {
		return nil, err
	}
	return []domain.CurvePoint{{Offset: 0, Price: 100, Current: true}}, nil
}

func (s *stubProducts) Optimize(_ context.Context, id string) (domain.OptimizeResult, error) {
	p, err := s.get(id)
	if err != nil {
		return domain.OptimizeResult{}, err
	}
	return domain.OptimizeResult{Product: p, Best: domain.CurvePoint{Price: 80}, Uplift: 10}, nil
}

func (s *stubProducts) Apply(_ context.Context, id string) (domain.Product, error) {
	p, err := s.get(id)
	if err != nil {
		return domain.Product{}, err
	}
	if p.SuggestedPrice == nil {
		return domain.Product{}, domain.ErrNoSuggestion
	}
	return p, nil
}

func newProductMux(svc ProductService) *http.ServeMux {
	h := NewProductHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/selected", h.GetSelected)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("POST /api/products/{id}/select", h.SelectProduct)
	mux.HandleFunc("GET /api/products/{id}/simulate", h.Simulate)
	mux.HandleFunc("GET /api/products/{id}/curve", h.Curve)
	mux.HandleFunc("POST /api/products/{id}/optimize", h.Optimize)
	mux.HandleFunc("POST /api/products/{id}/apply", h.Apply)
	return mux
}

func TestProductEndpoints(t *testing.T) {
	mux := newProductMux(newStubProducts())

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{"list", "GET", "/api/products", 200, `"total":1`},
		{"get", "GET", "/api/products/p-1", 200, `"name":"Chair"`},
		{"get missing", "GET", "/api/products/nope", 404, `not found`},
		{"simulate", "GET", "/api/products/p-1/simulate?price=90", 200, `"revenue":36000`},
		{"simulate missing price", "GET", "/api/products/p-1/simulate", 400, `missing price`},
		{"simulate bad price", "GET", "/api/products/p-1/simulate?price=abc", 400, `must be a number`},
		{"simulate invalid", "GET", "/api/products/p-1/simulate?price=-1", 400, `invalid input`},
		{"curve", "GET", "/api/products/p-1/curve", 200, `"current":true`},
		{"optimize", "POST", "/api/products/p-1/optimize", 200, `"uplift":10`},
		{"apply without suggestion", "POST", "/api/products/p-1/apply", 409, `run optimize first`},
		{"select", "POST", "/api/products/p-1/select", 200, `"id":"p-1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want substring %s", rec.Body, tt.wantBody)
			}
		})
	}
}

func TestSelectedFollowsSelect(t *testing.T) {
	svc := newStubProducts()
	svc.products["p-2"] = domain.Product{ID: "p-2", Name: "Desk"}
	mux := newProductMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/products/p-2/select", nil))
	if rec.Code != 200 {
		t.Fatalf("select status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/products/selected", nil))
	if !strings.Contains(rec.Body.String(), `"id":"p-2"`) {
		t.Errorf("selected = %s", rec.Body)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, 404},
		{fmt.Errorf("wrap: %w", domain.ErrInvalidInput), 400},
		{domain.ErrNoSuggestion, 409},
		{domain.ErrLockHeld, 409},
		{domain.ErrRateLimited, 429},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		svc := newStubProducts()
		svc.err = tt.err
		rec := httptest.NewRecorder()
		newProductMux(svc).ServeHTTP(rec, httptest.NewRequest("GET", "/api/products/p-1", nil))
		if rec.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

type stubController struct {
	session  domain.DiscoverySession
	keyword  string
	desc     string
	dispatch int
}

func (c *stubController) Discover(_ context.Context, kw, desc string) domain.DiscoverySession {
	c.dispatch++
	c.keyword, c.desc = kw, desc
	c.session = domain.DiscoverySession{ID: "s-1", Keyword: kw, Path: domain.DiscoveryPathSimulated, InProgress: true}
	return c.session
}

func (c *stubController) Snapshot() domain.DiscoverySession { return c.session.Clone() }

type stubHistory struct{ sessions []domain.DiscoverySession }

func (h stubHistory) History(_ context.Context, count int) ([]domain.DiscoverySession, error) {
	if count < len(h.sessions) {
		return h.sessions[:count], nil
	}
	return h.sessions, nil
}

type stubArchive struct{ objects []domain.BlobInfo }

func (a stubArchive) ArchiveSession(context.Context, domain.DiscoverySession) (string, error) {
	return "", nil
}

func (a stubArchive) ListSessions(context.Context) ([]domain.BlobInfo, error) { return a.objects, nil }

func TestDiscoverValidation(t *testing.T) {
	ctrl := &stubController{}
	h := NewDiscoveryHandler(ctrl, stubHistory{}, nil, discardLogger())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{`, 400},
		{"empty keyword", `{"keyword":"   "}`, 400},
		{"long keyword", `{"keyword":"` + strings.Repeat("x", maxKeywordLen+1) + `"}`, 400},
		{"ok", `{"keyword":"  floor chair ","description":"foldable"}`, 202},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Discover(rec, httptest.NewRequest("POST", "/api/discovery", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if ctrl.dispatch != 1 || ctrl.keyword != "floor chair" || ctrl.desc != "foldable" {
		t.Errorf("dispatch=%d keyword=%q desc=%q", ctrl.dispatch, ctrl.keyword, ctrl.desc)
	}

	rec := httptest.NewRecorder()
	h.Current(rec, httptest.NewRequest("GET", "/api/discovery", nil))
	var s domain.DiscoverySession
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatal(err)
	}
	if s.ID != "s-1" || !s.InProgress {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestDiscoveryHistoryAndArchive(t *testing.T) {
	hist := stubHistory{sessions: []domain.DiscoverySession{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	h := NewDiscoveryHandler(&stubController{}, hist, nil, discardLogger())

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest("GET", "/api/discovery/history?limit=2", nil))
	var resp historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Sessions) != 2 {
		t.Errorf("history len = %d, want 2", len(resp.Sessions))
	}

	rec = httptest.NewRecorder()
	h.Archive(rec, httptest.NewRequest("GET", "/api/discovery/archive", nil))
	if rec.Code != 404 {
		t.Errorf("archive disabled status = %d, want 404", rec.Code)
	}

	h = NewDiscoveryHandler(&stubController{}, hist, stubArchive{objects: []domain.BlobInfo{{Path: "discovery/2026/10/18/a.json"}}}, discardLogger())
	rec = httptest.NewRecorder()
	h.Archive(rec, httptest.NewRequest("GET", "/api/discovery/archive", nil))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "a.json") {
		t.Errorf("archive = %d %s", rec.Code, rec.Body)
	}
}

func TestHealthCheck(t *testing.T) {
	ok := func(context.Context) error { return nil }
	bad := func(context.Context) error { return errors.New("connection refused") }

	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]Check{"store": ok}, discardLogger()).HealthCheck(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthy = %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]Check{"store": ok, "redis": bad}, discardLogger()).HealthCheck(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != 503 || !strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("degraded = %d %s", rec.Code, rec.Body)
	}
}

type fixedState domain.ConnectivityState

func (s fixedState) State() domain.ConnectivityState { return domain.ConnectivityState(s) }

func TestStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	NewStatusHandler("server", "http://localhost:5000", fixedState(domain.ConnectivityDisconnected)).
		GetStatus(rec, httptest.NewRequest("GET", "/api/status", nil))
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["connectivity"] != "disconnected" || body["matcher_url"] != "http://localhost:5000" {
		t.Errorf("status body = %v", body)
	}
}

func TestParseListOpts(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"limit=10&offset=5", 10, 5},
		{"limit=10000", 500, 0},
		{"limit=-1&offset=-3", 50, 0},
	}
	for _, tt := range tests {
		opts := parseListOpts(httptest.NewRequest("GET", "/api/audit?"+tt.query, nil))
		if opts.Limit != tt.wantLimit || opts.Offset != tt.wantOffset {
			t.Errorf("%q: got %+v", tt.query, opts)
		}
	}
}
