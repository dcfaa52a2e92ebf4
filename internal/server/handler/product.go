package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// ProductService defines the methods the product handler requires from the
// service layer.
type ProductService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	Select(ctx context.Context, id string) (domain.Product, error)
	Selected(ctx context.Context) (domain.Product, error)
	Simulate(ctx context.Context, id string, price float64) (domain.SimulationResult, error)
	Curve(ctx context.Context, id string) ([]domain.CurvePoint, error)
	Optimize(ctx context.Context, id string) (domain.OptimizeResult, error)
	Apply(ctx context.Context, id string) (domain.Product, error)
}

// ProductHandler serves product and pricing endpoints.
type ProductHandler struct {
	products ProductService
	logger   *slog.Logger
}

// NewProductHandler creates a ProductHandler with the given service and logger.
func NewProductHandler(products ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		logger:   logHandler(logger, "products"),
	}
}

type listProductsResponse struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
}

type simulateResponse struct {
	ProductID string  `json:"product_id"`
	Price     float64 `json:"price"`
	domain.SimulationResult
}

type curveResponse struct {
	ProductID string              `json:"product_id"`
	Points    []domain.CurvePoint `json:"points"`
}

// ListProducts returns the whole catalog.
// GET /api/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list products")
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, listProductsResponse{Products: products, Total: len(products)})
}

// GetProduct returns a single product.
// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetSelected returns the product the dashboard is focused on.
// GET /api/products/selected
func (h *ProductHandler) GetSelected(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Selected(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get selected product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SelectProduct makes a product the current selection.
// POST /api/products/{id}/select
func (h *ProductHandler) SelectProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Select(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to select product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Simulate projects volume, revenue and profit at a candidate price.
// GET /api/products/{id}/simulate?price=120
func (h *ProductHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("price")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing price query parameter")
		return
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "price must be a number")
		return
	}

	id := pathParam(r, "id")
	res, err := h.products.Simulate(r.Context(), id, price)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to simulate price")
		return
	}
	writeJSON(w, http.StatusOK, simulateResponse{ProductID: id, Price: price, SimulationResult: res})
}

// Curve returns the demand curve around the committed price.
// GET /api/products/{id}/curve
func (h *ProductHandler) Curve(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	points, err := h.products.Curve(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to build demand curve")
		return
	}
	writeJSON(w, http.StatusOK, curveResponse{ProductID: id, Points: points})
}

// Optimize stores the profit-maximising price as the product's suggestion.
// POST /api/products/{id}/optimize
func (h *ProductHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	res, err := h.products.Optimize(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to optimize price")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Apply commits the suggested price.
// POST /api/products/{id}/apply
func (h *ProductHandler) Apply(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Apply(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to apply price")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
