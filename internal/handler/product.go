package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/malinha-engine/internal/domain/product"
)

type productResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Price     decimal.Decimal   `json:"price"`
	CostPrice decimal.Decimal   `json:"costPrice"`
	Stock     int               `json:"stock"`
	Variants  []variantResponse `json:"variants"`
}

type variantResponse struct {
	ID       string `json:"id"`
	Color    string `json:"color"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// ListProducts returns the catalog with per-variant availability.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = toProductResponse(&products[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// GetProduct returns one product with its variants.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func toProductResponse(p *product.Product) productResponse {
	variants := make([]variantResponse, len(p.Variants))
	for i, v := range p.Variants {
		variants[i] = variantResponse{ID: v.ID, Color: v.Color, Size: v.Size, Quantity: v.Quantity}
	}
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		CostPrice: p.CostPrice,
		Stock:     p.Stock,
		Variants:  variants,
	}
}
