package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/malinha-engine/internal/domain/sale"
	"github.com/xenking/malinha-engine/internal/domain/stock"
)

type createSaleRequest struct {
	CustomerID    string             `json:"customerId"`
	Items         []orderItemPayload `json:"items"`
	PaymentMethod string             `json:"paymentMethod,omitempty"`
	PaymentStatus string             `json:"paymentStatus,omitempty"`
}

type saleResponse struct {
	ID            string             `json:"id"`
	CustomerID    string             `json:"customerId"`
	MalinhaID     string             `json:"malinhaId,omitempty"`
	Items         []orderItemPayload `json:"items"`
	TotalValue    decimal.Decimal    `json:"totalValue"`
	PaymentMethod string             `json:"paymentMethod,omitempty"`
	PaymentStatus string             `json:"paymentStatus"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// CreateSale records a direct point-of-sale purchase.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]sale.Item, len(req.Items))
	for i, p := range req.Items {
		items[i] = sale.Item{
			ProductID: p.ProductID,
			Color:     p.Color,
			Size:      p.Size,
			Quantity:  p.Quantity,
			Price:     p.Price,
			CostPrice: p.CostPrice,
		}
	}

	paymentStatus := req.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = "pending"
	}

	sl, err := h.sales.Create(r.Context(), sale.CreateRequest{
		CustomerID:    req.CustomerID,
		Items:         items,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: paymentStatus,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleResponse(sl))
}

// ListSales returns all sales.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.sales.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]saleResponse, len(sales))
	for i := range sales {
		out[i] = toSaleResponse(&sales[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// GetSale returns a single sale.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sl, err := h.sales.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleResponse(sl))
}

func toKeeps(payload []keptItemPayload) []sale.Keep {
	kept := make([]sale.Keep, len(payload))
	for i, p := range payload {
		kept[i] = sale.Keep{
			Ref:      stock.VariantRef{ProductID: p.ProductID, Color: p.Color, Size: p.Size},
			Quantity: p.Quantity,
		}
	}
	return kept
}

func toSaleResponse(s *sale.Sale) saleResponse {
	items := make([]orderItemPayload, len(s.Items))
	for i, item := range s.Items {
		items[i] = orderItemPayload{
			ProductID: item.ProductID,
			Color:     item.Color,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
			CostPrice: item.CostPrice,
		}
	}
	return saleResponse{
		ID:            s.ID,
		CustomerID:    s.CustomerID,
		MalinhaID:     s.MalinhaID,
		Items:         items,
		TotalValue:    s.TotalValue,
		PaymentMethod: s.PaymentMethod,
		PaymentStatus: s.PaymentStatus,
		CreatedAt:     s.CreatedAt,
	}
}
