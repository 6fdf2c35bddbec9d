package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/malinha-engine/internal/domain/order"
	"github.com/xenking/malinha-engine/internal/domain/stock"
)

type orderItemPayload struct {
	ProductID string          `json:"productId"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"costPrice"`
}

type createOrderRequest struct {
	CustomerID   string             `json:"customerId"`
	Items        []orderItemPayload `json:"items"`
	DeliveryDate *time.Time         `json:"deliveryDate,omitempty"`
	PickupDate   *time.Time         `json:"pickupDate,omitempty"`
}

type updateItemsRequest struct {
	Items []orderItemPayload `json:"items"`
}

type updateDatesRequest struct {
	DeliveryDate *time.Time `json:"deliveryDate"`
	PickupDate   *time.Time `json:"pickupDate"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
	Source string `json:"source,omitempty"`
}

type convertOrderRequest struct {
	Kept []keptItemPayload `json:"kept"`
}

type keptItemPayload struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type orderResponse struct {
	ID              string             `json:"id"`
	OrderNumber     int64              `json:"orderNumber"`
	CustomerID      string             `json:"customerId,omitempty"`
	Status          string             `json:"status"`
	Items           []orderItemPayload `json:"items"`
	DeliveryDate    *time.Time         `json:"deliveryDate,omitempty"`
	PickupDate      *time.Time         `json:"pickupDate,omitempty"`
	ConvertedToSale bool               `json:"convertedToSale"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

type historyEntryResponse struct {
	Status    string    `json:"status"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type effectiveStockRequest struct {
	ProductID string            `json:"productId"`
	Color     string            `json:"color"`
	Size      string            `json:"size"`
	Draft     []keptItemPayload `json:"draft,omitempty"`
}

type effectiveStockResponse struct {
	Available int `json:"available"`
}

// CreateOrder assembles a new malinha, reserving stock for every item.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		CustomerID:   req.CustomerID,
		Items:        toOrderItems(req.Items),
		DeliveryDate: req.DeliveryDate,
		PickupDate:   req.PickupDate,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// ListOrders returns all orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// GetOrder returns a single order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// OrderHistory returns the order's append-only status log.
func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.orders.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]historyEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = historyEntryResponse{Status: string(e.Status), Source: e.Source, CreatedAt: e.CreatedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateOrderItems replaces the order's item list atomically.
func (h *Handler) UpdateOrderItems(w http.ResponseWriter, r *http.Request) {
	var req updateItemsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.UpdateItems(r.Context(), chi.URLParam(r, "id"), toOrderItems(req.Items))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// UpdateOrderDates sets delivery and pickup dates.
func (h *Handler) UpdateOrderDates(w http.ResponseWriter, r *http.Request) {
	var req updateDatesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.UpdateDates(r.Context(), chi.URLParam(r, "id"), req.DeliveryDate, req.PickupDate)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// ChangeOrderStatus moves the order through its lifecycle.
func (h *Handler) ChangeOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	source := req.Source
	if source == "" {
		source = "api"
	}

	o, err := h.orders.ChangeStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status), source)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// ConvertOrder turns the kept items of a malinha into a sale.
func (h *Handler) ConvertOrder(w http.ResponseWriter, r *http.Request) {
	var req convertOrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sl, err := h.sales.Convert(r.Context(), chi.URLParam(r, "id"), toKeeps(req.Kept))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleResponse(sl))
}

// DeleteOrder removes the order, releasing any held reservation first.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EffectiveStock returns draft-aware availability for one variant.
func (h *Handler) EffectiveStock(w http.ResponseWriter, r *http.Request) {
	var req effectiveStockRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft := make([]order.Item, len(req.Draft))
	for i, d := range req.Draft {
		draft[i] = order.Item{ProductID: d.ProductID, Color: d.Color, Size: d.Size, Quantity: d.Quantity}
	}

	available, err := h.orders.EffectiveStock(r.Context(), stock.VariantRef{
		ProductID: req.ProductID,
		Color:     req.Color,
		Size:      req.Size,
	}, draft)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, effectiveStockResponse{Available: available})
}

func toOrderItems(payload []orderItemPayload) []order.Item {
	items := make([]order.Item, len(payload))
	for i, p := range payload {
		items[i] = order.Item{
			ProductID: p.ProductID,
			Color:     p.Color,
			Size:      p.Size,
			Quantity:  p.Quantity,
			Price:     p.Price,
			CostPrice: p.CostPrice,
		}
	}
	return items
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemPayload, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemPayload{
			ProductID: item.ProductID,
			Color:     item.Color,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
			CostPrice: item.CostPrice,
		}
	}
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		Items:           items,
		DeliveryDate:    o.DeliveryDate,
		PickupDate:      o.PickupDate,
		ConvertedToSale: o.ConvertedToSale,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
