// Package handler exposes the inventory engine over HTTP. It is a thin
// consumer: request decoding, routing, and mapping of typed domain errors to
// status codes live here, while every stock decision stays in the domain
// services.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/malinha-engine/internal/domain/order"
	"github.com/xenking/malinha-engine/internal/domain/product"
	"github.com/xenking/malinha-engine/internal/domain/sale"
)

// Handler bundles the domain services behind the HTTP surface.
type Handler struct {
	products product.Repository
	orders   *order.Service
	sales    *sale.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products product.Repository, orders *order.Service, sales *sale.Service) *Handler {
	return &Handler{
		products: products,
		orders:   orders,
		sales:    sales,
	}
}

// Routes mounts all API routes. Mutating routes go through the API-key
// security middleware; catalog reads stay open.
func (h *Handler) Routes(sec *Security) http.Handler {
	r := chi.NewRouter()

	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)
	r.Post("/stock/effective", h.EffectiveStock)

	r.Group(func(r chi.Router) {
		r.Use(sec.RequireAPIKey)

		r.Post("/orders", h.CreateOrder)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Get("/orders/{id}/history", h.OrderHistory)
		r.Put("/orders/{id}/items", h.UpdateOrderItems)
		r.Put("/orders/{id}/dates", h.UpdateOrderDates)
		r.Post("/orders/{id}/status", h.ChangeOrderStatus)
		r.Post("/orders/{id}/convert", h.ConvertOrder)
		r.Delete("/orders/{id}", h.DeleteOrder)

		r.Post("/sales", h.CreateSale)
		r.Get("/sales", h.ListSales)
		r.Get("/sales/{id}", h.GetSale)
	})

	return r
}
