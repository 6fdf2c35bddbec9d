package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/malinha-engine/internal/domain/customer"
	"github.com/xenking/malinha-engine/internal/domain/order"
	"github.com/xenking/malinha-engine/internal/domain/product"
	"github.com/xenking/malinha-engine/internal/domain/sale"
	"github.com/xenking/malinha-engine/internal/domain/stock"
)

// errorBody is the uniform JSON error payload.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// Stock carries structured detail for insufficient-stock failures so
	// clients can show which variant ran out.
	Stock *stockDetail `json:"stock,omitempty"`
}

type stockDetail struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Code: status, Message: msg})
}

// decode reads a JSON request body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// respondError maps typed domain errors onto HTTP status codes. Ledger
// failures surface verbatim: nothing stock-related is swallowed.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, sale.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, customer.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return

	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, sale.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, err.Error())
		return

	case errors.Is(err, sale.ErrCustomerNotAssociated),
		errors.Is(err, sale.ErrOrderNotHolding),
		errors.Is(err, sale.ErrAlreadyConverted):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return

	case errors.Is(err, stock.ErrTransactionConflict):
		writeError(w, http.StatusConflict, "concurrent update, please retry")
		return
	}

	var insufficientErr *stock.InsufficientStockError
	if errors.As(err, &insufficientErr) {
		writeJSON(w, http.StatusConflict, errorBody{
			Code:    http.StatusConflict,
			Message: insufficientErr.Error(),
			Stock: &stockDetail{
				ProductID: insufficientErr.Ref.ProductID,
				Color:     insufficientErr.Ref.Color,
				Size:      insufficientErr.Ref.Size,
				Requested: insufficientErr.Requested,
				Available: insufficientErr.Available,
			},
		})
		return
	}

	var variantErr *stock.VariantNotFoundError
	if errors.As(err, &variantErr) {
		writeError(w, http.StatusUnprocessableEntity, variantErr.Error())
		return
	}

	var transitionErr *order.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		writeError(w, http.StatusUnprocessableEntity, transitionErr.Error())
		return
	}

	var selectionErr *sale.ItemNotInOrderError
	if errors.As(err, &selectionErr) {
		writeError(w, http.StatusUnprocessableEntity, selectionErr.Error())
		return
	}

	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
