//go:build integration

package integration

import (
	"net/http"
	"testing"
)

// Effective-stock tests use p1 Vermelho/M (seeded at 3), untouched by the
// other suites.

func vestidoRedM(qty int) itemPayload {
	return itemPayload{ProductID: "p1", Color: "Vermelho", Size: "M", Quantity: qty, Price: "149.90", CostPrice: "80.00"}
}

func effectiveStock(t *testing.T, req effectiveStockRequest) int {
	t.Helper()

	resp := doPost(t, "/api/stock/effective", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("effective stock: expected 200, got %d", resp.StatusCode)
	}
	return decodeJSON[effectiveStockResponse](t, resp).Available
}

func TestEffectiveStock_DraftAware(t *testing.T) {
	// Committed stock before anything holds it.
	got := effectiveStock(t, effectiveStockRequest{ProductID: "p1", Color: "Vermelho", Size: "M"})
	if got != 3 {
		t.Fatalf("initial effective stock: got %d, want 3", got)
	}

	// An order takes 2; committed drops to 1.
	resp := doPostWithAuth(t, "/api/orders", createOrderRequest{
		CustomerID: "c1",
		Items:      []itemPayload{vestidoRedM(2)},
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d", resp.StatusCode)
	}
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	// A fresh draft sees only the committed 1.
	got = effectiveStock(t, effectiveStockRequest{ProductID: "p1", Color: "Vermelho", Size: "M"})
	if got != 1 {
		t.Errorf("fresh draft: got %d, want 1", got)
	}

	// The holding order's own editor still sees 3: its 2 units plus the
	// committed 1.
	got = effectiveStock(t, effectiveStockRequest{
		ProductID: "p1", Color: "Vermelho", Size: "M",
		Draft: []itemPayload{vestidoRedM(2)},
	})
	if got != 3 {
		t.Errorf("own draft: got %d, want 3", got)
	}

	// A second order cannot take 2 out of the committed 1.
	resp = doPostWithAuth(t, "/api/orders", createOrderRequest{
		CustomerID: "c2",
		Items:      []itemPayload{vestidoRedM(2)},
	}, testAPIKey)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second order: expected 409, got %d", resp.StatusCode)
	}
	errResp := decodeJSON[errorResponse](t, resp)
	resp.Body.Close()

	if errResp.Stock == nil || errResp.Stock.Available != 1 {
		t.Errorf("conflict detail: got %+v, want available=1", errResp.Stock)
	}

	// Cleanup: release the reservation.
	resp = doDeleteWithAuth(t, "/api/orders/"+o.ID, testAPIKey)
	resp.Body.Close()

	got = effectiveStock(t, effectiveStockRequest{ProductID: "p1", Color: "Vermelho", Size: "M"})
	if got != 3 {
		t.Errorf("after cleanup: got %d, want 3", got)
	}
}

func TestEffectiveStock_UnknownVariant(t *testing.T) {
	resp := doPost(t, "/api/stock/effective", effectiveStockRequest{
		ProductID: "p1", Color: "Roxo", Size: "M",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}
