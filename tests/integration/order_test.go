//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Order tests work exclusively against product p2 (Calça Jeans, Azul 38=4,
// Azul 40=2) and leave its stock where they found it.

func jeans38(qty int) itemPayload {
	return itemPayload{ProductID: "p2", Color: "Azul", Size: "38", Quantity: qty, Price: "189.90", CostPrice: "95.00"}
}

func jeans40(qty int) itemPayload {
	return itemPayload{ProductID: "p2", Color: "Azul", Size: "40", Quantity: qty, Price: "189.90", CostPrice: "95.00"}
}

func TestCreateOrder_NoAuth(t *testing.T) {
	resp := doPost(t, "/api/orders", createOrderRequest{
		CustomerID: "c1",
		Items:      []itemPayload{jeans38(1)},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_InvalidKey(t *testing.T) {
	resp := doPostWithAuth(t, "/api/orders", createOrderRequest{
		CustomerID: "c1",
		Items:      []itemPayload{jeans38(1)},
	}, "wrong-key")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	resp := doPostWithAuth(t, "/api/orders", createOrderRequest{CustomerID: "c1"}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_UnknownVariant(t *testing.T) {
	resp := doPostWithAuth(t, "/api/orders", createOrderRequest{
		CustomerID: "c1",
		Items: []itemPayload{
			{ProductID: "p2", Color: "Verde", Size: "38", Quantity: 1, Price: "189.90"},
		},
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	resp := doPostWithAuth(t, "/api/orders", createOrderRequest{
		CustomerID: "c1",
		Items:      []itemPayload{jeans38(99)},
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Stock == nil {
		t.Fatal("expected stock detail in error response")
	}
	if errResp.Stock.Requested != 99 {
		t.Errorf("requested: got %d, want 99", errResp.Stock.Requested)
	}
	if errResp.Stock.Available != 4 {
		t.Errorf("available: got %d, want 4", errResp.Stock.Available)
	}
}

func TestOrderLifecycle(t *testing.T) {
	// Create: reserves 2×38.
	resp := doPostWithAuth(t, "/api/orders", createOrderRequest{
		CustomerID: "c1",
		Items:      []itemPayload{jeans38(2)},
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if !uuidPattern.MatchString(o.ID) {
		t.Errorf("order ID %q is not a valid UUID", o.ID)
	}
	if o.Status != "pending" {
		t.Errorf("status: got %q, want %q", o.Status, "pending")
	}
	if o.OrderNumber <= 0 {
		t.Errorf("order number: got %d, want > 0", o.OrderNumber)
	}

	// The reservation is visible in the catalog.
	if got := variantQuantity(t, "p2", "Azul", "38"); got != 2 {
		t.Errorf("reserved stock: got %d, want 2", got)
	}

	// Move through holding states; stock stays reserved.
	for _, status := range []string{"shipped", "delivered"} {
		resp = doPostWithAuth(t, "/api/orders/"+o.ID+"/status", changeStatusRequest{Status: status}, testAPIKey)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %s: expected 200, got %d", status, resp.StatusCode)
		}
		resp.Body.Close()
	}
	if got := variantQuantity(t, "p2", "Azul", "38"); got != 2 {
		t.Errorf("stock after holding moves: got %d, want 2", got)
	}

	// Cancel: the reservation returns.
	resp = doPostWithAuth(t, "/api/orders/"+o.ID+"/status", changeStatusRequest{Status: "cancelled"}, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if got := variantQuantity(t, "p2", "Azul", "38"); got != 4 {
		t.Errorf("stock after cancel: got %d, want 4", got)
	}

	// History recorded every step.
	resp = doGetWithAuth(t, "/api/orders/"+o.ID+"/history", testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", resp.StatusCode)
	}
	history := decodeJSON[[]historyEntry](t, resp)
	resp.Body.Close()

	want := []string{"pending", "shipped", "delivered", "cancelled"}
	if len(history) != len(want) {
		t.Fatalf("history length: got %d, want %d", len(history), len(want))
	}
	for i, status := range want {
		if history[i].Status != status {
			t.Errorf("history[%d]: got %q, want %q", i, history[i].Status, status)
		}
	}
}

func TestUpdateOrderItems_Atomic(t *testing.T) {
	resp := doPostWithAuth(t, "/api/orders", createOrderRequest{
		CustomerID: "c1",
		Items:      []itemPayload{jeans38(1)},
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	// Swap to 2×40: the 38 goes back, both 40s get held.
	resp = doPutWithAuth(t, "/api/orders/"+o.ID+"/items", map[string]any{
		"items": []itemPayload{jeans40(2)},
	}, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update items: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if got := variantQuantity(t, "p2", "Azul", "38"); got != 4 {
		t.Errorf("38 after swap: got %d, want 4", got)
	}
	if got := variantQuantity(t, "p2", "Azul", "40"); got != 0 {
		t.Errorf("40 after swap: got %d, want 0", got)
	}

	// An impossible swap fails and leaves the current reservation intact.
	resp = doPutWithAuth(t, "/api/orders/"+o.ID+"/items", map[string]any{
		"items": []itemPayload{jeans38(99)},
	}, testAPIKey)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("bad update: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if got := variantQuantity(t, "p2", "Azul", "40"); got != 0 {
		t.Errorf("40 after failed swap: got %d, want 0", got)
	}

	// Delete releases everything.
	resp = doDeleteWithAuth(t, "/api/orders/"+o.ID, testAPIKey)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if got := variantQuantity(t, "p2", "Azul", "40"); got != 2 {
		t.Errorf("40 after delete: got %d, want 2", got)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGetWithAuth(t, "/api/orders/00000000-0000-0000-0000-000000000000", testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// variantQuantity reads the catalog and returns the live quantity of one
// variant.
func variantQuantity(t *testing.T, productID, color, size string) int {
	t.Helper()

	resp := doGet(t, "/api/products/"+productID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get product %s: expected 200, got %d", productID, resp.StatusCode)
	}
	p := decodeJSON[productResponse](t, resp)
	for _, v := range p.Variants {
		if v.Color == color && v.Size == size {
			return v.Quantity
		}
	}
	t.Fatalf("variant %s/%s/%s not found", productID, color, size)
	return 0
}
