//go:build integration

package integration

import (
	"net/http"
	"testing"
)

// Sale tests consume from p3 (Blusa de Seda, Branco U=5) directly and run a
// conversion against p2 stock left at 4/2 by the order tests.

func TestCreateSale_Direct(t *testing.T) {
	resp := doPostWithAuth(t, "/api/sales", createSaleRequest{
		CustomerID: "c1",
		Items: []itemPayload{
			{ProductID: "p3", Color: "Branco", Size: "U", Quantity: 2, Price: "99.90", CostPrice: "45.00"},
		},
		PaymentMethod: "pix",
		PaymentStatus: "paid",
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	sl := decodeJSON[saleResponse](t, resp)
	resp.Body.Close()

	if sl.MalinhaID != "" {
		t.Errorf("direct sale should have no malinha: got %q", sl.MalinhaID)
	}
	if sl.TotalValue != "199.8" {
		t.Errorf("total: got %q, want %q", sl.TotalValue, "199.8")
	}
	if sl.PaymentStatus != "paid" {
		t.Errorf("payment status: got %q, want %q", sl.PaymentStatus, "paid")
	}

	// Stock is permanently gone.
	if got := variantQuantity(t, "p3", "Branco", "U"); got != 3 {
		t.Errorf("stock after sale: got %d, want 3", got)
	}
}

func TestCreateSale_NoCustomer(t *testing.T) {
	resp := doPostWithAuth(t, "/api/sales", createSaleRequest{
		Items: []itemPayload{
			{ProductID: "p3", Color: "Branco", Size: "U", Quantity: 1, Price: "99.90"},
		},
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCreateSale_UnknownCustomer(t *testing.T) {
	resp := doPostWithAuth(t, "/api/sales", createSaleRequest{
		CustomerID: "ghost",
		Items: []itemPayload{
			{ProductID: "p3", Color: "Branco", Size: "U", Quantity: 1, Price: "99.90"},
		},
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestConvertOrder(t *testing.T) {
	// The malinha holds 2×38 and 1×40 of the jeans.
	resp := doPostWithAuth(t, "/api/orders", createOrderRequest{
		CustomerID: "c2",
		Items:      []itemPayload{jeans38(2), jeans40(1)},
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d", resp.StatusCode)
	}
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	resp = doPostWithAuth(t, "/api/orders/"+o.ID+"/status", changeStatusRequest{Status: "delivered"}, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deliver: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Customer keeps one pair of 38s; everything else goes back.
	resp = doPostWithAuth(t, "/api/orders/"+o.ID+"/convert", convertRequest{
		Kept: []itemPayload{{ProductID: "p2", Color: "Azul", Size: "38", Quantity: 1}},
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("convert: expected 201, got %d", resp.StatusCode)
	}
	sl := decodeJSON[saleResponse](t, resp)
	resp.Body.Close()

	if sl.MalinhaID != o.ID {
		t.Errorf("malinha id: got %q, want %q", sl.MalinhaID, o.ID)
	}
	if sl.CustomerID != "c2" {
		t.Errorf("customer: got %q, want %q", sl.CustomerID, "c2")
	}
	if len(sl.Items) != 1 || sl.Items[0].Quantity != 1 {
		t.Fatalf("sale items: got %+v, want one kept pair", sl.Items)
	}
	if sl.TotalValue != "189.9" {
		t.Errorf("total: got %q, want %q", sl.TotalValue, "189.9")
	}

	// Kept pair is sold, the rest is available again: 38 went 4→3, 40 is
	// back at 2.
	if got := variantQuantity(t, "p2", "Azul", "38"); got != 3 {
		t.Errorf("38 after conversion: got %d, want 3", got)
	}
	if got := variantQuantity(t, "p2", "Azul", "40"); got != 2 {
		t.Errorf("40 after conversion: got %d, want 2", got)
	}

	// The order is completed and flagged as converted.
	resp = doGetWithAuth(t, "/api/orders/"+o.ID, testAPIKey)
	got := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if got.Status != "completed" {
		t.Errorf("order status: got %q, want %q", got.Status, "completed")
	}
	if !got.ConvertedToSale {
		t.Error("order should be marked converted")
	}

	// Converting twice is rejected.
	resp = doPostWithAuth(t, "/api/orders/"+o.ID+"/convert", convertRequest{
		Kept: []itemPayload{{ProductID: "p2", Color: "Azul", Size: "38", Quantity: 1}},
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("second convert: expected 422, got %d", resp.StatusCode)
	}
}

func TestConvertOrder_SelectionNotInOrder(t *testing.T) {
	resp := doPostWithAuth(t, "/api/orders", createOrderRequest{
		CustomerID: "c1",
		Items:      []itemPayload{jeans40(1)},
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d", resp.StatusCode)
	}
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	resp = doPostWithAuth(t, "/api/orders/"+o.ID+"/convert", convertRequest{
		Kept: []itemPayload{{ProductID: "p2", Color: "Azul", Size: "40", Quantity: 5}},
	}, testAPIKey)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Cleanup: release the reservation.
	resp = doDeleteWithAuth(t, "/api/orders/"+o.ID, testAPIKey)
	resp.Body.Close()
}

func TestListSales(t *testing.T) {
	resp := doGetWithAuth(t, "/api/sales", testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	sales := decodeJSON[[]saleResponse](t, resp)
	if len(sales) < 2 {
		t.Fatalf("expected at least 2 sales (direct + conversion), got %d", len(sales))
	}
}
