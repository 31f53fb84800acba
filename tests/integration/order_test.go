//go:build integration

package integration

import (
	"net/http"
	"testing"
)

const (
	urbanRunnerID = "prd-urban-runner"
	trailBlazerID = "prd-trail-blazer"
)

func TestHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		resp := doRequest(t, http.MethodGet, path, "", nil)
		body := decodeJSON[healthResponse](t, resp)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d, want 200", path, resp.StatusCode)
		}
		if body.Status != "ok" {
			t.Errorf("%s: status field %q, want ok", path, body.Status)
		}
	}
}

func TestListProducts_HidesInactive(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/products", "", nil)
	defer resp.Body.Close()

	products := decodeJSON[[]productPayload](t, resp)
	for _, p := range products {
		if p.ID == "prd-retro-court" {
			t.Errorf("inactive product %s visible in public listing", p.ID)
		}
	}
}

func TestPlaceOrder_Unauthenticated(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/api/orders", "", placeOrderPayload{
		Items:           []orderItemPayload{{ProductID: urbanRunnerID, SKU: "UR-40-BLK", Quantity: 1}},
		ShippingAddress: validAddress(),
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
}

func TestPlaceOrder_DecrementsStock(t *testing.T) {
	token := tokenFor(t, clientID, "client")
	before := getVariantStock(t, urbanRunnerID, "UR-40-BLK")

	resp := doRequest(t, http.MethodPost, "/api/orders", token, placeOrderPayload{
		Items:           []orderItemPayload{{ProductID: urbanRunnerID, SKU: "UR-40-BLK", Quantity: 2}},
		ShippingAddress: validAddress(),
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d, want 201", resp.StatusCode)
	}

	env := decodeJSON[placedEnvelope](t, resp)
	if env.Message == "" {
		t.Error("creation envelope missing message field")
	}
	o := env.Order
	if o.Status != "confirmed" {
		t.Errorf("order status %q, want confirmed", o.Status)
	}
	if o.PaymentMethod != "cod" {
		t.Errorf("payment method %q, want cod", o.PaymentMethod)
	}
	// 2 × 89.90 + 5.00 shipping + 8% tax.
	if o.Subtotal.String() != "179.8" && o.Subtotal.String() != "179.80" {
		t.Errorf("subtotal %s, want 179.80", o.Subtotal)
	}
	if o.Total.String() != "199.18" {
		t.Errorf("total %s, want 199.18", o.Total)
	}
	if len(o.History) != 1 {
		t.Errorf("history length %d, want 1", len(o.History))
	}

	after := getVariantStock(t, urbanRunnerID, "UR-40-BLK")
	if after != before-2 {
		t.Errorf("stock %d after order, want %d", after, before-2)
	}
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	token := tokenFor(t, clientID, "client")
	before := getVariantStock(t, urbanRunnerID, "UR-42-BLK")

	resp := doRequest(t, http.MethodPost, "/api/orders", token, placeOrderPayload{
		Items:           []orderItemPayload{{ProductID: urbanRunnerID, SKU: "UR-42-BLK", Quantity: before + 1}},
		ShippingAddress: validAddress(),
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Message == "" {
		t.Error("expected error message in response body")
	}

	if after := getVariantStock(t, urbanRunnerID, "UR-42-BLK"); after != before {
		t.Errorf("stock changed from %d to %d on rejected order", before, after)
	}
}

func TestPlaceOrder_MultiSellerRejectedPartially(t *testing.T) {
	// One valid line plus one out-of-stock line: nothing may be reserved.
	token := tokenFor(t, clientID, "client")
	beforeGreen := getVariantStock(t, trailBlazerID, "TB-41-GRN")

	resp := doRequest(t, http.MethodPost, "/api/orders", token, placeOrderPayload{
		Items: []orderItemPayload{
			{ProductID: trailBlazerID, SKU: "TB-41-GRN", Quantity: 1},
			{ProductID: urbanRunnerID, SKU: "UR-42-WHT", Quantity: 1}, // stock 0
		},
		ShippingAddress: validAddress(),
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}

	if after := getVariantStock(t, trailBlazerID, "TB-41-GRN"); after != beforeGreen {
		t.Errorf("valid line reserved despite rejected order: stock %d, want %d", after, beforeGreen)
	}
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	token := tokenFor(t, clientID, "client")
	before := getVariantStock(t, urbanRunnerID, "UR-40-BLK")

	resp := doRequest(t, http.MethodPost, "/api/orders", token, placeOrderPayload{
		Items:           []orderItemPayload{{ProductID: urbanRunnerID, SKU: "UR-40-BLK", Quantity: 3}},
		ShippingAddress: validAddress(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: status %d", resp.StatusCode)
	}
	o := decodeJSON[placedEnvelope](t, resp).Order
	resp.Body.Close()

	if mid := getVariantStock(t, urbanRunnerID, "UR-40-BLK"); mid != before-3 {
		t.Fatalf("stock %d after order, want %d", mid, before-3)
	}

	resp = doRequest(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", token, map[string]string{
		"reason": "changed my mind",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: status %d, want 200", resp.StatusCode)
	}

	cancelled := decodeJSON[orderPayload](t, resp)
	if cancelled.Status != "cancelled" {
		t.Errorf("status %q, want cancelled", cancelled.Status)
	}
	if cancelled.CancelReason != "changed my mind" {
		t.Errorf("cancel reason %q", cancelled.CancelReason)
	}

	if after := getVariantStock(t, urbanRunnerID, "UR-40-BLK"); after != before {
		t.Errorf("stock %d after cancel, want %d restored", after, before)
	}

	// Cancelling again must fail and must not restock twice.
	resp2 := doRequest(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", token, nil)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("second cancel: status %d, want 400", resp2.StatusCode)
	}
	if after := getVariantStock(t, urbanRunnerID, "UR-40-BLK"); after != before {
		t.Errorf("stock %d after double cancel, want %d", after, before)
	}
}

func TestOrderLifecycle_RoleAccess(t *testing.T) {
	clientToken := tokenFor(t, clientID, "client")
	sellerToken := tokenFor(t, partnerID, "partner")
	otherSeller := tokenFor(t, partner2ID, "partner")

	resp := doRequest(t, http.MethodPost, "/api/orders", clientToken, placeOrderPayload{
		Items:           []orderItemPayload{{ProductID: urbanRunnerID, SKU: "UR-40-BLK", Quantity: 1}},
		ShippingAddress: validAddress(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: status %d", resp.StatusCode)
	}
	o := decodeJSON[placedEnvelope](t, resp).Order
	resp.Body.Close()

	// The selling partner advances the order; a foreign partner may not.
	resp = doRequest(t, http.MethodPatch, "/api/orders/"+o.ID+"/status", otherSeller, map[string]string{
		"status": "processing",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign partner status update: status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRequest(t, http.MethodPatch, "/api/orders/"+o.ID+"/status", sellerToken, map[string]string{
		"status": "processing",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("seller status update: status %d, want 200", resp.StatusCode)
	}
	updated := decodeJSON[orderPayload](t, resp)
	resp.Body.Close()
	if updated.Status != "processing" {
		t.Errorf("status %q, want processing", updated.Status)
	}
	if len(updated.History) != 2 {
		t.Errorf("history length %d, want 2", len(updated.History))
	}

	// Skipping a step in the lifecycle is rejected.
	resp = doRequest(t, http.MethodPatch, "/api/orders/"+o.ID+"/status", sellerToken, map[string]string{
		"status": "delivered",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("skip to delivered: status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	// Clients cannot drive the status machine.
	resp = doRequest(t, http.MethodPatch, "/api/orders/"+o.ID+"/status", clientToken, map[string]string{
		"status": "shipped",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("client status update: status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	// Processing orders can no longer be cancelled by the customer.
	resp = doRequest(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", clientToken, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("cancel processing order: status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	// The foreign partner cannot even read the order.
	resp = doRequest(t, http.MethodGet, "/api/orders/"+o.ID, otherSeller, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign partner read: status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestOrderDelivered_MarksCODPaid(t *testing.T) {
	clientToken := tokenFor(t, clientID, "client")
	adminToken := tokenFor(t, adminID, "admin")

	resp := doRequest(t, http.MethodPost, "/api/orders", clientToken, placeOrderPayload{
		Items:           []orderItemPayload{{ProductID: trailBlazerID, SKU: "TB-41-GRN", Quantity: 1}},
		ShippingAddress: validAddress(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: status %d", resp.StatusCode)
	}
	o := decodeJSON[placedEnvelope](t, resp).Order
	resp.Body.Close()

	var last orderPayload
	for _, status := range []string{"processing", "shipped", "delivered"} {
		resp = doRequest(t, http.MethodPatch, "/api/orders/"+o.ID+"/status", adminToken, map[string]string{
			"status": status,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("advance to %s: status %d", status, resp.StatusCode)
		}
		last = decodeJSON[orderPayload](t, resp)
		resp.Body.Close()
	}

	if last.Status != "delivered" {
		t.Errorf("status %q, want delivered", last.Status)
	}
	if last.PaymentStatus != "paid" {
		t.Errorf("payment status %q, want paid for delivered COD order", last.PaymentStatus)
	}
}

func TestListOrders_ScopedToCaller(t *testing.T) {
	clientToken := tokenFor(t, clientID, "client")
	otherSeller := tokenFor(t, partner2ID, "partner")

	resp := doRequest(t, http.MethodGet, "/api/orders", clientToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list orders: status %d", resp.StatusCode)
	}
	mine := decodeJSON[[]orderPayload](t, resp)
	resp.Body.Close()

	for _, o := range mine {
		if o.UserID != clientID {
			t.Errorf("client listing contains order %s owned by %s", o.ID, o.UserID)
		}
	}

	resp = doRequest(t, http.MethodGet, "/api/orders", otherSeller, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("partner list orders: status %d", resp.StatusCode)
	}
	sellerOrders := decodeJSON[[]orderPayload](t, resp)
	resp.Body.Close()

	for _, o := range sellerOrders {
		found := false
		for _, l := range o.Lines {
			if l.SellerID == partner2ID {
				found = true
			}
		}
		if !found {
			t.Errorf("partner listing contains order %s with no line for %s", o.ID, partner2ID)
		}
	}
}

func TestCartFlow(t *testing.T) {
	token := tokenFor(t, clientID, "client")

	resp := doRequest(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"productId": trailBlazerID,
		"sku":       "TB-41-GRN",
		"quantity":  2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add to cart: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	before := getVariantStock(t, trailBlazerID, "TB-41-GRN")

	resp = doRequest(t, http.MethodPost, "/api/orders", token, placeOrderPayload{
		Items:           []orderItemPayload{{ProductID: trailBlazerID, SKU: "TB-41-GRN", Quantity: 2}},
		ShippingAddress: validAddress(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("checkout: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	if after := getVariantStock(t, trailBlazerID, "TB-41-GRN"); after != before-2 {
		t.Errorf("stock %d, want %d", after, before-2)
	}

	// Successful checkout clears the cart.
	resp = doRequest(t, http.MethodGet, "/api/cart", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get cart: status %d", resp.StatusCode)
	}
	cartBody := decodeJSON[struct {
		Items []orderItemPayload `json:"items"`
	}](t, resp)
	resp.Body.Close()

	if len(cartBody.Items) != 0 {
		t.Errorf("cart has %d items after checkout, want 0", len(cartBody.Items))
	}
}
