//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestPriceCart_NoAuth(t *testing.T) {
	req := cartRequest{UserID: newUserID(t), Role: "customer", Items: []cartItemRequest{{ProductID: "tv-55", Quantity: 1}}}
	resp := doPost(t, "/api/cart/price", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPriceCart_RetailerBulkTier(t *testing.T) {
	req := cartRequest{
		UserID: newUserID(t),
		Role:   "retailer",
		Items:  []cartItemRequest{{ProductID: "tv-55", Quantity: 20}},
	}
	resp := doPostWithAuth(t, "/api/cart/price", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	q := decodeJSON[quoteResponse](t, resp)
	if len(q.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(q.Lines))
	}
	line := q.Lines[0]
	if line.RuleID != "tv-bulk" {
		t.Errorf("rule: got %q, want tv-bulk", line.RuleID)
	}
	// 1000.00 * 85% = 850.00
	if line.EffectiveUnitPrice != "850.00" {
		t.Errorf("effective unit price: got %q, want 850.00", line.EffectiveUnitPrice)
	}
	if q.GrossTotal != "20000.00" {
		t.Errorf("gross total: got %q, want 20000.00", q.GrossTotal)
	}
	if q.Total != "17000.00" {
		t.Errorf("total: got %q, want 17000.00", q.Total)
	}
}

func TestPriceCart_CustomerBelowBulk(t *testing.T) {
	// Customers never see bulk tiers; 20 units fall into the 5% standard tier.
	req := cartRequest{
		UserID: newUserID(t),
		Role:   "customer",
		Items:  []cartItemRequest{{ProductID: "tv-55", Quantity: 20}},
	}
	resp := doPostWithAuth(t, "/api/cart/price", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	q := decodeJSON[quoteResponse](t, resp)
	// acme-brand's 5-unit threshold outranks tv-bulk's 2-unit standard tier.
	if q.Lines[0].RuleID != "acme-brand" {
		t.Errorf("rule: got %q, want acme-brand", q.Lines[0].RuleID)
	}
	if q.Total != "18400.00" {
		t.Errorf("total: got %q, want 18400.00", q.Total)
	}
}

func TestPriceCart_Save10(t *testing.T) {
	req := cartRequest{
		UserID:     newUserID(t),
		Role:       "customer",
		Items:      []cartItemRequest{{ProductID: "tv-55", Quantity: 1}},
		CouponCode: "SAVE10",
	}
	resp := doPostWithAuth(t, "/api/cart/price", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	q := decodeJSON[quoteResponse](t, resp)
	if q.Coupon == nil {
		t.Fatal("coupon not applied")
	}
	if q.CouponDiscount != "100.00" {
		t.Errorf("coupon discount: got %q, want 100.00", q.CouponDiscount)
	}
	if q.Total != "900.00" {
		t.Errorf("total: got %q, want 900.00", q.Total)
	}
}

func TestPriceCart_CaseInsensitiveCode(t *testing.T) {
	req := cartRequest{
		UserID:     newUserID(t),
		Role:       "customer",
		Items:      []cartItemRequest{{ProductID: "kettle", Quantity: 2}},
		CouponCode: "save10",
	}
	resp := doPostWithAuth(t, "/api/cart/price", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	q := decodeJSON[quoteResponse](t, resp)
	// 2 * 39.50 = 79.00, 10% = 7.90
	if q.CouponDiscount != "7.90" {
		t.Errorf("coupon discount: got %q, want 7.90", q.CouponDiscount)
	}
}

func TestPriceCart_CouponRejected(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		items      []cartItemRequest
		code       string
		wantStatus int
		wantReason string
	}{
		{
			name:       "unknown code",
			role:       "customer",
			items:      []cartItemRequest{{ProductID: "kettle", Quantity: 1}},
			code:       "NOSUCHCODE",
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "not_found",
		},
		{
			name:       "below minimum cart value",
			role:       "customer",
			items:      []cartItemRequest{{ProductID: "headphones", Quantity: 1}},
			code:       "FLAT200",
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "min_cart_value_not_met",
		},
		{
			name:       "retailer coupon for customer",
			role:       "customer",
			items:      []cartItemRequest{{ProductID: "tv-55", Quantity: 3}},
			code:       "TRADE50",
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "role_not_eligible",
		},
		{
			name:       "category coupon without matching lines",
			role:       "customer",
			items:      []cartItemRequest{{ProductID: "kettle", Quantity: 1}},
			code:       "TECH15",
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "scope_mismatch",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := cartRequest{UserID: newUserID(t), Role: tt.role, Items: tt.items, CouponCode: tt.code}
			resp := doPostWithAuth(t, "/api/cart/price", req, testAPIKey)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			errResp := decodeJSON[errorResponse](t, resp)
			if errResp.Reason != tt.wantReason {
				t.Errorf("reason: got %q, want %q", errResp.Reason, tt.wantReason)
			}
			if errResp.Message == "" {
				t.Error("message is empty")
			}
		})
	}
}

func TestPriceCart_UnknownRole(t *testing.T) {
	req := cartRequest{UserID: newUserID(t), Role: "guest", Items: []cartItemRequest{{ProductID: "tv-55", Quantity: 1}}}
	resp := doPostWithAuth(t, "/api/cart/price", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestValidateCoupon(t *testing.T) {
	req := cartRequest{
		UserID:     newUserID(t),
		Role:       "customer",
		Items:      []cartItemRequest{{ProductID: "tv-55", Quantity: 1}},
		CouponCode: "FLAT200",
	}
	resp := doPostWithAuth(t, "/api/coupon/validate", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := decodeJSON[validateResponse](t, resp)
	if !v.Valid {
		t.Fatalf("expected valid coupon, got reason %q", v.Reason)
	}
	if v.Discount != "200.00" {
		t.Errorf("discount: got %q, want 200.00", v.Discount)
	}
	if v.Total != "800.00" {
		t.Errorf("total: got %q, want 800.00", v.Total)
	}
}

func TestValidateCoupon_Invalid(t *testing.T) {
	req := cartRequest{
		UserID:     newUserID(t),
		Role:       "customer",
		Items:      []cartItemRequest{{ProductID: "kettle", Quantity: 1}},
		CouponCode: "FLAT200",
	}
	resp := doPostWithAuth(t, "/api/coupon/validate", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := decodeJSON[validateResponse](t, resp)
	if v.Valid {
		t.Fatal("expected invalid coupon")
	}
	if v.Reason != "min_cart_value_not_met" {
		t.Errorf("reason: got %q, want min_cart_value_not_met", v.Reason)
	}
	if v.Discount != "0.00" {
		t.Errorf("discount: got %q, want 0.00", v.Discount)
	}
}
