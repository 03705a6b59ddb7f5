package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-pricing/internal/domain/auth"
	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/order"
	"github.com/xenking/storefront-pricing/internal/domain/pricing"
	"github.com/xenking/storefront-pricing/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
	err      error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, m.err
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(_ context.Context, _ []string) ([]product.Product, error) {
	return m.products, m.err
}

type mockPricer struct {
	result  *pricing.Result
	outcome *pricing.CouponOutcome
	err     error
	lastReq pricing.QuoteRequest
}

func (m *mockPricer) Quote(_ context.Context, req pricing.QuoteRequest) (*pricing.Result, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *mockPricer) ValidateCoupon(_ context.Context, req pricing.QuoteRequest) (*pricing.CouponOutcome, error) {
	m.lastReq = req
	return m.outcome, m.err
}

type mockOrderPlacer struct {
	result  *order.PlaceOrderResult
	err     error
	lastReq order.PlaceOrderRequest
}

func (m *mockOrderPlacer) PlaceOrder(_ context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error) {
	m.lastReq = req
	return m.result, m.err
}

type mockAPIKeyRepo struct {
	keys map[string]*auth.APIKeyInfo
	err  error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.keys[hash]
	if !ok {
		return nil, auth.ErrUnknownKey
	}
	return info, nil
}

// --- Helpers ---

var (
	pepper   = []byte("test-pepper")
	pricedAt = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
)

const (
	fullKey    = "storefront-key"
	pricingKey = "pricing-only-key"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func widget() product.Product {
	return product.Product{
		ID:         "p1",
		Name:       "Widget",
		Price:      d("10"),
		CategoryID: "c1",
		Category:   "Gadgets",
		Image:      product.Image{Thumbnail: "/img/w-thumb.jpg"},
		Variants: []product.Variant{
			{ID: "v1", SKU: "W-RED", Name: "Red", Price: decimal.NewNullDecimal(d("12.5"))},
		},
	}
}

type fixture struct {
	products *mockProductRepo
	pricer   *mockPricer
	orders   *mockOrderPlacer
	apikeys  *mockAPIKeyRepo
	mux      *http.ServeMux
}

func newFixture() *fixture {
	f := &fixture{
		products: &mockProductRepo{products: []product.Product{widget()}},
		pricer:   &mockPricer{},
		orders:   &mockOrderPlacer{},
		apikeys: &mockAPIKeyRepo{keys: map[string]*auth.APIKeyInfo{
			HashAPIKey(pepper, fullKey): {
				ID: "k1", KeyHash: HashAPIKey(pepper, fullKey), Name: "web",
				Scopes: []string{auth.ScopePricing, auth.ScopeOrders},
			},
			HashAPIKey(pepper, pricingKey): {
				ID: "k2", KeyHash: HashAPIKey(pepper, pricingKey), Name: "widget",
				Scopes: []string{auth.ScopePricing},
			},
		}},
		mux: http.NewServeMux(),
	}
	h := New(Config{ImageBaseURL: "https://cdn.example.com", APIKeyPepper: pepper},
		f.products, f.pricer, f.orders, f.apikeys)
	h.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, path, key, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func quoteResult() *pricing.Result {
	q := &discount.Quote{
		Lines: []discount.PricedLine{{
			Item: discount.LineItem{ProductID: "p1", VariantID: "v1", Quantity: 4, UnitPrice: d("12.5")},
			LineResult: discount.LineResult{
				EffectiveUnitPrice: d("11.25"),
				RuleID:             "r1",
				Percentage:         d("10"),
			},
			Gross:     d("50"),
			LineTotal: d("45"),
			Discount:  d("5"),
		}},
		GrossTotal:     d("50"),
		Subtotal:       d("45"),
		RuleDiscount:   d("5"),
		CouponDiscount: d("4.5"),
		GrandTotal:     d("40.5"),
		Coupon: &discount.CouponResult{
			CouponID: "c1", Code: "SAVE10", Type: discount.CouponPercentage,
			ScopedSubtotal: d("45"), Amount: d("4.5"),
		},
	}
	return &pricing.Result{Quote: q, Products: []product.Product{widget()}, PricedAt: pricedAt}
}

const cartBody = `{"userId":"u1","role":"customer","items":[{"productId":"p1","variantId":"v1","quantity":4}],"couponCode":"SAVE10"}`

// --- Tests ---

func TestListProducts(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/api/product", nil)
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0]["id"])
	assert.Equal(t, "10.00", out[0]["price"])
	assert.Equal(t, "Gadgets", out[0]["category"])

	img := out[0]["image"].(map[string]any)
	assert.Equal(t, "https://cdn.example.com/img/w-thumb.jpg", img["thumbnail"])

	variants := out[0]["variants"].([]any)
	require.Len(t, variants, 1)
	assert.Equal(t, "12.50", variants[0].(map[string]any)["price"])
}

func TestGetProduct(t *testing.T) {
	f := newFixture()

	w, out := f.do(t, http.MethodGet, "/api/product/p1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Widget", out["name"])

	w, out = f.do(t, http.MethodGet, "/api/product/nope", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(404), out["code"])
	assert.Equal(t, "product not found", out["message"])
}

func TestGetProduct_StoreError(t *testing.T) {
	f := newFixture()
	f.products.err = errors.New("connection reset")

	w, out := f.do(t, http.MethodGet, "/api/product/p1", "", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", out["message"])
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		key        string
		wantStatus int
	}{
		{name: "missing key", path: "/api/cart/price", key: "", wantStatus: http.StatusUnauthorized},
		{name: "unknown key", path: "/api/cart/price", key: "bogus", wantStatus: http.StatusUnauthorized},
		{name: "pricing scope on order", path: "/api/order", key: pricingKey, wantStatus: http.StatusForbidden},
		{name: "pricing scope on price", path: "/api/cart/price", key: pricingKey, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.pricer.result = quoteResult()
			w, _ := f.do(t, http.MethodPost, tt.path, tt.key, cartBody)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuth_StoreError(t *testing.T) {
	f := newFixture()
	f.apikeys.err = errors.New("db down")
	w, _ := f.do(t, http.MethodPost, "/api/cart/price", fullKey, cartBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPriceCart(t *testing.T) {
	f := newFixture()
	f.pricer.result = quoteResult()

	w, out := f.do(t, http.MethodPost, "/api/cart/price", fullKey, cartBody)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, pricing.QuoteRequest{
		UserID:     "u1",
		Role:       discount.RoleCustomer,
		Items:      []pricing.Item{{ProductID: "p1", VariantID: "v1", Quantity: 4}},
		CouponCode: "SAVE10",
	}, f.pricer.lastReq)

	assert.Equal(t, "50.00", out["grossTotal"])
	assert.Equal(t, "5.00", out["ruleDiscount"])
	assert.Equal(t, "45.00", out["subtotal"])
	assert.Equal(t, "4.50", out["couponDiscount"])
	assert.Equal(t, "40.50", out["total"])
	assert.Equal(t, "2025-06-15T12:00:00Z", out["pricedAt"])

	lines := out["lines"].([]any)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.Equal(t, "11.25", line["effectiveUnitPrice"])
	assert.Equal(t, "r1", line["ruleId"])
	assert.Equal(t, float64(4), line["quantity"])

	coupon := out["coupon"].(map[string]any)
	assert.Equal(t, "SAVE10", coupon["code"])
	assert.Equal(t, "percentage", coupon["type"])
	assert.Equal(t, "4.50", coupon["amount"])
}

func TestPriceCart_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantReason string
	}{
		{
			name:       "malformed body",
			body:       `{"userId":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing user",
			body:       `{"role":"customer","items":[{"productId":"p1","quantity":1}]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing product id",
			body:       `{"userId":"u1","role":"customer","items":[{"quantity":1}]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty items",
			body:       `{"userId":"u1","role":"customer","items":[]}`,
			err:        pricing.ErrEmptyItems,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid quantity",
			body:       cartBody,
			err:        &pricing.InvalidQuantityError{ProductID: "p1"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown role",
			body:       cartBody,
			err:        &pricing.InvalidRoleError{Role: "guest"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "product not found",
			body:       cartBody,
			err:        &pricing.ProductNotFoundError{ProductID: "p9"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "variant not found",
			body:       cartBody,
			err:        &pricing.VariantNotFoundError{ProductID: "p1", VariantID: "v9"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "coupon expired",
			body:       cartBody,
			err:        &discount.ResolutionError{Reason: discount.ReasonExpired, Code: "SAVE10"},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "expired",
		},
		{
			name:       "store failure",
			body:       cartBody,
			err:        errors.Wrap(errors.New("timeout"), "find rules"),
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.pricer.err = tt.err

			w, out := f.do(t, http.MethodPost, "/api/cart/price", fullKey, tt.body)
			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, float64(tt.wantStatus), out["code"])
			assert.NotEmpty(t, out["message"])
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, out["reason"])
			} else {
				assert.NotContains(t, out, "reason")
			}
		})
	}
}

func TestValidateCoupon(t *testing.T) {
	f := newFixture()
	res := quoteResult()
	f.pricer.outcome = &pricing.CouponOutcome{Valid: true, Discount: res.Coupon, Quote: res}

	w, out := f.do(t, http.MethodPost, "/api/coupon/validate", fullKey, cartBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, "4.50", out["discount"])
	assert.Equal(t, "40.50", out["total"])

	f.pricer.outcome = &pricing.CouponOutcome{
		Reason:  discount.ReasonMinCartValueNotMet,
		Message: "cart value is below the coupon minimum",
	}
	w, out = f.do(t, http.MethodPost, "/api/coupon/validate", fullKey, cartBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["valid"])
	assert.Equal(t, "min_cart_value_not_met", out["reason"])
	assert.Equal(t, "0.00", out["discount"])

	f.pricer.err = pricing.ErrCouponCodeRequired
	w, _ = f.do(t, http.MethodPost, "/api/coupon/validate", fullKey, cartBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture()
	f.orders.result = &order.PlaceOrderResult{
		Order: &order.Order{
			ID:     "o1",
			UserID: "u1",
			Role:   discount.RoleRetailer,
			Lines: []order.Line{{
				ProductID: "p1", VariantID: "v1", Quantity: 4,
				UnitPrice: d("12.5"), EffectivePrice: d("11.25"), LineTotal: d("45"), RuleID: "r1",
			}},
			GrossTotal:     d("50"),
			RuleDiscount:   d("5"),
			CouponDiscount: d("4.5"),
			Total:          d("40.5"),
			CouponID:       "c1",
			CouponCode:     "SAVE10",
			CreatedAt:      pricedAt,
		},
		Products: []product.Product{widget()},
	}

	body := strings.Replace(cartBody, `"customer"`, `"retailer"`, 1)
	w, out := f.do(t, http.MethodPost, "/api/order", fullKey, body)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, discount.RoleRetailer, f.orders.lastReq.Role)
	assert.Equal(t, "o1", out["id"])
	assert.Equal(t, "40.50", out["total"])
	assert.Equal(t, "9.50", out["discounts"])
	assert.Equal(t, "SAVE10", out["couponCode"])
	items := out["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "11.25", items[0].(map[string]any)["unitPrice"])
	assert.Len(t, out["products"], 1)
}

func TestPlaceOrder_CouponExhausted(t *testing.T) {
	f := newFixture()
	f.orders.err = errors.Wrap(&discount.ResolutionError{Reason: discount.ReasonUsageLimitExceeded}, "create order")

	w, out := f.do(t, http.MethodPost, "/api/order", fullKey, cartBody)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "usage_limit_exceeded", out["reason"])
	assert.Equal(t, "coupon usage limit reached", out["message"])
}

func TestPlaceOrder_EmptyItemsMessage(t *testing.T) {
	f := newFixture()
	f.orders.err = errors.Wrap(pricing.ErrEmptyItems, "price cart")

	w, out := f.do(t, http.MethodPost, "/api/order", fullKey, `{"userId":"u1","role":"customer"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "items required", out["message"])
}

func TestHashAPIKey(t *testing.T) {
	a := HashAPIKey(pepper, "k")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashAPIKey(pepper, "k"))
	assert.NotEqual(t, a, HashAPIKey([]byte("other"), "k"))
}
