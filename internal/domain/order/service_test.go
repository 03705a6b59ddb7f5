package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/pricing"
	"github.com/xenking/storefront-pricing/internal/domain/product"
	"github.com/xenking/storefront-pricing/internal/domain/redemption"
)

// --- Mock implementations ---

type mockQuoter struct {
	result  *pricing.Result
	err     error
	lastReq pricing.QuoteRequest
}

func (m *mockQuoter) Quote(_ context.Context, req pricing.QuoteRequest) (*pricing.Result, error) {
	m.lastReq = req
	return m.result, m.err
}

type mockStore struct {
	order      *Order
	redemption *redemption.Redemption
	err        error
}

func (m *mockStore) Commit(_ context.Context, o *Order, r *redemption.Redemption) error {
	m.order = o
	m.redemption = r
	return m.err
}

// --- Helpers ---

var pricedAt = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func quoteWithCoupon(coupon *discount.CouponResult) *pricing.Result {
	q := &discount.Quote{
		Lines: []discount.PricedLine{{
			Item: discount.LineItem{ProductID: "p1", VariantID: "v1", Quantity: 2, UnitPrice: d("500")},
			LineResult: discount.LineResult{
				EffectiveUnitPrice: d("450"),
				RuleID:             "r1",
				Percentage:         d("10"),
			},
			Gross:     d("1000"),
			LineTotal: d("900"),
			Discount:  d("100"),
		}},
		GrossTotal:     d("1000"),
		Subtotal:       d("900"),
		RuleDiscount:   d("100"),
		CouponDiscount: decimal.Zero,
		GrandTotal:     d("900"),
	}
	if coupon != nil {
		q.Coupon = coupon
		q.CouponDiscount = coupon.Amount
		q.GrandTotal = q.Subtotal.Sub(coupon.Amount)
	}
	return &pricing.Result{
		Quote:    q,
		Products: []product.Product{{ID: "p1", Name: "Widget", Price: d("500")}},
		PricedAt: pricedAt,
	}
}

func request(code string) PlaceOrderRequest {
	return PlaceOrderRequest{
		UserID:     "u1",
		Role:       discount.RoleCustomer,
		Items:      []pricing.Item{{ProductID: "p1", VariantID: "v1", Quantity: 2}},
		CouponCode: code,
	}
}

// --- Tests ---

func TestPlaceOrder_NoCoupon(t *testing.T) {
	q := &mockQuoter{result: quoteWithCoupon(nil)}
	store := &mockStore{}
	svc := NewService(q, store)

	result, err := svc.PlaceOrder(context.Background(), request(""))
	require.NoError(t, err)

	o := result.Order
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "u1", o.UserID)
	assert.True(t, d("900").Equal(o.Total))
	assert.True(t, d("100").Equal(o.RuleDiscount))
	assert.True(t, decimal.Zero.Equal(o.CouponDiscount))
	assert.Empty(t, o.CouponCode)
	assert.Equal(t, pricedAt, o.CreatedAt)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "v1", o.Lines[0].VariantID)
	assert.Equal(t, "r1", o.Lines[0].RuleID)
	assert.True(t, d("450").Equal(o.Lines[0].EffectivePrice))
	assert.Len(t, result.Products, 1)

	assert.Same(t, o, store.order)
	assert.Nil(t, store.redemption, "no redemption without a coupon")
	assert.Equal(t, "u1", q.lastReq.UserID)
}

func TestPlaceOrder_WithCoupon(t *testing.T) {
	q := &mockQuoter{result: quoteWithCoupon(&discount.CouponResult{
		CouponID: "c1",
		Code:     "SAVE10",
		Type:     discount.CouponPercentage,
		Amount:   d("90"),
	})}
	store := &mockStore{}
	svc := NewService(q, store)

	result, err := svc.PlaceOrder(context.Background(), request("SAVE10"))
	require.NoError(t, err)
	assert.True(t, d("810").Equal(result.Order.Total))
	assert.True(t, d("90").Equal(result.Order.CouponDiscount))
	assert.Equal(t, "SAVE10", result.Order.CouponCode)
	assert.Equal(t, "SAVE10", q.lastReq.CouponCode)

	require.NotNil(t, store.redemption)
	assert.NotEmpty(t, store.redemption.ID)
	assert.Equal(t, "c1", store.redemption.CouponID)
	assert.Equal(t, "u1", store.redemption.UserID)
	assert.Equal(t, result.Order.ID, store.redemption.OrderID)
	assert.Equal(t, pricedAt, store.redemption.RedeemedAt)
}

func TestPlaceOrder_PricingError(t *testing.T) {
	store := &mockStore{}
	svc := NewService(&mockQuoter{err: pricing.ErrEmptyItems}, store)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1", Role: discount.RoleCustomer})
	require.ErrorIs(t, err, pricing.ErrEmptyItems)
	assert.Nil(t, store.order)
}

func TestPlaceOrder_CouponRejected(t *testing.T) {
	svc := NewService(&mockQuoter{err: discount.ErrExpired}, &mockStore{})

	_, err := svc.PlaceOrder(context.Background(), request("OLD"))
	var rejected *discount.ResolutionError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, discount.ReasonExpired, rejected.Reason)
}

func TestPlaceOrder_LostRedemptionRace(t *testing.T) {
	q := &mockQuoter{result: quoteWithCoupon(&discount.CouponResult{CouponID: "c1", Code: "LAST", Amount: d("10")})}
	store := &mockStore{err: &discount.ResolutionError{Reason: discount.ReasonUsageLimitExceeded, Code: "LAST"}}
	svc := NewService(q, store)

	_, err := svc.PlaceOrder(context.Background(), request("LAST"))
	require.ErrorIs(t, err, discount.ErrUsageLimitExceeded)
}

func TestPlaceOrder_CommitError(t *testing.T) {
	svc := NewService(
		&mockQuoter{result: quoteWithCoupon(nil)},
		&mockStore{err: errors.New("db write failed")},
	)

	_, err := svc.PlaceOrder(context.Background(), request(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}
