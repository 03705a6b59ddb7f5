package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/pricing"
	"github.com/xenking/storefront-pricing/internal/domain/product"
	"github.com/xenking/storefront-pricing/internal/domain/redemption"
)

// Quoter prices carts.
type Quoter interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (*pricing.Result, error)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID     string
	Role       discount.Role
	Items      []pricing.Item
	CouponCode string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Products []product.Product
}

// Service encapsulates order placement business logic.
type Service struct {
	quoter Quoter
	store  Store
}

// NewService creates an order Service.
func NewService(quoter Quoter, store Store) *Service {
	return &Service{
		quoter: quoter,
		store:  store,
	}
}

// PlaceOrder prices the cart, then persists the order together with the
// coupon redemption. Pricing never records a redemption by itself, so a
// coupon counts against its limits only once the order is committed.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	res, err := s.quoter.Quote(ctx, pricing.QuoteRequest{
		UserID:     req.UserID,
		Role:       req.Role,
		Items:      req.Items,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		return nil, errors.Wrap(err, "price cart")
	}

	o := newOrder(req, res)

	var r *redemption.Redemption
	if res.Coupon != nil {
		r = redemption.New(res.Coupon.CouponID, req.UserID, o.ID, o.CreatedAt)
	}
	if err := s.store.Commit(ctx, o, r); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Stringer("total", o.Total),
		zap.String("coupon", o.CouponCode),
	)
	return &PlaceOrderResult{
		Order:    o,
		Products: res.Products,
	}, nil
}

func newOrder(req PlaceOrderRequest, res *pricing.Result) *Order {
	lines := make([]Line, len(res.Lines))
	for i, l := range res.Lines {
		lines[i] = Line{
			ProductID:      l.Item.ProductID,
			VariantID:      l.Item.VariantID,
			Quantity:       l.Item.Quantity,
			UnitPrice:      l.Item.UnitPrice,
			EffectivePrice: l.EffectiveUnitPrice,
			LineTotal:      l.LineTotal,
			RuleID:         l.RuleID,
		}
	}
	o := &Order{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		Role:           req.Role,
		Lines:          lines,
		GrossTotal:     res.GrossTotal,
		RuleDiscount:   res.RuleDiscount,
		CouponDiscount: res.CouponDiscount,
		Total:          res.GrandTotal,
		CreatedAt:      res.PricedAt,
	}
	if res.Coupon != nil {
		o.CouponID = res.Coupon.CouponID
		o.CouponCode = res.Coupon.Code
	}
	return o
}
