// Package pricing assembles cart contexts from the catalog, the rule store
// and the redemption ledger, and runs them through the discount engine.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/product"
	"github.com/xenking/storefront-pricing/internal/domain/redemption"
)

// Sentinel errors for quote validation.
var (
	ErrEmptyItems         = errors.New("items required")
	ErrCouponCodeRequired = errors.New("coupon code required")
	ErrUserRequired       = errors.New("user id required")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// VariantNotFoundError indicates the product has no variant with the ID.
type VariantNotFoundError struct {
	ProductID string
	VariantID string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s not found for product %s", e.VariantID, e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidRoleError indicates an unknown buyer role.
type InvalidRoleError struct {
	Role string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("unknown role %q", e.Role)
}

// RuleStore returns active discount rules.
type RuleStore interface {
	FindActive(ctx context.Context, keys discount.ScopeKeys) ([]discount.Rule, error)
}

// CouponStore looks coupons up by code. It returns discount.ErrNotFound when
// no coupon has the code.
type CouponStore interface {
	FindByCode(ctx context.Context, code string) (*discount.Coupon, error)
}

// OrderHistory counts the orders a user has already placed.
type OrderHistory interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

// Item is a requested cart line.
type Item struct {
	ProductID string
	VariantID string
	Quantity  int
}

// QuoteRequest is the cart to price.
type QuoteRequest struct {
	UserID     string
	Role       discount.Role
	Items      []Item
	CouponCode string
}

// Result is a priced cart. Products is index-aligned with the request items.
type Result struct {
	*discount.Quote
	Products []product.Product
	PricedAt time.Time
}

// CouponOutcome is the answer to a coupon validation request.
type CouponOutcome struct {
	Valid    bool
	Reason   discount.Reason
	Message  string
	Discount *discount.CouponResult
	Quote    *Result
}

// Options configures optional Service dependencies.
type Options struct {
	Now            func() time.Time
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Service prices carts.
type Service struct {
	products product.Repository
	rules    RuleStore
	coupons  CouponStore
	usage    redemption.Counter
	history  OrderHistory
	now      func() time.Time

	tracer     trace.Tracer
	quotes     metric.Int64Counter
	rejections metric.Int64Counter
}

// NewService creates a pricing Service.
func NewService(
	products product.Repository,
	rules RuleStore,
	coupons CouponStore,
	usage redemption.Counter,
	history OrderHistory,
	opts Options,
) (*Service, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MeterProvider == nil {
		return nil, errors.New("meter provider is required")
	}
	if opts.TracerProvider == nil {
		return nil, errors.New("tracer provider is required")
	}

	meter := opts.MeterProvider.Meter("pricing")
	quotes, err := meter.Int64Counter("pricing.quotes",
		metric.WithDescription("Number of carts priced"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "quotes counter")
	}
	rejections, err := meter.Int64Counter("pricing.coupon.rejections",
		metric.WithDescription("Number of coupons rejected, by reason"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "rejections counter")
	}

	return &Service{
		products:   products,
		rules:      rules,
		coupons:    coupons,
		usage:      usage,
		history:    history,
		now:        opts.Now,
		tracer:     opts.TracerProvider.Tracer("pricing"),
		quotes:     quotes,
		rejections: rejections,
	}, nil
}

// Quote prices the cart. A rejected coupon fails the whole quote with a
// *discount.ResolutionError.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (_ *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "pricing.Quote",
		trace.WithAttributes(
			attribute.String("role", string(req.Role)),
			attribute.Int("items", len(req.Items)),
			attribute.Bool("coupon", req.CouponCode != ""),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if err := validate(req); err != nil {
		return nil, err
	}
	cart, products, err := s.assemble(ctx, req)
	if err != nil {
		return nil, err
	}

	rules, err := s.rules.FindActive(ctx, discount.KeysFor(cart.Items))
	if err != nil {
		return nil, errors.Wrap(err, "find rules")
	}

	var in *discount.CouponInput
	if req.CouponCode != "" {
		in, err = s.couponInput(ctx, req.UserID, req.CouponCode)
		if err != nil {
			return nil, err
		}
	}

	q, err := discount.PriceCart(cart, rules, in)
	if err != nil {
		var rejected *discount.ResolutionError
		if errors.As(err, &rejected) {
			s.rejections.Add(ctx, 1, metric.WithAttributes(
				attribute.String("reason", string(rejected.Reason)),
			))
			zctx.From(ctx).Debug("Coupon rejected",
				zap.String("code", req.CouponCode),
				zap.String("reason", string(rejected.Reason)),
			)
		}
		return nil, err
	}

	s.quotes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", string(req.Role)),
		attribute.Bool("coupon", q.Coupon != nil),
	))
	return &Result{Quote: q, Products: products, PricedAt: cart.Now}, nil
}

// ValidateCoupon prices the cart with the coupon and reports whether the
// coupon applies. Rejections are part of the outcome, not errors.
func (s *Service) ValidateCoupon(ctx context.Context, req QuoteRequest) (*CouponOutcome, error) {
	if strings.TrimSpace(req.CouponCode) == "" {
		return nil, ErrCouponCodeRequired
	}
	res, err := s.Quote(ctx, req)
	if err != nil {
		var rejected *discount.ResolutionError
		if errors.As(err, &rejected) {
			return &CouponOutcome{
				Reason:  rejected.Reason,
				Message: rejected.Message(),
			}, nil
		}
		return nil, err
	}
	return &CouponOutcome{
		Valid:    true,
		Discount: res.Coupon,
		Quote:    res,
	}, nil
}

func validate(req QuoteRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	if req.UserID == "" {
		return ErrUserRequired
	}
	if !req.Role.Valid() {
		return &InvalidRoleError{Role: string(req.Role)}
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: it.ProductID}
		}
	}
	return nil
}

// assemble resolves catalog data for every requested line.
func (s *Service) assemble(ctx context.Context, req QuoteRequest) (discount.Cart, []product.Product, error) {
	ids := lo.Uniq(lo.Map(req.Items, func(it Item, _ int) string { return it.ProductID }))

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return discount.Cart{}, nil, errors.Wrap(err, "get products")
	}
	byID := lo.KeyBy(fetched, func(p product.Product) string { return p.ID })

	items := make([]discount.LineItem, 0, len(req.Items))
	products := make([]product.Product, 0, len(req.Items))
	for _, it := range req.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return discount.Cart{}, nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		line := discount.LineItem{
			ProductID:  p.ID,
			CategoryID: p.CategoryID,
			BrandID:    p.BrandID,
			Quantity:   it.Quantity,
			UnitPrice:  p.UnitPrice(nil),
		}
		if it.VariantID != "" {
			v, ok := p.Variant(it.VariantID)
			if !ok {
				return discount.Cart{}, nil, &VariantNotFoundError{ProductID: p.ID, VariantID: it.VariantID}
			}
			line.VariantID = v.ID
			line.AttributeIDs = v.AttributeIDs
			line.UnitPrice = p.UnitPrice(&v)
		}
		items = append(items, line)
		products = append(products, p)
	}

	return discount.Cart{
		UserID: req.UserID,
		Role:   req.Role,
		Items:  items,
		Now:    s.now(),
	}, products, nil
}

// couponInput loads the coupon and the ledger facts the engine needs. An
// unknown code yields an input without a coupon so the engine rejects it.
func (s *Service) couponInput(ctx context.Context, userID, code string) (*discount.CouponInput, error) {
	in := &discount.CouponInput{Code: code}

	c, err := s.coupons.FindByCode(ctx, code)
	switch {
	case errors.Is(err, discount.ErrNotFound):
		return in, nil
	case err != nil:
		return nil, errors.Wrap(err, "find coupon")
	}
	in.Coupon = c

	if in.Usage, err = s.usage.Counts(ctx, c.ID, userID); err != nil {
		return nil, errors.Wrap(err, "count redemptions")
	}
	if c.NewUsersOnly {
		if in.PriorOrders, err = s.history.CountByUser(ctx, userID); err != nil {
			return nil, errors.Wrap(err, "count orders")
		}
	}
	return in, nil
}
