package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/redemption"
)

// Order represents a placed order with its pricing breakdown.
type Order struct {
	ID             string
	UserID         string
	Role           discount.Role
	Lines          []Line
	GrossTotal     decimal.Decimal
	RuleDiscount   decimal.Decimal
	CouponDiscount decimal.Decimal
	Total          decimal.Decimal
	CouponID       string
	CouponCode     string
	CreatedAt      time.Time
}

// Line is a single priced line of an order.
type Line struct {
	ProductID      string          `json:"product_id"`
	VariantID      string          `json:"variant_id,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	LineTotal      decimal.Decimal `json:"line_total"`
	RuleID         string          `json:"rule_id,omitempty"`
}

// Store persists an order and, when a coupon applied, its redemption. Both
// are written atomically; a redemption that would exceed a coupon quota
// fails the whole commit with a *discount.ResolutionError.
type Store interface {
	Commit(ctx context.Context, o *Order, r *redemption.Redemption) error
}
