// Package redemption models the append-only coupon redemption ledger.
package redemption

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
)

// Redemption records one successful use of a coupon on a completed order.
// Records are never updated or deleted.
type Redemption struct {
	ID         string
	CouponID   string
	UserID     string
	OrderID    string
	RedeemedAt time.Time
}

// New creates a redemption with a fresh ID.
func New(couponID, userID, orderID string, at time.Time) *Redemption {
	return &Redemption{
		ID:         uuid.New().String(),
		CouponID:   couponID,
		UserID:     userID,
		OrderID:    orderID,
		RedeemedAt: at,
	}
}

// Counter reports how often a coupon has been redeemed, in total and by one
// user.
type Counter interface {
	Counts(ctx context.Context, couponID, userID string) (discount.Usage, error)
}
