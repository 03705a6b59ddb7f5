package discount

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// CouponType enumerates the supported coupon discount strategies.
type CouponType string

const (
	// CouponFixed subtracts a fixed amount, capped at the scoped subtotal.
	CouponFixed CouponType = "fixed"
	// CouponPercentage takes a percentage of the scoped subtotal.
	CouponPercentage CouponType = "percentage"
)

// TargetRole restricts which buyers may redeem a coupon.
type TargetRole string

const (
	TargetCustomer TargetRole = "customer"
	TargetRetailer TargetRole = "retailer"
	TargetBoth     TargetRole = "both"
)

// Allows reports whether a buyer with the given role may use the coupon.
func (t TargetRole) Allows(role Role) bool {
	role = role.audience()
	switch t {
	case TargetBoth:
		return true
	case TargetCustomer:
		return role == RoleCustomer
	case TargetRetailer:
		return role == RoleRetailer
	}
	return false
}

// Coupon is a redeemable discount code.
type Coupon struct {
	ID           string
	Code         string
	Type         CouponType
	Value        decimal.Decimal
	Scope        Scope
	TargetRole   TargetRole
	MinCartValue decimal.Decimal
	// MaxDiscount caps the computed discount when set.
	MaxDiscount  decimal.NullDecimal
	UsageLimit   int
	UsagePerUser int
	ValidFrom    time.Time
	ValidTo      time.Time
	Active       bool
	NewUsersOnly bool
	Description  string
}

// Validate checks the coupon invariants enforced when coupons are written.
func (c *Coupon) Validate() error {
	if c.Code == "" {
		return errors.New("code is required")
	}
	if err := c.Scope.Validate(); err != nil {
		return errors.Wrap(err, "scope")
	}
	if c.Scope.Kind == ScopeAttribute {
		return errors.New("coupons cannot target attributes")
	}
	switch c.Type {
	case CouponFixed:
	case CouponPercentage:
		if c.Value.GreaterThan(hundred) {
			return errors.Errorf("percentage %s exceeds 100", c.Value)
		}
	default:
		return errors.Errorf("unknown coupon type %q", c.Type)
	}
	if c.Value.IsNegative() {
		return errors.New("discount value must not be negative")
	}
	switch c.TargetRole {
	case TargetCustomer, TargetRetailer, TargetBoth:
	default:
		return errors.Errorf("unknown target role %q", c.TargetRole)
	}
	if c.MinCartValue.IsNegative() {
		return errors.New("min cart value must not be negative")
	}
	if c.MaxDiscount.Valid && c.MaxDiscount.Decimal.IsNegative() {
		return errors.New("max discount must not be negative")
	}
	if c.UsageLimit < 0 || c.UsagePerUser < 0 {
		return errors.New("usage limits must not be negative")
	}
	if !c.ValidFrom.Before(c.ValidTo) {
		return errors.New("valid_from must be before valid_to")
	}
	return nil
}

// Usage is a snapshot of redemption counts from the ledger.
type Usage struct {
	Global int
	User   int
}

// CouponInput carries a requested code and everything known about it.
type CouponInput struct {
	Code string
	// Coupon is nil when no coupon has the code.
	Coupon *Coupon
	Usage  Usage
	// PriorOrders is the number of orders the buyer placed before.
	PriorOrders int
}

// CouponContext is the priced cart a coupon is evaluated against.
type CouponContext struct {
	Role  Role
	Lines []PricedLine
	// Subtotal is the sum of post-rule line totals.
	Subtotal decimal.Decimal
	Now      time.Time
}

// CouponResult describes an accepted coupon.
type CouponResult struct {
	CouponID       string
	Code           string
	Type           CouponType
	ScopedSubtotal decimal.Decimal
	Amount         decimal.Decimal
	Description    string
}

// ResolveCoupon checks every eligibility gate in a fixed order and computes
// the coupon discount against the post-rule subtotal. Rejections are returned
// as *ResolutionError.
func ResolveCoupon(cart CouponContext, in CouponInput) (CouponResult, error) {
	c := in.Coupon
	if c == nil {
		return CouponResult{}, reject(ReasonNotFound, in.Code)
	}
	if !c.Active {
		return CouponResult{}, reject(ReasonInactive, c.Code)
	}
	if cart.Now.Before(c.ValidFrom) {
		return CouponResult{}, reject(ReasonNotYetValid, c.Code)
	}
	if cart.Now.After(c.ValidTo) {
		return CouponResult{}, reject(ReasonExpired, c.Code)
	}
	if !c.TargetRole.Allows(cart.Role) {
		return CouponResult{}, reject(ReasonRoleNotEligible, c.Code)
	}
	if c.NewUsersOnly && in.PriorOrders > 0 {
		return CouponResult{}, reject(ReasonNotEligible, c.Code)
	}
	if c.UsageLimit > 0 && in.Usage.Global >= c.UsageLimit {
		return CouponResult{}, reject(ReasonUsageLimitExceeded, c.Code)
	}
	if c.UsagePerUser > 0 && in.Usage.User >= c.UsagePerUser {
		return CouponResult{}, reject(ReasonPerUserLimitExceeded, c.Code)
	}
	if cart.Subtotal.LessThan(c.MinCartValue) {
		return CouponResult{}, reject(ReasonMinCartValueNotMet, c.Code)
	}

	scoped, matched := scopedSubtotal(c.Scope, cart)
	if !matched {
		return CouponResult{}, reject(ReasonScopeMismatch, c.Code)
	}

	var amount decimal.Decimal
	switch c.Type {
	case CouponFixed:
		amount = decimal.Min(c.Value, scoped)
	case CouponPercentage:
		amount = scoped.Mul(c.Value).Div(hundred)
	default:
		return CouponResult{}, errors.Errorf("unsupported coupon type: %q", c.Type)
	}
	if c.MaxDiscount.Valid {
		amount = decimal.Min(amount, c.MaxDiscount.Decimal)
	}
	amount = roundMoney(clamp(amount, decimal.Zero, scoped))

	return CouponResult{
		CouponID:       c.ID,
		Code:           c.Code,
		Type:           c.Type,
		ScopedSubtotal: scoped,
		Amount:         amount,
		Description:    c.Description,
	}, nil
}

// scopedSubtotal sums the post-rule totals of lines under the scope. The
// boolean is false when a non-cart scope matches no line.
func scopedSubtotal(s Scope, cart CouponContext) (decimal.Decimal, bool) {
	if s.Kind == ScopeCart {
		return cart.Subtotal, true
	}
	total := decimal.Zero
	matched := false
	for _, l := range cart.Lines {
		if s.Matches(l.Item) {
			matched = true
			total = total.Add(l.LineTotal)
		}
	}
	return total, matched
}
