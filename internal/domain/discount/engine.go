package discount

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"
)

// concurrentLines is the cart size from which lines are priced in parallel.
const concurrentLines = 64

// LineItem is a single cart line with the catalog identifiers rules and
// coupons are matched against.
type LineItem struct {
	ProductID    string
	VariantID    string
	CategoryID   string
	BrandID      string
	AttributeIDs []string
	Quantity     int
	UnitPrice    decimal.Decimal
}

// Cart is the input to PriceCart.
type Cart struct {
	UserID string
	Role   Role
	Items  []LineItem
	Now    time.Time
}

// LineResult is the outcome of rule resolution for one line.
type LineResult struct {
	EffectiveUnitPrice decimal.Decimal
	// RuleID is empty when no rule applied.
	RuleID     string
	Percentage decimal.Decimal
}

// PricedLine is a line item with its rule outcome and totals.
type PricedLine struct {
	Item LineItem
	LineResult
	Gross     decimal.Decimal
	LineTotal decimal.Decimal
	Discount  decimal.Decimal
}

// Quote is the full pricing breakdown of a cart.
type Quote struct {
	Lines      []PricedLine
	GrossTotal decimal.Decimal
	// Subtotal is the cart total after rule discounts and before the coupon.
	Subtotal       decimal.Decimal
	RuleDiscount   decimal.Decimal
	CouponDiscount decimal.Decimal
	GrandTotal     decimal.Decimal
	Coupon         *CouponResult
}

type candidate struct {
	ruleID string
	tier   Tier
}

// better orders candidate tiers: the highest met threshold wins, then the
// larger percentage, then the lower rule ID.
func (c candidate) better(o candidate) bool {
	if c.tier.MinQuantity != o.tier.MinQuantity {
		return c.tier.MinQuantity > o.tier.MinQuantity
	}
	if cmp := c.tier.Percentage.Cmp(o.tier.Percentage); cmp != 0 {
		return cmp > 0
	}
	return c.ruleID < o.ruleID
}

// ResolveLineItemDiscount selects the rule tier applying to the item for the
// buyer role and returns the effective unit price. Inactive, mismatching and
// malformed rules are skipped.
func ResolveLineItemDiscount(item LineItem, rules []Rule, role Role) LineResult {
	var (
		best  candidate
		found bool
	)
	for i := range rules {
		r := &rules[i]
		if !r.Active || r.Scope.Kind == ScopeCart || r.Scope.Validate() != nil {
			continue
		}
		if !r.Scope.Matches(item) {
			continue
		}
		t := r.TierFor(role)
		if t == nil || item.Quantity < t.MinQuantity {
			continue
		}
		c := candidate{ruleID: r.ID, tier: *t}
		if !found || c.better(best) {
			best, found = c, true
		}
	}

	unit := item.UnitPrice
	if unit.IsNegative() {
		unit = decimal.Zero
	}
	if !found || best.tier.Percentage.IsZero() {
		return LineResult{EffectiveUnitPrice: unit, Percentage: decimal.Zero}
	}

	factor := hundred.Sub(best.tier.Percentage).Div(hundred)
	effective := clamp(roundMoney(unit.Mul(factor)), decimal.Zero, unit)
	return LineResult{
		EffectiveUnitPrice: effective,
		RuleID:             best.ruleID,
		Percentage:         best.tier.Percentage,
	}
}

func priceLine(item LineItem, rules []Rule, role Role) PricedLine {
	res := ResolveLineItemDiscount(item, rules, role)
	qty := decimal.NewFromInt(int64(item.Quantity))
	unit := item.UnitPrice
	if unit.IsNegative() {
		unit = decimal.Zero
	}
	gross := unit.Mul(qty)
	total := res.EffectiveUnitPrice.Mul(qty)
	return PricedLine{
		Item:       item,
		LineResult: res,
		Gross:      gross,
		LineTotal:  total,
		Discount:   gross.Sub(total),
	}
}

// PriceCart prices every line, then applies the coupon, if any, to the
// post-rule subtotal. It neither mutates its inputs nor records redemptions.
// A rejected coupon yields a *ResolutionError and no quote.
func PriceCart(cart Cart, rules []Rule, coupon *CouponInput) (*Quote, error) {
	var lines []PricedLine
	if len(cart.Items) >= concurrentLines {
		lines = iter.Map(cart.Items, func(it *LineItem) PricedLine {
			return priceLine(*it, rules, cart.Role)
		})
	} else {
		lines = make([]PricedLine, 0, len(cart.Items))
		for _, it := range cart.Items {
			lines = append(lines, priceLine(it, rules, cart.Role))
		}
	}

	gross := make([]decimal.Decimal, len(lines))
	totals := make([]decimal.Decimal, len(lines))
	for i, l := range lines {
		gross[i] = l.Gross
		totals[i] = l.LineTotal
	}
	q := &Quote{
		Lines:          lines,
		GrossTotal:     sum(gross),
		Subtotal:       sum(totals),
		CouponDiscount: decimal.Zero,
	}
	q.RuleDiscount = q.GrossTotal.Sub(q.Subtotal)
	q.GrandTotal = q.Subtotal

	if coupon == nil {
		return q, nil
	}
	res, err := ResolveCoupon(CouponContext{
		Role:     cart.Role,
		Lines:    lines,
		Subtotal: q.Subtotal,
		Now:      cart.Now,
	}, *coupon)
	if err != nil {
		return nil, err
	}
	q.Coupon = &res
	q.CouponDiscount = res.Amount
	q.GrandTotal = clamp(q.Subtotal.Sub(res.Amount), decimal.Zero, q.Subtotal)
	return q, nil
}
