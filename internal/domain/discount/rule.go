package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Role is the pricing audience of the buyer.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleRetailer Role = "retailer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleRetailer, RoleAdmin:
		return true
	}
	return false
}

// audience maps the role onto the pricing audience it is treated as. Admins
// buy at customer prices.
func (r Role) audience() Role {
	if r == RoleAdmin {
		return RoleCustomer
	}
	return r
}

// RuleType distinguishes bulk (retailer) rules from plain quantity rules.
type RuleType string

const (
	// RuleBulk rules discount retailer purchases above a bulk quantity.
	RuleBulk RuleType = "bulk"
	// RuleQuantity rules discount purchases above a quantity threshold.
	RuleQuantity RuleType = "quantity"
)

// Tier is a quantity threshold and the percentage it unlocks.
type Tier struct {
	MinQuantity int
	Percentage  decimal.Decimal
}

func (t Tier) valid() bool {
	return t.MinQuantity >= 0 &&
		!t.Percentage.IsNegative() &&
		t.Percentage.LessThanOrEqual(hundred)
}

// Rule is a persisted automatic discount. Standard holds the plain
// discount_quantity/discount_percentage pair, Bulk the retailer-only
// bulk_discount_* pair. Either may be nil.
type Rule struct {
	ID        string
	Scope     Scope
	Type      RuleType
	Standard  *Tier
	Bulk      *Tier
	Active    bool
	CreatedBy string
	UpdatedBy string
}

// TierFor returns the tier that applies to the role, or nil when the rule
// carries nothing usable for it.
func (r *Rule) TierFor(role Role) *Tier {
	t := r.Standard
	if role.audience() == RoleRetailer {
		t = r.Bulk
	}
	if t == nil || !t.valid() {
		return nil
	}
	return t
}

// Validate checks the rule invariants enforced when rules are written.
// Pricing never calls it: malformed rules are skipped instead.
func (r *Rule) Validate() error {
	if err := r.Scope.Validate(); err != nil {
		return errors.Wrap(err, "scope")
	}
	if r.Scope.Kind == ScopeCart {
		return errors.New("rules cannot target the whole cart")
	}
	if err := validateTier("standard", r.Standard); err != nil {
		return err
	}
	if err := validateTier("bulk", r.Bulk); err != nil {
		return err
	}
	switch r.Type {
	case RuleBulk:
		if r.Bulk == nil {
			return errors.New("bulk rule requires bulk tier")
		}
	case RuleQuantity:
		if r.Standard == nil {
			return errors.New("quantity rule requires standard tier")
		}
	default:
		return errors.Errorf("unknown rule type %q", r.Type)
	}
	return nil
}

func validateTier(name string, t *Tier) error {
	if t == nil {
		return nil
	}
	if t.MinQuantity < 0 {
		return errors.Errorf("%s tier: negative quantity threshold", name)
	}
	if t.Percentage.IsNegative() || t.Percentage.GreaterThan(hundred) {
		return errors.Errorf("%s tier: percentage %s outside [0,100]", name, t.Percentage)
	}
	return nil
}
