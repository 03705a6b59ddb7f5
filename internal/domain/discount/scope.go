package discount

import (
	"github.com/go-faster/errors"
	"github.com/samber/lo"
)

// ScopeKind enumerates the entities a rule or coupon can target.
type ScopeKind string

const (
	// ScopeCart targets the whole cart. Only coupons use it.
	ScopeCart ScopeKind = "cart"
	// ScopeProduct targets a single product.
	ScopeProduct ScopeKind = "product"
	// ScopeCategory targets every product in a category.
	ScopeCategory ScopeKind = "category"
	// ScopeBrand targets every product of a brand.
	ScopeBrand ScopeKind = "brand"
	// ScopeAttribute targets variants carrying an attribute value.
	ScopeAttribute ScopeKind = "attribute"
	// ScopeVariant targets a single product variant.
	ScopeVariant ScopeKind = "variant"
)

// Scope is the tagged target of a rule or coupon. Exactly one identifier is
// carried, and only for kinds other than ScopeCart.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// CartScope returns the cart-wide scope.
func CartScope() Scope { return Scope{Kind: ScopeCart} }

// ProductScope returns a scope matching the given product.
func ProductScope(id string) Scope { return Scope{Kind: ScopeProduct, ID: id} }

// CategoryScope returns a scope matching the given category.
func CategoryScope(id string) Scope { return Scope{Kind: ScopeCategory, ID: id} }

// BrandScope returns a scope matching the given brand.
func BrandScope(id string) Scope { return Scope{Kind: ScopeBrand, ID: id} }

// AttributeScope returns a scope matching variants with the attribute value.
func AttributeScope(id string) Scope { return Scope{Kind: ScopeAttribute, ID: id} }

// VariantScope returns a scope matching the given variant.
func VariantScope(id string) Scope { return Scope{Kind: ScopeVariant, ID: id} }

// Validate checks that the scope kind is known and the identifier is present
// exactly when the kind requires one.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeCart:
		if s.ID != "" {
			return errors.New("cart scope must not carry an id")
		}
		return nil
	case ScopeProduct, ScopeCategory, ScopeBrand, ScopeAttribute, ScopeVariant:
		if s.ID == "" {
			return errors.Errorf("%s scope requires an id", s.Kind)
		}
		return nil
	default:
		return errors.Errorf("unknown scope kind %q", s.Kind)
	}
}

// Matches reports whether the line item falls under the scope.
func (s Scope) Matches(item LineItem) bool {
	switch s.Kind {
	case ScopeCart:
		return true
	case ScopeProduct:
		return item.ProductID == s.ID
	case ScopeCategory:
		return item.CategoryID != "" && item.CategoryID == s.ID
	case ScopeBrand:
		return item.BrandID != "" && item.BrandID == s.ID
	case ScopeVariant:
		return item.VariantID != "" && item.VariantID == s.ID
	case ScopeAttribute:
		return lo.Contains(item.AttributeIDs, s.ID)
	default:
		return false
	}
}

func (s Scope) String() string {
	if s.Kind == ScopeCart {
		return string(ScopeCart)
	}
	return string(s.Kind) + ":" + s.ID
}

// ScopeKeys is the set of identifiers a cart exposes to the rule store.
type ScopeKeys struct {
	ProductIDs   []string
	CategoryIDs  []string
	BrandIDs     []string
	AttributeIDs []string
	VariantIDs   []string
}

// KeysFor collects the distinct identifiers of the given line items.
func KeysFor(items []LineItem) ScopeKeys {
	var k ScopeKeys
	for _, it := range items {
		k.ProductIDs = append(k.ProductIDs, it.ProductID)
		if it.CategoryID != "" {
			k.CategoryIDs = append(k.CategoryIDs, it.CategoryID)
		}
		if it.BrandID != "" {
			k.BrandIDs = append(k.BrandIDs, it.BrandID)
		}
		if it.VariantID != "" {
			k.VariantIDs = append(k.VariantIDs, it.VariantID)
		}
		k.AttributeIDs = append(k.AttributeIDs, it.AttributeIDs...)
	}
	k.ProductIDs = lo.Uniq(k.ProductIDs)
	k.CategoryIDs = lo.Uniq(k.CategoryIDs)
	k.BrandIDs = lo.Uniq(k.BrandIDs)
	k.AttributeIDs = lo.Uniq(k.AttributeIDs)
	k.VariantIDs = lo.Uniq(k.VariantIDs)
	return k
}
