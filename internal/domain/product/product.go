package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	CategoryID string
	Category   string
	BrandID    string
	Brand      string
	Image      Image
	Variants   []Variant
}

// Variant is a purchasable option of a product, such as a size or colour.
type Variant struct {
	ID   string
	SKU  string
	Name string
	// Price overrides the product price when set.
	Price        decimal.NullDecimal
	AttributeIDs []string
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// Variant returns the variant with the given ID.
func (p *Product) Variant(id string) (Variant, bool) {
	return lo.Find(p.Variants, func(v Variant) bool { return v.ID == id })
}

// UnitPrice returns the price of the variant, falling back to the product
// price when the variant does not override it.
func (p *Product) UnitPrice(v *Variant) decimal.Decimal {
	if v != nil && v.Price.Valid {
		return v.Price.Decimal
	}
	return p.Price
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
