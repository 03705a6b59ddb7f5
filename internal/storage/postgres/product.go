package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-pricing/internal/domain/product"
)

const (
	productSelect = `SELECT p.id, p.name, p.price,
		COALESCE(p.category_id, ''), COALESCE(c.name, ''),
		COALESCE(p.brand_id, ''), COALESCE(b.name, ''),
		p.image_thumbnail, p.image_mobile, p.image_tablet, p.image_desktop
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		LEFT JOIN brands b ON b.id = p.brand_id`

	listProductsSQL     = productSelect + ` ORDER BY p.id`
	getProductByIDSQL   = productSelect + ` WHERE p.id = $1`
	getProductsByIDsSQL = productSelect + ` WHERE p.id = ANY($1) ORDER BY p.id`

	getVariantsSQL = `SELECT v.id, v.product_id, v.sku, v.name, v.price,
		COALESCE(array_agg(va.attribute_value_id ORDER BY va.attribute_value_id)
			FILTER (WHERE va.attribute_value_id IS NOT NULL), '{}')
		FROM product_variants v
		LEFT JOIN variant_attribute_values va ON va.variant_id = v.id
		WHERE v.product_id = ANY($1)
		GROUP BY v.id
		ORDER BY v.product_id, v.id`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return r.withVariants(ctx, products)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	products, err := r.withVariants(ctx, []product.Product{p})
	if err != nil {
		return nil, err
	}
	return &products[0], nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return r.withVariants(ctx, products)
}

type variantRow struct {
	productID string
	variant   product.Variant
}

// withVariants loads the variants of all products in one query.
func (r *ProductRepository) withVariants(ctx context.Context, products []product.Product) ([]product.Product, error) {
	if len(products) == 0 {
		return products, nil
	}
	ids := lo.Map(products, func(p product.Product, _ int) string { return p.ID })

	rows, err := r.pool.Query(ctx, getVariantsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get variants")
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return nil, errors.Wrap(err, "get variants")
	}

	byProduct := lo.GroupBy(variants, func(v variantRow) string { return v.productID })
	for i := range products {
		products[i].Variants = lo.Map(byProduct[products[i].ID], func(v variantRow, _ int) product.Variant {
			return v.variant
		})
	}
	return products, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.Name, &price, &p.CategoryID, &p.Category, &p.BrandID, &p.Brand,
		&p.Image.Thumbnail, &p.Image.Mobile, &p.Image.Tablet, &p.Image.Desktop,
	)
	p.Price = price
	return p, err
}

func scanVariant(row pgx.CollectableRow) (variantRow, error) {
	var v variantRow
	err := row.Scan(
		&v.variant.ID, &v.productID, &v.variant.SKU, &v.variant.Name, &v.variant.Price,
		&v.variant.AttributeIDs,
	)
	return v, err
}
