package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-pricing/internal/domain/product"
)

const (
	upsertBrandSQL = `INSERT INTO brands (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	upsertCategorySQL = `INSERT INTO categories (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	upsertAttributeValueSQL = `INSERT INTO attribute_values (id, attribute, value) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET attribute = EXCLUDED.attribute, value = EXCLUDED.value`

	upsertProductSQL = `INSERT INTO products (id, name, price, category_id, brand_id,
		image_thumbnail, image_mobile, image_tablet, image_desktop)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			category_id = EXCLUDED.category_id,
			brand_id = EXCLUDED.brand_id,
			image_thumbnail = EXCLUDED.image_thumbnail,
			image_mobile = EXCLUDED.image_mobile,
			image_tablet = EXCLUDED.image_tablet,
			image_desktop = EXCLUDED.image_desktop`

	upsertVariantSQL = `INSERT INTO product_variants (id, product_id, sku, name, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			sku = EXCLUDED.sku,
			name = EXCLUDED.name,
			price = EXCLUDED.price`

	clearVariantAttributesSQL = `DELETE FROM variant_attribute_values WHERE variant_id = $1`

	addVariantAttributeSQL = `INSERT INTO variant_attribute_values (variant_id, attribute_value_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`
)

// AttributeValue is a named attribute value such as size=XL.
type AttributeValue struct {
	ID        string
	Attribute string
	Value     string
}

// CatalogWriter writes catalog reference data. Pricing only reads the
// catalog; writes are used by seeding.
type CatalogWriter struct {
	pool *pgxpool.Pool
	opts TxOptions
}

// NewCatalogWriter returns a CatalogWriter that uses the given pool.
func NewCatalogWriter(pool *pgxpool.Pool) *CatalogWriter {
	return &CatalogWriter{pool: pool, opts: DefaultTxOptions()}
}

// UpsertBrand stores a brand.
func (w *CatalogWriter) UpsertBrand(ctx context.Context, id, name string) error {
	if _, err := w.pool.Exec(ctx, upsertBrandSQL, id, name); err != nil {
		return errors.Wrapf(err, "upsert brand %s", id)
	}
	return nil
}

// UpsertCategory stores a category.
func (w *CatalogWriter) UpsertCategory(ctx context.Context, id, name string) error {
	if _, err := w.pool.Exec(ctx, upsertCategorySQL, id, name); err != nil {
		return errors.Wrapf(err, "upsert category %s", id)
	}
	return nil
}

// UpsertAttributeValue stores an attribute value.
func (w *CatalogWriter) UpsertAttributeValue(ctx context.Context, v AttributeValue) error {
	if _, err := w.pool.Exec(ctx, upsertAttributeValueSQL, v.ID, v.Attribute, v.Value); err != nil {
		return errors.Wrapf(err, "upsert attribute value %s", v.ID)
	}
	return nil
}

// UpsertProduct stores a product and replaces the attribute links of its
// variants, all in one transaction.
func (w *CatalogWriter) UpsertProduct(ctx context.Context, p *product.Product) error {
	return InTx(ctx, w.pool, w.opts, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Price, nullable(p.CategoryID), nullable(p.BrandID),
			p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		for _, v := range p.Variants {
			if _, err := tx.Exec(ctx, upsertVariantSQL, v.ID, p.ID, v.SKU, v.Name, v.Price); err != nil {
				return errors.Wrapf(err, "upsert variant %s", v.ID)
			}
			if _, err := tx.Exec(ctx, clearVariantAttributesSQL, v.ID); err != nil {
				return errors.Wrapf(err, "clear attributes of variant %s", v.ID)
			}
			for _, attr := range v.AttributeIDs {
				if _, err := tx.Exec(ctx, addVariantAttributeSQL, v.ID, attr); err != nil {
					return errors.Wrapf(err, "link variant %s to %s", v.ID, attr)
				}
			}
		}
		return nil
	})
}
