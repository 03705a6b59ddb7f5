package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/pricing"
)

const (
	ruleColumns = `id, rule_type, product_id, category_id, brand_id, attribute_value_id, variant_id,
		discount_quantity, discount_percentage, bulk_discount_quantity, bulk_discount_percentage,
		active, created_by, updated_by`

	findActiveRulesSQL = `SELECT ` + ruleColumns + ` FROM discount_rules
		WHERE active AND (
			product_id = ANY($1) OR category_id = ANY($2) OR brand_id = ANY($3)
			OR attribute_value_id = ANY($4) OR variant_id = ANY($5)
		)
		ORDER BY id`

	upsertRuleSQL = `INSERT INTO discount_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			rule_type = EXCLUDED.rule_type,
			product_id = EXCLUDED.product_id,
			category_id = EXCLUDED.category_id,
			brand_id = EXCLUDED.brand_id,
			attribute_value_id = EXCLUDED.attribute_value_id,
			variant_id = EXCLUDED.variant_id,
			discount_quantity = EXCLUDED.discount_quantity,
			discount_percentage = EXCLUDED.discount_percentage,
			bulk_discount_quantity = EXCLUDED.bulk_discount_quantity,
			bulk_discount_percentage = EXCLUDED.bulk_discount_percentage,
			active = EXCLUDED.active,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()`
)

var _ pricing.RuleStore = (*RuleRepository)(nil)

// RuleRepository reads and writes discount rules.
type RuleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository returns a RuleRepository that uses the given pool.
func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

// FindActive returns active rules scoped to any of the given identifiers.
func (r *RuleRepository) FindActive(ctx context.Context, keys discount.ScopeKeys) ([]discount.Rule, error) {
	rows, err := r.pool.Query(ctx, findActiveRulesSQL,
		keys.ProductIDs, keys.CategoryIDs, keys.BrandIDs, keys.AttributeIDs, keys.VariantIDs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "find active rules")
	}
	return pgx.CollectRows(rows, scanRule)
}

// Upsert validates and stores the rule.
func (r *RuleRepository) Upsert(ctx context.Context, rule *discount.Rule) error {
	if err := rule.Validate(); err != nil {
		return errors.Wrapf(err, "invalid rule %s", rule.ID)
	}
	targets := scopeColumns(rule.Scope)
	stdQty, stdPct := tierColumns(rule.Standard)
	bulkQty, bulkPct := tierColumns(rule.Bulk)

	_, err := r.pool.Exec(ctx, upsertRuleSQL,
		rule.ID, string(rule.Type),
		targets[discount.ScopeProduct], targets[discount.ScopeCategory], targets[discount.ScopeBrand],
		targets[discount.ScopeAttribute], targets[discount.ScopeVariant],
		stdQty, stdPct, bulkQty, bulkPct,
		rule.Active, rule.CreatedBy, rule.UpdatedBy,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert rule %s", rule.ID)
	}
	return nil
}

func scopeColumns(s discount.Scope) map[discount.ScopeKind]*string {
	return map[discount.ScopeKind]*string{s.Kind: nullable(s.ID)}
}

func tierColumns(t *discount.Tier) (*int32, decimal.NullDecimal) {
	if t == nil {
		return nil, decimal.NullDecimal{}
	}
	q := int32(t.MinQuantity)
	return &q, decimal.NewNullDecimal(t.Percentage)
}

func scanRule(row pgx.CollectableRow) (discount.Rule, error) {
	var (
		rule                                        discount.Rule
		ruleType                                    string
		productID, categoryID, brandID, attrID, vID *string
		stdQty, bulkQty                             *int32
		stdPct, bulkPct                             decimal.NullDecimal
	)
	if err := row.Scan(
		&rule.ID, &ruleType, &productID, &categoryID, &brandID, &attrID, &vID,
		&stdQty, &stdPct, &bulkQty, &bulkPct,
		&rule.Active, &rule.CreatedBy, &rule.UpdatedBy,
	); err != nil {
		return rule, err
	}
	rule.Type = discount.RuleType(ruleType)

	switch {
	case productID != nil:
		rule.Scope = discount.ProductScope(*productID)
	case categoryID != nil:
		rule.Scope = discount.CategoryScope(*categoryID)
	case brandID != nil:
		rule.Scope = discount.BrandScope(*brandID)
	case attrID != nil:
		rule.Scope = discount.AttributeScope(*attrID)
	case vID != nil:
		rule.Scope = discount.VariantScope(*vID)
	}
	rule.Standard = scanTier(stdQty, stdPct)
	rule.Bulk = scanTier(bulkQty, bulkPct)
	return rule, nil
}

func scanTier(qty *int32, pct decimal.NullDecimal) *discount.Tier {
	if qty == nil || !pct.Valid {
		return nil
	}
	return &discount.Tier{MinQuantity: int(*qty), Percentage: pct.Decimal}
}
