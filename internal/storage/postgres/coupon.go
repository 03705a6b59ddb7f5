package postgres

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/pricing"
)

const (
	couponColumns = `id, code, description, discount_type, value, target_type, target_id, target_role,
		min_cart_value, max_discount, usage_limit, usage_per_user, valid_from, valid_to,
		active, new_users_only`

	// Inactive coupons are returned too so that the engine can tell them
	// apart from unknown codes.
	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE UPPER(code) = UPPER($1)`

	upsertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			target_type = EXCLUDED.target_type,
			target_id = EXCLUDED.target_id,
			target_role = EXCLUDED.target_role,
			min_cart_value = EXCLUDED.min_cart_value,
			max_discount = EXCLUDED.max_discount,
			usage_limit = EXCLUDED.usage_limit,
			usage_per_user = EXCLUDED.usage_per_user,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			active = EXCLUDED.active,
			new_users_only = EXCLUDED.new_users_only
		RETURNING id`
)

var _ pricing.CouponStore = (*CouponRepository)(nil)

// CouponRepository reads and writes coupons.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns discount.ErrNotFound when no coupon has the code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*discount.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, strings.TrimSpace(code))
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &c, nil
}

// Upsert validates and stores the coupon keyed by its code. A coupon
// without an ID gets a new one; on conflict the existing ID is kept and
// written back to c.
func (r *CouponRepository) Upsert(ctx context.Context, c *discount.Coupon) error {
	if err := c.Validate(); err != nil {
		return errors.Wrapf(err, "invalid coupon %s", c.Code)
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	err := r.pool.QueryRow(ctx, upsertCouponSQL,
		c.ID, c.Code, c.Description, string(c.Type), c.Value,
		string(c.Scope.Kind), nullable(c.Scope.ID), string(c.TargetRole),
		c.MinCartValue, c.MaxDiscount, c.UsageLimit, c.UsagePerUser,
		c.ValidFrom, c.ValidTo, c.Active, c.NewUsersOnly,
	).Scan(&c.ID)
	if err != nil {
		return errors.Wrapf(err, "upsert coupon %s", c.Code)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (discount.Coupon, error) {
	var (
		c                                  discount.Coupon
		couponType, targetType, targetRole string
		targetID                           *string
		usageLimit, usagePerUser           int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &couponType, &c.Value, &targetType, &targetID, &targetRole,
		&c.MinCartValue, &c.MaxDiscount, &usageLimit, &usagePerUser, &c.ValidFrom, &c.ValidTo,
		&c.Active, &c.NewUsersOnly,
	)
	c.Type = discount.CouponType(couponType)
	c.Scope = discount.Scope{Kind: discount.ScopeKind(targetType), ID: deref(targetID)}
	c.TargetRole = discount.TargetRole(targetRole)
	c.UsageLimit = int(usageLimit)
	c.UsagePerUser = int(usagePerUser)
	return c, err
}
