package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/redemption"
)

const (
	countRedemptionsSQL = `SELECT COUNT(*), COUNT(*) FILTER (WHERE user_id = $2)
		FROM coupon_redemptions WHERE coupon_id = $1`

	lockCouponSQL = `SELECT usage_limit, usage_per_user FROM coupons WHERE id = $1 FOR UPDATE`

	// The insert only happens while both quotas hold. Callers hold the
	// coupon row lock, so the counts cannot change underneath.
	appendRedemptionSQL = `INSERT INTO coupon_redemptions (id, coupon_id, user_id, order_id, redeemed_at)
		SELECT $1, $2, $3, $4, $5
		WHERE ($6::int = 0 OR (SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = $2) < $6::int)
		AND ($7::int = 0 OR (SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = $2 AND user_id = $3) < $7::int)`
)

var _ redemption.Counter = (*RedemptionRepository)(nil)

// RedemptionRepository is the append-only coupon redemption ledger.
type RedemptionRepository struct {
	pool *pgxpool.Pool
}

// NewRedemptionRepository returns a RedemptionRepository that uses the given pool.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// Counts returns the total and per-user redemption counts of a coupon.
func (r *RedemptionRepository) Counts(ctx context.Context, couponID, userID string) (discount.Usage, error) {
	return countRedemptions(ctx, r.pool, couponID, userID)
}

// Append records a redemption inside tx. It locks the coupon row and
// inserts only while the global and per-user quotas hold; otherwise it
// returns a *discount.ResolutionError naming the exhausted quota.
func (r *RedemptionRepository) Append(ctx context.Context, tx pgx.Tx, red *redemption.Redemption) error {
	var usageLimit, usagePerUser int32
	if err := tx.QueryRow(ctx, lockCouponSQL, red.CouponID).Scan(&usageLimit, &usagePerUser); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.ErrNotFound
		}
		return errors.Wrapf(err, "lock coupon %s", red.CouponID)
	}

	tag, err := tx.Exec(ctx, appendRedemptionSQL,
		red.ID, red.CouponID, red.UserID, red.OrderID, red.RedeemedAt,
		usageLimit, usagePerUser,
	)
	if err != nil {
		return errors.Wrapf(err, "append redemption for coupon %s", red.CouponID)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	usage, err := countRedemptions(ctx, tx, red.CouponID, red.UserID)
	if err != nil {
		return err
	}
	if usageLimit > 0 && usage.Global >= int(usageLimit) {
		return discount.ErrUsageLimitExceeded
	}
	return discount.ErrPerUserLimitExceeded
}

func countRedemptions(ctx context.Context, q querier, couponID, userID string) (discount.Usage, error) {
	var global, user int64
	if err := q.QueryRow(ctx, countRedemptionsSQL, couponID, userID).Scan(&global, &user); err != nil {
		return discount.Usage{}, errors.Wrapf(err, "count redemptions of coupon %s", couponID)
	}
	return discount.Usage{Global: int(global), User: int(user)}, nil
}
