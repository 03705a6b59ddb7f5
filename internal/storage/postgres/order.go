package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-pricing/internal/domain/order"
	"github.com/xenking/storefront-pricing/internal/domain/pricing"
	"github.com/xenking/storefront-pricing/internal/domain/redemption"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, role, lines, gross_total, rule_discount,
		coupon_discount, total, coupon_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	countOrdersByUserSQL = `SELECT COUNT(*) FROM orders WHERE user_id = $1`
)

var (
	_ pricing.OrderHistory = (*OrderRepository)(nil)
	_ order.Store          = (*Store)(nil)
)

// OrderRepository persists orders.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CountByUser returns the number of orders the user has placed.
func (r *OrderRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, countOrdersByUserSQL, userID).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count orders of user %q", userID)
	}
	return int(n), nil
}

// createOrder serializes the order lines to JSON for the JSONB column.
func createOrder(ctx context.Context, q querier, o *order.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return errors.Wrap(err, "marshal order lines")
	}

	_, err = q.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, string(o.Role), linesJSON, o.GrossTotal, o.RuleDiscount,
		o.CouponDiscount, o.Total, o.CouponCode, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Store commits orders together with their coupon redemptions.
type Store struct {
	pool        *pgxpool.Pool
	redemptions *RedemptionRepository
	opts        TxOptions
}

// NewStore returns a Store that uses the given pool.
func NewStore(pool *pgxpool.Pool, opts TxOptions) *Store {
	return &Store{
		pool:        pool,
		redemptions: NewRedemptionRepository(pool),
		opts:        opts,
	}
}

// Commit writes the order and, if r is not nil, appends the redemption in
// the same transaction. A quota exhausted by a concurrent order rolls the
// whole commit back.
func (s *Store) Commit(ctx context.Context, o *order.Order, r *redemption.Redemption) error {
	return InTx(ctx, s.pool, s.opts, func(tx pgx.Tx) error {
		if err := createOrder(ctx, tx, o); err != nil {
			return err
		}
		if r == nil {
			return nil
		}
		return s.redemptions.Append(ctx, tx, r)
	})
}
