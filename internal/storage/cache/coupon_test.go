package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
)

type countingStore struct {
	coupons map[string]*discount.Coupon
	err     error
	calls   int
}

func (s *countingStore) FindByCode(_ context.Context, code string) (*discount.Coupon, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.coupons[code]
	if !ok {
		return nil, discount.ErrNotFound
	}
	return c, nil
}

func newStore() *countingStore {
	return &countingStore{coupons: map[string]*discount.Coupon{
		"SAVE10": {ID: "c1", Code: "SAVE10", Value: decimal.NewFromInt(10)},
	}}
}

func TestCouponStore_CachesHits(t *testing.T) {
	next := newStore()
	s := NewCouponStore(next, time.Minute)
	ctx := context.Background()

	c, err := s.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)

	c.Value = decimal.NewFromInt(99)

	again, err := s.FindByCode(ctx, " save10 ")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(again.Value), "cached entry must not be mutated by callers")
	assert.Equal(t, 1, next.calls)
}

func TestCouponStore_CachesMisses(t *testing.T) {
	next := newStore()
	s := NewCouponStore(next, time.Minute)
	ctx := context.Background()

	_, err := s.FindByCode(ctx, "NOPE")
	require.ErrorIs(t, err, discount.ErrNotFound)
	_, err = s.FindByCode(ctx, "nope")
	require.ErrorIs(t, err, discount.ErrNotFound)
	assert.Equal(t, 1, next.calls)
}

func TestCouponStore_DoesNotCacheErrors(t *testing.T) {
	next := newStore()
	next.err = errors.New("db down")
	s := NewCouponStore(next, time.Minute)
	ctx := context.Background()

	_, err := s.FindByCode(ctx, "SAVE10")
	require.Error(t, err)

	next.err = nil
	c, err := s.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, 2, next.calls)
}

func TestCouponStore_Expires(t *testing.T) {
	next := newStore()
	s := NewCouponStore(next, 20*time.Millisecond)
	ctx := context.Background()

	_, err := s.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	_, err = s.FindByCode(ctx, "NOPE")
	require.ErrorIs(t, err, discount.ErrNotFound)
	require.Equal(t, 2, next.calls)

	time.Sleep(50 * time.Millisecond)

	_, err = s.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	_, err = s.FindByCode(ctx, "NOPE")
	require.ErrorIs(t, err, discount.ErrNotFound)
	assert.Equal(t, 4, next.calls)
}
