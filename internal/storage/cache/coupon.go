// Package cache provides in-memory caches in front of the storefront stores.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	gocache "github.com/patrickmn/go-cache"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/pricing"
)

var _ pricing.CouponStore = (*CouponStore)(nil)

// missing marks a code known to have no coupon.
type missing struct{}

// CouponStore caches coupon lookups by code, including misses. Redemption
// counts are not coupon data and are never cached here.
type CouponStore struct {
	next  pricing.CouponStore
	cache *gocache.Cache
}

// NewCouponStore wraps next with a cache whose entries expire after ttl.
func NewCouponStore(next pricing.CouponStore, ttl time.Duration) *CouponStore {
	return &CouponStore{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func key(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FindByCode returns the cached coupon, loading it from the wrapped store on
// a miss. Callers receive a copy and may not mutate the cached entry.
func (s *CouponStore) FindByCode(ctx context.Context, code string) (*discount.Coupon, error) {
	k := key(code)
	if v, ok := s.cache.Get(k); ok {
		switch c := v.(type) {
		case missing:
			return nil, discount.ErrNotFound
		case discount.Coupon:
			return &c, nil
		}
	}

	c, err := s.next.FindByCode(ctx, code)
	switch {
	case errors.Is(err, discount.ErrNotFound):
		s.cache.SetDefault(k, missing{})
		return nil, err
	case err != nil:
		return nil, err
	}
	s.cache.SetDefault(k, *c)
	cp := *c
	return &cp, nil
}

