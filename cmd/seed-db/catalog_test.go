package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
)

func TestSeedData_Valid(t *testing.T) {
	for _, r := range rules() {
		require.NoError(t, r.Validate(), "rule %s", r.ID)
	}
	now := time.Now()
	seen := map[string]bool{}
	for _, c := range coupons(now, now.Add(time.Hour)) {
		require.NoError(t, c.Validate(), "coupon %s", c.Code)
		assert.False(t, seen[c.Code], "duplicate coupon %s", c.Code)
		seen[c.Code] = true
	}
	for _, p := range products() {
		assert.True(t, p.Price.IsPositive(), "product %s", p.ID)
	}
}

func TestSeedRules_Television(t *testing.T) {
	tv := discount.LineItem{
		ProductID:  "tv-55",
		CategoryID: "electronics",
		BrandID:    "acme",
		Quantity:   20,
		UnitPrice:  price("1000"),
	}

	retail := discount.ResolveLineItemDiscount(tv, rules(), discount.RoleRetailer)
	assert.Equal(t, "tv-bulk", retail.RuleID)
	assert.True(t, price("850").Equal(retail.EffectiveUnitPrice))

	consumer := discount.ResolveLineItemDiscount(tv, rules(), discount.RoleCustomer)
	assert.Equal(t, "acme-brand", consumer.RuleID)
	assert.True(t, price("920").Equal(consumer.EffectiveUnitPrice))
}

func TestSeedRules_InactiveVariantRule(t *testing.T) {
	shirt := discount.LineItem{
		ProductID:    "tshirt",
		VariantID:    "tshirt-m",
		CategoryID:   "apparel",
		BrandID:      "northwind",
		AttributeIDs: []string{"size-m"},
		Quantity:     200,
		UnitPrice:    price("19.99"),
	}
	res := discount.ResolveLineItemDiscount(shirt, rules(), discount.RoleRetailer)
	assert.Equal(t, "apparel-multibuy", res.RuleID)
}
