package main

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/product"
	"github.com/xenking/storefront-pricing/internal/storage/postgres"
)

type named struct {
	id   string
	name string
}

var brands = []named{
	{id: "acme", name: "Acme"},
	{id: "northwind", name: "Northwind"},
}

var categories = []named{
	{id: "electronics", name: "Electronics"},
	{id: "apparel", name: "Apparel"},
	{id: "kitchen", name: "Kitchen"},
}

var attributes = []postgres.AttributeValue{
	{ID: "size-s", Attribute: "size", Value: "S"},
	{ID: "size-m", Attribute: "size", Value: "M"},
	{ID: "size-xl", Attribute: "size", Value: "XL"},
	{ID: "color-red", Attribute: "color", Value: "Red"},
}

func price(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func image(slug string) product.Image {
	return product.Image{
		Thumbnail: "/images/" + slug + "-thumbnail.jpg",
		Mobile:    "/images/" + slug + "-mobile.jpg",
		Tablet:    "/images/" + slug + "-tablet.jpg",
		Desktop:   "/images/" + slug + "-desktop.jpg",
	}
}

func products() []product.Product {
	return []product.Product{
		{
			ID: "tv-55", Name: "55\" 4K Television", Price: price("1000"),
			CategoryID: "electronics", BrandID: "acme", Image: image("tv-55"),
		},
		{
			ID: "headphones", Name: "Wireless Headphones", Price: price("149.99"),
			CategoryID: "electronics", BrandID: "northwind", Image: image("headphones"),
		},
		{
			ID: "tshirt", Name: "Cotton T-Shirt", Price: price("19.99"),
			CategoryID: "apparel", BrandID: "northwind", Image: image("tshirt"),
			Variants: []product.Variant{
				{ID: "tshirt-s", SKU: "TS-S", Name: "Small", AttributeIDs: []string{"size-s"}},
				{ID: "tshirt-m", SKU: "TS-M", Name: "Medium", AttributeIDs: []string{"size-m"}},
				{
					ID: "tshirt-xl-red", SKU: "TS-XL-RED", Name: "XL Red",
					Price:        decimal.NewNullDecimal(price("21.99")),
					AttributeIDs: []string{"size-xl", "color-red"},
				},
			},
		},
		{
			ID: "kettle", Name: "Electric Kettle", Price: price("39.50"),
			CategoryID: "kitchen", BrandID: "acme", Image: image("kettle"),
		},
	}
}

func rules() []discount.Rule {
	tier := func(qty int, pct string) *discount.Tier {
		return &discount.Tier{MinQuantity: qty, Percentage: price(pct)}
	}
	return []discount.Rule{
		{
			// Retailers buying 20 or more televisions get 15% off; customers
			// get 5% from 2 units.
			ID: "tv-bulk", Scope: discount.ProductScope("tv-55"), Type: discount.RuleBulk,
			Standard: tier(2, "5"), Bulk: tier(20, "15"), Active: true, CreatedBy: "seed",
		},
		{
			ID: "apparel-multibuy", Scope: discount.CategoryScope("apparel"), Type: discount.RuleQuantity,
			Standard: tier(3, "10"), Bulk: tier(50, "25"), Active: true, CreatedBy: "seed",
		},
		{
			ID: "acme-brand", Scope: discount.BrandScope("acme"), Type: discount.RuleQuantity,
			Standard: tier(5, "8"), Active: true, CreatedBy: "seed",
		},
		{
			ID: "xl-clearance", Scope: discount.AttributeScope("size-xl"), Type: discount.RuleQuantity,
			Standard: tier(1, "12"), Active: true, CreatedBy: "seed",
		},
		{
			ID: "tshirt-m-trade", Scope: discount.VariantScope("tshirt-m"), Type: discount.RuleBulk,
			Bulk: tier(100, "30"), Active: false, CreatedBy: "seed",
		},
	}
}

func coupons(from, to time.Time) []discount.Coupon {
	return []discount.Coupon{
		{
			Code: "SAVE10", Description: "10% off the whole cart",
			Type: discount.CouponPercentage, Value: price("10"),
			Scope: discount.CartScope(), TargetRole: discount.TargetBoth,
			ValidFrom: from, ValidTo: to, Active: true,
		},
		{
			Code: "FLAT200", Description: "200 off orders of 500 or more",
			Type: discount.CouponFixed, Value: price("200"),
			Scope: discount.CartScope(), TargetRole: discount.TargetCustomer,
			MinCartValue: price("500"), UsagePerUser: 1,
			ValidFrom: from, ValidTo: to, Active: true,
		},
		{
			Code: "TECH15", Description: "15% off electronics, up to 100",
			Type: discount.CouponPercentage, Value: price("15"),
			Scope: discount.CategoryScope("electronics"), TargetRole: discount.TargetBoth,
			MaxDiscount: decimal.NewNullDecimal(price("100")), UsageLimit: 1000,
			ValidFrom: from, ValidTo: to, Active: true,
		},
		{
			Code: "WELCOME5", Description: "5 off a first order",
			Type: discount.CouponFixed, Value: price("5"),
			Scope: discount.CartScope(), TargetRole: discount.TargetCustomer,
			NewUsersOnly: true, UsagePerUser: 1,
			ValidFrom: from, ValidTo: to, Active: true,
		},
		{
			Code: "TRADE50", Description: "50 off retailer orders of 2000 or more",
			Type: discount.CouponFixed, Value: price("50"),
			Scope: discount.CartScope(), TargetRole: discount.TargetRetailer,
			MinCartValue: price("2000"), ValidFrom: from, ValidTo: to, Active: true,
		},
	}
}
