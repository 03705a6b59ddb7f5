package discount

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// roundMoney rounds to currency granularity. decimal.Round rounds half away
// from zero, which is half-up for the non-negative amounts handled here.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// clamp bounds d to [lo, hi].
func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
