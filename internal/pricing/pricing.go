package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"storeconsole/internal/domain"
)

// Today returns the weekday of the wall clock in loc (Sunday = 0).
func Today(now func() time.Time, loc *time.Location) time.Weekday {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc).Weekday()
}

// HasDiscountOn reports whether any of the product's discounts targets day.
func HasDiscountOn(product domain.Product, day time.Weekday) bool {
	for _, discount := range product.Discounts {
		if discount.DiscountDay == int(day) {
			return true
		}
	}
	return false
}

// DiscountedPrice returns the unit price the product sells for on day.
// Several discounts may target the same day; the last one in the product's
// list wins.
func DiscountedPrice(product domain.Product, day time.Weekday) float64 {
	price := product.Price
	for _, discount := range product.Discounts {
		if discount.DiscountDay == int(day) {
			price = discount.DiscountedPrice
		}
	}
	return price
}

// PriceForPercent returns price reduced by percent.
func PriceForPercent(price float64, percent float64) float64 {
	return price - (percent*price)/100
}

// PercentForPrice returns the percentage that takes price down to discounted.
func PercentForPrice(price float64, discounted float64) float64 {
	if price == 0 {
		return 0
	}
	return 100 - (discounted/price)*100
}

// Round2 rounds a money value to two fraction digits. Only display and
// submission boundaries call it.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Format renders a money value with exactly two fraction digits.
func Format(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// RoundItems returns a copy of items with money fields rounded for the wire.
func RoundItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.LineItem{
			Name:     item.Name,
			Price:    Round2(item.Price),
			Qty:      item.Qty,
			SubTotal: Round2(item.SubTotal),
		})
	}
	return out
}
