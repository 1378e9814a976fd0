package pricing

import (
	"errors"
	"time"

	"storeconsole/internal/domain"
)

var ErrInvalidDay = errors.New("discount day must be between 0 (Sunday) and 6 (Saturday)")

// DiscountDraft is the two-way coupled editor behind the discount form:
// editing the percentage recomputes the discounted price and vice versa.
type DiscountDraft struct {
	Price           float64 `json:"price"`
	Discount        float64 `json:"discount"`
	DiscountedPrice float64 `json:"discountedPrice"`
}

func NewDiscountDraft(price float64) DiscountDraft {
	return DiscountDraft{Price: price, DiscountedPrice: price}
}

// SetPercent applies a percentage edit. Zero resets the percentage and
// leaves the price as it was; out-of-range values also reset to 0 rather
// than clamping to the nearest bound.
func (d *DiscountDraft) SetPercent(percent float64) {
	if percent == 0 {
		d.Discount = 0
		return
	}
	if percent < 0 || percent > 100 {
		d.Discount = 0
		return
	}
	d.Discount = percent
	d.DiscountedPrice = PriceForPercent(d.Price, percent)
}

func (d *DiscountDraft) SetDiscountedPrice(value float64) {
	d.Discount = PercentForPrice(d.Price, value)
	d.DiscountedPrice = value
}

// Request builds the create-discount body for day, with the discounted
// price rounded the way the form displays it.
func (d DiscountDraft) Request(day int) (domain.DiscountCreateRequest, error) {
	if day < int(time.Sunday) || day > int(time.Saturday) {
		return domain.DiscountCreateRequest{}, ErrInvalidDay
	}
	return domain.DiscountCreateRequest{
		DiscountDay:     day,
		Discount:        d.Discount,
		DiscountedPrice: Round2(d.DiscountedPrice),
	}, nil
}
