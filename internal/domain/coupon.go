package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountFor computes the discount the coupon grants on subtotal, rounded to
// currency precision. It never exceeds the subtotal and is zero while the
// subtotal is below the coupon's minimum order.
func (c Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.LessThan(c.MinOrder) || !subtotal.IsPositive() {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		d = subtotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscount != nil && d.GreaterThan(*c.MaxDiscount) {
			d = *c.MaxDiscount
		}
	case DiscountFlat:
		d = c.DiscountValue
	default:
		return decimal.Zero
	}

	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}

// PriceRequest is what a coupon pricer needs to decide on a code.
type PriceRequest struct {
	Code         string
	RestaurantID string
	Subtotal     decimal.Decimal
}
