package engine

import (
	"github.com/fjod/food_cart/internal/domain"
	"github.com/shopspring/decimal"
)

// TaxRate is applied to the subtotal only; delivery fee and discount are not taxed.
var TaxRate = decimal.RequireFromString("0.05")

func lineTotal(item domain.MenuItem, quantity int) decimal.Decimal {
	return item.Price.Mul(decimal.NewFromInt(int64(quantity)))
}

// recompute rebuilds every derived field of c from its lines and coupon.
// Nothing is carried over from the previous totals.
func recompute(c *domain.Cart) {
	subtotal := decimal.Zero
	for i := range c.Lines {
		c.Lines[i].LineTotal = lineTotal(c.Lines[i].MenuItem, c.Lines[i].Quantity)
		subtotal = subtotal.Add(c.Lines[i].LineTotal)
	}

	c.Subtotal = subtotal
	c.Taxes = subtotal.Mul(TaxRate).Round(2)

	c.Discount = decimal.Zero
	if c.Coupon != nil {
		c.Coupon.DiscountAmount = c.Coupon.DiscountFor(subtotal)
		c.Discount = c.Coupon.DiscountAmount
	}

	c.Total = c.Subtotal.Add(c.DeliveryFee).Add(c.Taxes).Sub(c.Discount)
}
