// Package pricing holds the coupon pricers the cart engine can be wired with.
package pricing

import (
	"context"

	"github.com/fjod/food_cart/internal/domain"
	"github.com/shopspring/decimal"
)

// Reference grants 10% of the subtotal for any non-empty code. It is the
// placeholder rule the mobile app shipped with and stays the default.
type Reference struct{}

func (Reference) Price(_ context.Context, req domain.PriceRequest) (*domain.Coupon, error) {
	if req.Code == "" {
		return nil, domain.ErrCouponRejected
	}
	c := &domain.Coupon{
		Code:          req.Code,
		Title:         "10% OFF",
		Description:   "Get 10% off on your order",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
	}
	c.DiscountAmount = c.DiscountFor(req.Subtotal)
	return c, nil
}
