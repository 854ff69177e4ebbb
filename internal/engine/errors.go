package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrLineNotFound       = errors.New("cart line not found")
	ErrNoActiveCart       = errors.New("no active cart")
	ErrInvalidCoupon      = errors.New("invalid coupon code")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidItem        = errors.New("invalid menu item")
	ErrBelowMinimumOrder  = errors.New("subtotal below restaurant minimum order")
	ErrCheckoutInProgress = errors.New("checkout in progress")
)

// NotFoundError reports an operation on a line id that is not in the cart,
// or on any line when there is no cart.
type NotFoundError struct {
	LineID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cart line %q not found", e.LineID)
}

func (e *NotFoundError) Unwrap() error { return ErrLineNotFound }

type NoActiveCartError struct {
	Op string
}

func (e *NoActiveCartError) Error() string {
	return fmt.Sprintf("%s: no active cart", e.Op)
}

func (e *NoActiveCartError) Unwrap() error { return ErrNoActiveCart }

type InvalidCouponError struct {
	Code   string
	Reason string
}

func (e *InvalidCouponError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid coupon code %q", e.Code)
	}
	return fmt.Sprintf("invalid coupon code %q: %s", e.Code, e.Reason)
}

func (e *InvalidCouponError) Unwrap() error { return ErrInvalidCoupon }

type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d", e.Quantity)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

type InvalidItemError struct {
	ItemID string
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid menu item %q: %s", e.ItemID, e.Reason)
}

func (e *InvalidItemError) Unwrap() error { return ErrInvalidItem }

type BelowMinimumOrderError struct {
	Subtotal decimal.Decimal
	MinOrder decimal.Decimal
}

func (e *BelowMinimumOrderError) Error() string {
	return fmt.Sprintf("subtotal %s is below minimum order %s", e.Subtotal.StringFixed(2), e.MinOrder.StringFixed(2))
}

func (e *BelowMinimumOrderError) Unwrap() error { return ErrBelowMinimumOrder }
