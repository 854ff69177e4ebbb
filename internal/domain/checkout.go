package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentUPI    PaymentMethod = "upi"
	PaymentCard   PaymentMethod = "card"
	PaymentWallet PaymentMethod = "wallet"
	PaymentCOD    PaymentMethod = "cod"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentUPI, PaymentCard, PaymentWallet, PaymentCOD:
		return true
	}
	return false
}

// CheckoutSnapshot is what the order-management backend receives. Total is
// the amount due; consumers must not recompute it.
type CheckoutSnapshot struct {
	CheckoutID     string          `json:"checkout_id"`
	SessionID      string          `json:"session_id"`
	RestaurantID   string          `json:"restaurant_id"`
	RestaurantName string          `json:"restaurant_name"`
	Lines          []CartLine      `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	Taxes          decimal.Decimal `json:"taxes"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	Address        Address         `json:"delivery_address"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	Currency       string          `json:"currency"`
	CapturedAt     time.Time       `json:"captured_at"`
}
