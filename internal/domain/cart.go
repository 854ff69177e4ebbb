package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlat       DiscountType = "flat"
)

// MenuItem is the catalog view of a dish. The engine never mutates it.
type MenuItem struct {
	ID            string           `json:"id"`
	RestaurantID  string           `json:"restaurant_id"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	IsVeg         bool             `json:"is_veg"`
	IsBestSeller  bool             `json:"is_best_seller"`
	IsAvailable   bool             `json:"is_available"`
}

// RestaurantRef is the subset of a restaurant the cart needs for pricing.
type RestaurantRef struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	MinOrder    decimal.Decimal `json:"min_order"`
}

type CartLine struct {
	ID        string          `json:"id"`
	MenuItem  MenuItem        `json:"menu_item"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Coupon holds the terms returned by a pricer together with the discount
// currently in effect for the cart it is attached to.
type Coupon struct {
	Code           string           `json:"code"`
	Title          string           `json:"title,omitempty"`
	Description    string           `json:"description,omitempty"`
	DiscountType   DiscountType     `json:"discount_type"`
	DiscountValue  decimal.Decimal  `json:"discount_value"`
	MaxDiscount    *decimal.Decimal `json:"max_discount,omitempty"`
	MinOrder       decimal.Decimal  `json:"min_order"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
}

// Cart is treated as immutable once published by the engine: every mutation
// produces a new value with a higher Version.
type Cart struct {
	RestaurantID   string          `json:"restaurant_id"`
	RestaurantName string          `json:"restaurant_name"`
	MinOrder       decimal.Decimal `json:"min_order"`
	Lines          []CartLine      `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	Taxes          decimal.Decimal `json:"taxes"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	Coupon         *Coupon         `json:"coupon_applied,omitempty"`
	Version        uint64          `json:"version"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers can build the next state without
// touching the published one.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Lines = make([]CartLine, len(c.Lines))
	copy(out.Lines, c.Lines)
	if c.Coupon != nil {
		coupon := *c.Coupon
		out.Coupon = &coupon
	}
	return &out
}

func (c *Cart) FindLine(lineID string) (int, bool) {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return i, true
		}
	}
	return -1, false
}

func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}
