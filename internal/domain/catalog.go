package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Restaurant struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Cuisines     []string        `json:"cuisine"`
	Rating       float64         `json:"rating"`
	ReviewCount  int             `json:"review_count"`
	DeliveryTime string          `json:"delivery_time"`
	DeliveryFee  decimal.Decimal `json:"delivery_fee"`
	MinOrder     decimal.Decimal `json:"min_order"`
	IsOpen       bool            `json:"is_open"`
	IsPureVeg    bool            `json:"is_pure_veg"`
	IsFeatured   bool            `json:"is_featured"`
	Address      string          `json:"address"`
	Offers       []Offer         `json:"offers,omitempty"`
}

func (r Restaurant) Ref() RestaurantRef {
	return RestaurantRef{
		ID:          r.ID,
		Name:        r.Name,
		DeliveryFee: r.DeliveryFee,
		MinOrder:    r.MinOrder,
	}
}

// Offer is a coupon definition as stored in the catalog. An empty
// RestaurantID means the offer is valid platform-wide.
type Offer struct {
	ID            string           `json:"id"`
	Code          string           `json:"code"`
	RestaurantID  string           `json:"restaurant_id,omitempty"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	DiscountType  DiscountType     `json:"discount_type"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	MaxDiscount   *decimal.Decimal `json:"max_discount,omitempty"`
	MinOrder      decimal.Decimal  `json:"min_order"`
	ValidTill     *time.Time       `json:"valid_till,omitempty"`
}

type SortBy string

const (
	SortRelevance     SortBy = "relevance"
	SortRating        SortBy = "rating"
	SortDeliveryTime  SortBy = "deliveryTime"
	SortCostLowToHigh SortBy = "costLowToHigh"
	SortCostHighToLow SortBy = "costHighToLow"
)

type RestaurantFilters struct {
	SortBy         SortBy
	Cuisines       []string
	VegOnly        bool
	MinRating      *float64
	WithOffers     bool
	MaxDeliveryFee *decimal.Decimal
}

type MenuCategory struct {
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}
