package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/food_cart/internal/domain"
	"github.com/fjod/food_cart/internal/repository"
)

type OfferStore interface {
	GetOffer(ctx context.Context, code string) (*domain.Offer, error)
}

// Catalog prices codes against the offers table of the restaurant catalog.
type Catalog struct {
	offers OfferStore
	now    func() time.Time
}

func NewCatalog(offers OfferStore) *Catalog {
	return &Catalog{offers: offers, now: time.Now}
}

func (c *Catalog) Price(ctx context.Context, req domain.PriceRequest) (*domain.Coupon, error) {
	offer, err := c.offers.GetOffer(ctx, strings.ToUpper(req.Code))
	if errors.Is(err, repository.ErrOfferNotFound) {
		return nil, fmt.Errorf("unknown code: %w", domain.ErrCouponRejected)
	}
	if err != nil {
		return nil, fmt.Errorf("load offer: %w", err)
	}

	if offer.ValidTill != nil && c.now().After(*offer.ValidTill) {
		return nil, fmt.Errorf("offer expired: %w", domain.ErrCouponRejected)
	}
	if offer.RestaurantID != "" && offer.RestaurantID != req.RestaurantID {
		return nil, fmt.Errorf("offer not valid for this restaurant: %w", domain.ErrCouponRejected)
	}
	if req.Subtotal.LessThan(offer.MinOrder) {
		return nil, fmt.Errorf("minimum order of %s required: %w", offer.MinOrder.StringFixed(2), domain.ErrCouponRejected)
	}

	coupon := &domain.Coupon{
		Code:          offer.Code,
		Title:         offer.Title,
		Description:   offer.Description,
		DiscountType:  offer.DiscountType,
		DiscountValue: offer.DiscountValue,
		MaxDiscount:   offer.MaxDiscount,
		MinOrder:      offer.MinOrder,
	}
	coupon.DiscountAmount = coupon.DiscountFor(req.Subtotal)
	return coupon, nil
}
