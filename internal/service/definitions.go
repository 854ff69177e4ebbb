package service

import (
	"context"

	"github.com/fjod/food_cart/internal/cache"
	"github.com/fjod/food_cart/internal/domain"
	"github.com/fjod/food_cart/internal/engine"
)

type Catalog interface {
	GetRestaurant(ctx context.Context, id string) (*domain.Restaurant, error)
	GetMenuItem(ctx context.Context, restaurantID, itemID string) (*domain.MenuItem, error)
}

type AddressBook interface {
	Get(ctx context.Context, userID, addressID string) (*domain.Address, error)
}

type CheckoutPublisher interface {
	Publish(ctx context.Context, snapshot *domain.CheckoutSnapshot) error
}

type Dependencies struct {
	Catalog   Catalog
	Addresses AddressBook
	Publisher CheckoutPublisher
	Pricer    engine.Pricer
	// Cache is optional; without it carts live only in memory.
	Cache cache.CartCache
}

type CheckoutRequest struct {
	AddressID     string               `json:"address_id"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}
