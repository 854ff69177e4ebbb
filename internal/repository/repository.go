package repository

import (
	"context"
	"errors"

	"github.com/fjod/food_cart/internal/domain"
)

var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrMenuItemNotFound   = errors.New("menu item not found")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrAddressNotFound    = errors.New("address not found")
	// ErrAddressConflict is returned when a concurrent change to the same
	// user's default address won.
	ErrAddressConflict = errors.New("address changed concurrently")
)

// CatalogRepository is the read model the cart is built from.
type CatalogRepository interface {
	GetRestaurant(ctx context.Context, id string) (*domain.Restaurant, error)
	ListRestaurants(ctx context.Context, filters domain.RestaurantFilters) ([]*domain.Restaurant, error)
	GetMenu(ctx context.Context, restaurantID string) ([]domain.MenuCategory, error)
	GetMenuItem(ctx context.Context, restaurantID, itemID string) (*domain.MenuItem, error)
	GetOffer(ctx context.Context, code string) (*domain.Offer, error)
	Close() error
}

// AddressRepository mirrors the saved-locations store of the mobile app.
// Every method is scoped to a user; addresses of other users are invisible.
type AddressRepository interface {
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Get(ctx context.Context, userID, addressID string) (*domain.Address, error)
	Add(ctx context.Context, address *domain.Address) error
	Update(ctx context.Context, address *domain.Address) error
	Remove(ctx context.Context, userID, addressID string) error
	SetDefault(ctx context.Context, userID, addressID string) error
}
