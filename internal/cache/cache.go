package cache

import (
	"context"
	"errors"

	"github.com/fjod/food_cart/internal/domain"
)

// CartCache keeps the last published cart of a session so a restarted
// process can resume it.
type CartCache interface {
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)
	Set(ctx context.Context, sessionID string, cart *domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
