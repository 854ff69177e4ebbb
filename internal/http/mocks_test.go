package http

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/food_cart/internal/domain"
	"github.com/fjod/food_cart/internal/repository"
	"github.com/fjod/food_cart/internal/service"
)

type call struct {
	method    string
	sessionID string
	args      []interface{}
}

type cartServiceMock struct {
	m        sync.RWMutex
	cart     *domain.Cart
	snapshot *domain.CheckoutSnapshot
	err      error
	calls    []call
}

func (c *cartServiceMock) record(method, sessionID string, args ...interface{}) {
	c.m.Lock()
	defer c.m.Unlock()
	c.calls = append(c.calls, call{method: method, sessionID: sessionID, args: args})
}

func (c *cartServiceMock) lastCall() call {
	c.m.RLock()
	defer c.m.RUnlock()
	if len(c.calls) == 0 {
		return call{}
	}
	return c.calls[len(c.calls)-1]
}

func (c *cartServiceMock) GetCart(_ context.Context, sessionID string) (*domain.Cart, error) {
	c.record("GetCart", sessionID)
	return c.cart, c.err
}

func (c *cartServiceMock) ItemCount(_ context.Context, sessionID string) (int, error) {
	c.record("ItemCount", sessionID)
	return c.cart.ItemCount(), c.err
}

func (c *cartServiceMock) AddItem(_ context.Context, sessionID, restaurantID, itemID string, quantity int) (*domain.Cart, error) {
	c.record("AddItem", sessionID, restaurantID, itemID, quantity)
	return c.cart, c.err
}

func (c *cartServiceMock) UpdateQuantity(_ context.Context, sessionID, lineID string, quantity int) (*domain.Cart, error) {
	c.record("UpdateQuantity", sessionID, lineID, quantity)
	return c.cart, c.err
}

func (c *cartServiceMock) RemoveLine(_ context.Context, sessionID, lineID string) (*domain.Cart, error) {
	c.record("RemoveLine", sessionID, lineID)
	return c.cart, c.err
}

func (c *cartServiceMock) ClearCart(_ context.Context, sessionID string) error {
	c.record("ClearCart", sessionID)
	return c.err
}

func (c *cartServiceMock) ApplyCoupon(_ context.Context, sessionID, code string) (*domain.Cart, error) {
	c.record("ApplyCoupon", sessionID, code)
	return c.cart, c.err
}

func (c *cartServiceMock) RemoveCoupon(_ context.Context, sessionID string) (*domain.Cart, error) {
	c.record("RemoveCoupon", sessionID)
	return c.cart, c.err
}

func (c *cartServiceMock) Checkout(_ context.Context, sessionID string, req service.CheckoutRequest) (*domain.CheckoutSnapshot, error) {
	c.record("Checkout", sessionID, req)
	if c.err != nil {
		return nil, c.err
	}
	return c.snapshot, nil
}

type catalogMock struct {
	m           sync.RWMutex
	restaurants []*domain.Restaurant
	menu        []domain.MenuCategory
	filters     domain.RestaurantFilters
	err         error
}

func (c *catalogMock) GetRestaurant(_ context.Context, id string) (*domain.Restaurant, error) {
	if c.err != nil {
		return nil, c.err
	}
	for _, r := range c.restaurants {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, repository.ErrRestaurantNotFound
}

func (c *catalogMock) ListRestaurants(_ context.Context, filters domain.RestaurantFilters) ([]*domain.Restaurant, error) {
	c.m.Lock()
	defer c.m.Unlock()
	c.filters = filters
	return c.restaurants, c.err
}

func (c *catalogMock) GetMenu(ctx context.Context, restaurantID string) ([]domain.MenuCategory, error) {
	if _, err := c.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	return c.menu, nil
}

func (c *catalogMock) lastFilters() domain.RestaurantFilters {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.filters
}

type addressBookMock struct {
	m         sync.RWMutex
	addresses map[string]domain.Address
	nextID    int
}

func newAddressBookMock() *addressBookMock {
	return &addressBookMock{addresses: map[string]domain.Address{}}
}

func (a *addressBookMock) List(_ context.Context, userID string) ([]domain.Address, error) {
	a.m.RLock()
	defer a.m.RUnlock()
	var out []domain.Address
	for _, addr := range a.addresses {
		if addr.UserID == userID {
			out = append(out, addr)
		}
	}
	return out, nil
}

func (a *addressBookMock) Get(_ context.Context, userID, addressID string) (*domain.Address, error) {
	a.m.RLock()
	defer a.m.RUnlock()
	addr, ok := a.addresses[addressID]
	if !ok || addr.UserID != userID {
		return nil, repository.ErrAddressNotFound
	}
	return &addr, nil
}

func (a *addressBookMock) Add(_ context.Context, address *domain.Address) error {
	a.m.Lock()
	defer a.m.Unlock()
	a.nextID++
	address.ID = fmt.Sprintf("addr-%d", a.nextID)
	a.addresses[address.ID] = *address
	return nil
}

func (a *addressBookMock) Update(_ context.Context, address *domain.Address) error {
	a.m.Lock()
	defer a.m.Unlock()
	existing, ok := a.addresses[address.ID]
	if !ok || existing.UserID != address.UserID {
		return repository.ErrAddressNotFound
	}
	address.IsDefault = existing.IsDefault
	a.addresses[address.ID] = *address
	return nil
}

func (a *addressBookMock) Remove(_ context.Context, userID, addressID string) error {
	a.m.Lock()
	defer a.m.Unlock()
	existing, ok := a.addresses[addressID]
	if !ok || existing.UserID != userID {
		return repository.ErrAddressNotFound
	}
	delete(a.addresses, addressID)
	return nil
}

func (a *addressBookMock) SetDefault(_ context.Context, userID, addressID string) error {
	a.m.Lock()
	defer a.m.Unlock()
	existing, ok := a.addresses[addressID]
	if !ok || existing.UserID != userID {
		return repository.ErrAddressNotFound
	}
	for id, addr := range a.addresses {
		if addr.UserID == userID {
			addr.IsDefault = id == addressID
			a.addresses[id] = addr
		}
	}
	return nil
}
