package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/food_cart/internal/cache"
	"github.com/fjod/food_cart/internal/domain"
	"github.com/fjod/food_cart/internal/repository"
)

type mockCatalog struct {
	restaurants map[string]*domain.Restaurant
	items       map[string]*domain.MenuItem
}

func (m *mockCatalog) GetRestaurant(_ context.Context, id string) (*domain.Restaurant, error) {
	r, ok := m.restaurants[id]
	if !ok {
		return nil, repository.ErrRestaurantNotFound
	}
	return r, nil
}

func (m *mockCatalog) GetMenuItem(_ context.Context, restaurantID, itemID string) (*domain.MenuItem, error) {
	item, ok := m.items[itemID]
	if !ok || item.RestaurantID != restaurantID {
		return nil, repository.ErrMenuItemNotFound
	}
	return item, nil
}

type mockAddresses struct {
	m         sync.RWMutex
	addresses map[string]domain.Address
}

func (m *mockAddresses) Get(_ context.Context, userID, addressID string) (*domain.Address, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	a, ok := m.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, repository.ErrAddressNotFound
	}
	return &a, nil
}

type mockCache struct {
	m           sync.RWMutex
	carts       map[string]*domain.Cart
	err         error
	delay       time.Duration
	getCalls    atomic.Int32
	deleteCalls atomic.Int32
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, sessionID string) (*domain.Cart, error) {
	m.getCalls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[sessionID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (m *mockCache) Set(_ context.Context, sessionID string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[sessionID] = cart
	return m.err
}

func (m *mockCache) Delete(_ context.Context, sessionID string) error {
	m.deleteCalls.Add(1)
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, sessionID)
	return m.err
}

func (m *mockCache) getCart(sessionID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[sessionID]
}

func (m *mockCache) put(sessionID string, cart *domain.Cart) {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[sessionID] = cart
}

type mockPublisher struct {
	m         sync.RWMutex
	published []*domain.CheckoutSnapshot
	err       error
	// onPublish runs before the snapshot is recorded, outside the lock.
	onPublish func(snapshot *domain.CheckoutSnapshot)
}

func (m *mockPublisher) Publish(_ context.Context, snapshot *domain.CheckoutSnapshot) error {
	if m.onPublish != nil {
		m.onPublish(snapshot)
	}
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, snapshot)
	return nil
}

func (m *mockPublisher) count() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return len(m.published)
}

type pricerFunc func(ctx context.Context, req domain.PriceRequest) (*domain.Coupon, error)

func (f pricerFunc) Price(ctx context.Context, req domain.PriceRequest) (*domain.Coupon, error) {
	return f(ctx, req)
}

type fakeClock struct {
	m   sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.m.Lock()
	defer c.m.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.m.Lock()
	defer c.m.Unlock()
	c.now = c.now.Add(d)
}
