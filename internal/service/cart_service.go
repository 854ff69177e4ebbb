package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/food_cart/internal/cache"
	"github.com/fjod/food_cart/internal/domain"
	"github.com/fjod/food_cart/internal/engine"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Option func(*CartService)

func WithCurrency(currency string) Option {
	return func(s *CartService) { s.currency = currency }
}

func WithClock(fn func() time.Time) Option {
	return func(s *CartService) { s.now = fn }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *CartService) { s.newID = fn }
}

func WithPersistTimeout(d time.Duration) Option {
	return func(s *CartService) { s.persistTimeout = d }
}

type session struct {
	engine   *engine.Engine
	lastSeen time.Time
}

// CartService keeps one engine per session and mirrors every cart change
// into the snapshot cache.
type CartService struct {
	catalog   Catalog
	addresses AddressBook
	publisher CheckoutPublisher
	pricer    engine.Pricer
	cache     cache.CartCache
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	sfg      singleflight.Group // one snapshot load per session

	currency       string
	persistTimeout time.Duration
	now            func() time.Time
	newID          func() string
}

func NewCartService(deps Dependencies, logger *zap.Logger, opts ...Option) *CartService {
	s := &CartService{
		catalog:        deps.Catalog,
		addresses:      deps.Addresses,
		publisher:      deps.Publisher,
		pricer:         deps.Pricer,
		cache:          deps.Cache,
		logger:         logger,
		sessions:       make(map[string]*session),
		currency:       "INR",
		persistTimeout: time.Second,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CartService) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	e, err := s.engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.Cart(), nil
}

func (s *CartService) ItemCount(ctx context.Context, sessionID string) (int, error) {
	e, err := s.engine(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return e.ItemCount(), nil
}

// AddItem resolves the restaurant and item from the catalog so clients
// cannot choose their own prices.
func (s *CartService) AddItem(ctx context.Context, sessionID, restaurantID, itemID string, quantity int) (*domain.Cart, error) {
	e, err := s.engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	restaurant, err := s.catalog.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant %s: %w", restaurantID, err)
	}
	if !restaurant.IsOpen {
		return nil, fmt.Errorf("%s: %w", restaurant.Name, ErrRestaurantClosed)
	}

	item, err := s.catalog.GetMenuItem(ctx, restaurantID, itemID)
	if err != nil {
		return nil, fmt.Errorf("get menu item %s: %w", itemID, err)
	}
	if !item.IsAvailable {
		return nil, fmt.Errorf("%s: %w", item.Name, ErrItemUnavailable)
	}

	return e.AddItem(*item, restaurant.Ref(), quantity)
}

func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, lineID string, quantity int) (*domain.Cart, error) {
	e, err := s.engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.SetQuantity(lineID, quantity)
}

func (s *CartService) RemoveLine(ctx context.Context, sessionID, lineID string) (*domain.Cart, error) {
	e, err := s.engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.RemoveLine(lineID)
}

func (s *CartService) ClearCart(ctx context.Context, sessionID string) error {
	e, err := s.engine(ctx, sessionID)
	if err != nil {
		return err
	}
	e.Clear()
	return nil
}

func (s *CartService) ApplyCoupon(ctx context.Context, sessionID, code string) (*domain.Cart, error) {
	e, err := s.engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cart, err := e.ApplyCoupon(ctx, code)
	if err != nil && !errors.Is(err, engine.ErrInvalidCoupon) && !errors.Is(err, engine.ErrNoActiveCart) {
		s.logger.Error("coupon pricing failed",
			zap.String("session_id", sessionID),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	return cart, err
}

func (s *CartService) RemoveCoupon(ctx context.Context, sessionID string) (*domain.Cart, error) {
	e, err := s.engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.RemoveCoupon()
}

// Checkout freezes the cart into a snapshot, hands it to the publisher and
// clears the cart. The cart rejects changes until the hand-off is over; when
// publishing fails it is left untouched.
func (s *CartService) Checkout(ctx context.Context, sessionID string, req CheckoutRequest) (*domain.CheckoutSnapshot, error) {
	e, err := s.engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cart, err := e.BeginCheckout()
	if err != nil {
		return nil, err
	}
	placed := false
	defer func() { e.FinishCheckout(placed) }()
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%q: %w", req.PaymentMethod, ErrInvalidPaymentMethod)
	}

	address, err := s.addresses.Get(ctx, sessionID, req.AddressID)
	if err != nil {
		return nil, fmt.Errorf("get delivery address: %w", err)
	}

	snapshot := &domain.CheckoutSnapshot{
		CheckoutID:     s.newID(),
		SessionID:      sessionID,
		RestaurantID:   cart.RestaurantID,
		RestaurantName: cart.RestaurantName,
		Lines:          cart.Clone().Lines,
		Subtotal:       cart.Subtotal,
		DeliveryFee:    cart.DeliveryFee,
		Taxes:          cart.Taxes,
		Discount:       cart.Discount,
		Total:          cart.Total,
		Address:        *address,
		PaymentMethod:  req.PaymentMethod,
		Currency:       s.currency,
		CapturedAt:     s.now().UTC(),
	}
	if cart.Coupon != nil {
		snapshot.CouponCode = cart.Coupon.Code
	}

	if err := s.publisher.Publish(ctx, snapshot); err != nil {
		s.logger.Error("checkout publish failed",
			zap.String("session_id", sessionID),
			zap.String("checkout_id", snapshot.CheckoutID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("publish checkout: %w", err)
	}

	placed = true
	return snapshot, nil
}

// Run evicts idle sessions until ctx is done. Evicted carts stay in the
// snapshot cache and are reloaded on the next request.
func (s *CartService) Run(ctx context.Context, tick, maxIdle time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.EvictIdle(maxIdle); n > 0 {
				s.logger.Debug("evicted idle sessions", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *CartService) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (s *CartService) engine(ctx context.Context, sessionID string) (*engine.Engine, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	if e := s.lookup(sessionID); e != nil {
		return e, nil
	}

	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		if e := s.lookup(sessionID); e != nil {
			return e, nil
		}

		e := engine.New(s.pricer, engine.WithObserver(s.persist(sessionID)))
		if snapshot := s.loadSnapshot(ctx, sessionID); snapshot != nil {
			if err := e.Restore(snapshot); err != nil {
				s.logger.Warn("discarding invalid cart snapshot",
					zap.String("session_id", sessionID),
					zap.Error(err),
				)
				s.dropSnapshot(sessionID)
			}
		}

		s.mu.Lock()
		s.sessions[sessionID] = &session{engine: e, lastSeen: s.now()}
		s.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*engine.Engine), nil
}

func (s *CartService) lookup(sessionID string) *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	sess.lastSeen = s.now()
	return sess.engine
}

func (s *CartService) loadSnapshot(ctx context.Context, sessionID string) *domain.Cart {
	if s.cache == nil {
		return nil
	}

	// a cancelled request must not turn a stored cart into an empty one
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	cart, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cache get error", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil
	}
	return cart
}

// persist runs inside the engine's notification order, so the cache always
// ends with the latest state.
func (s *CartService) persist(sessionID string) engine.Observer {
	return func(cart *domain.Cart) {
		if s.cache == nil {
			return
		}
		if cart == nil {
			s.dropSnapshot(sessionID)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		defer cancel()
		if err := s.cache.Set(ctx, sessionID, cart); err != nil {
			s.logger.Warn("cache set error", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
}

func (s *CartService) dropSnapshot(sessionID string) {
	if s.cache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("cache invalidate error", zap.String("session_id", sessionID), zap.Error(err))
	}
}
