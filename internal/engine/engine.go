package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/food_cart/internal/domain"
	"github.com/google/uuid"
)

// Pricer decides whether a coupon code applies to a cart and on what terms.
// Implementations return an error wrapping domain.ErrCouponRejected for codes
// that are not valid; any other error means no verdict was reached.
type Pricer interface {
	Price(ctx context.Context, req domain.PriceRequest) (*domain.Coupon, error)
}

// Observer receives every new cart state, or nil when the cart is destroyed.
// Observers run in mutation order and must not call back into the engine.
type Observer func(cart *domain.Cart)

type Option func(*Engine)

func WithObserver(fn Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, fn) }
}

func WithLineIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newLineID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// Engine owns zero or one cart. Each public method is atomic with respect to
// the cart: it either publishes a fully recomputed cart or leaves the previous
// one in place.
type Engine struct {
	mu      sync.Mutex
	cart    *domain.Cart
	version uint64

	// checkout is set between BeginCheckout and FinishCheckout.
	checkout        bool
	checkoutVersion uint64

	// notifyMu keeps observer calls in the same order as the swaps.
	notifyMu  sync.Mutex
	observers []Observer

	pricer    Pricer
	newLineID func() string
	now       func() time.Time
}

func New(pricer Pricer, opts ...Option) *Engine {
	e := &Engine{
		pricer:    pricer,
		newLineID: uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cart returns the current cart or nil. The returned value is shared and
// must be treated as read-only; use Clone to derive a modified copy.
func (e *Engine) Cart() *domain.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart
}

func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.ItemCount()
}

func (e *Engine) AddItem(item domain.MenuItem, restaurant domain.RestaurantRef, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}
	if err := validateInput(item, restaurant); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.checkout {
		e.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}

	var next *domain.Cart
	if e.cart == nil || e.cart.RestaurantID != restaurant.ID {
		// A different restaurant starts a fresh cart; the old lines and coupon are dropped.
		next = &domain.Cart{
			RestaurantID:   restaurant.ID,
			RestaurantName: restaurant.Name,
			MinOrder:       restaurant.MinOrder,
			DeliveryFee:    restaurant.DeliveryFee,
		}
	} else {
		next = e.cart.Clone()
	}

	merged := false
	for i := range next.Lines {
		if next.Lines[i].MenuItem.ID == item.ID {
			next.Lines[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		next.Lines = append(next.Lines, domain.CartLine{
			ID:       e.newLineID(),
			MenuItem: item,
			Quantity: quantity,
		})
	}

	return e.swapLocked(next), nil
}

func (e *Engine) SetQuantity(lineID string, quantity int) (*domain.Cart, error) {
	if quantity < 0 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}
	if quantity == 0 {
		return e.RemoveLine(lineID)
	}

	e.mu.Lock()
	if e.checkout {
		e.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	if e.cart == nil {
		e.mu.Unlock()
		return nil, &NotFoundError{LineID: lineID}
	}
	idx, ok := e.cart.FindLine(lineID)
	if !ok {
		e.mu.Unlock()
		return nil, &NotFoundError{LineID: lineID}
	}

	next := e.cart.Clone()
	next.Lines[idx].Quantity = quantity
	return e.swapLocked(next), nil
}

// RemoveLine drops a line. Removing the last line destroys the cart and the
// returned cart is nil.
func (e *Engine) RemoveLine(lineID string) (*domain.Cart, error) {
	e.mu.Lock()
	if e.checkout {
		e.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	if e.cart == nil {
		e.mu.Unlock()
		return nil, &NotFoundError{LineID: lineID}
	}
	idx, ok := e.cart.FindLine(lineID)
	if !ok {
		e.mu.Unlock()
		return nil, &NotFoundError{LineID: lineID}
	}

	next := e.cart.Clone()
	next.Lines = append(next.Lines[:idx], next.Lines[idx+1:]...)
	return e.swapLocked(next), nil
}

func (e *Engine) Clear() {
	e.mu.Lock()
	if e.cart == nil {
		e.mu.Unlock()
		return
	}
	e.swapLocked(nil)
}

// ApplyCoupon asks the pricer for the code's terms and attaches the coupon.
// The pricer runs without holding the engine lock; the discount is then
// computed against whatever the cart holds at that point.
func (e *Engine) ApplyCoupon(ctx context.Context, code string) (*domain.Cart, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	e.mu.Lock()
	if e.checkout {
		e.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	if e.cart == nil {
		e.mu.Unlock()
		return nil, &NoActiveCartError{Op: "apply coupon"}
	}
	req := domain.PriceRequest{
		Code:         code,
		RestaurantID: e.cart.RestaurantID,
		Subtotal:     e.cart.Subtotal,
	}
	e.mu.Unlock()

	if code == "" {
		return nil, &InvalidCouponError{Code: code, Reason: "code is empty"}
	}
	if e.pricer == nil {
		return nil, &InvalidCouponError{Code: code, Reason: "coupons are not accepted"}
	}

	coupon, err := e.pricer.Price(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrCouponRejected) {
			return nil, &InvalidCouponError{Code: code, Reason: err.Error()}
		}
		return nil, fmt.Errorf("price coupon %q: %w", code, err)
	}
	if coupon == nil {
		return nil, &InvalidCouponError{Code: code, Reason: "no terms returned"}
	}

	e.mu.Lock()
	if e.checkout {
		e.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	if e.cart == nil || e.cart.RestaurantID != req.RestaurantID {
		e.mu.Unlock()
		return nil, &NoActiveCartError{Op: "apply coupon"}
	}

	applied := *coupon
	if applied.Code == "" {
		applied.Code = code
	}
	next := e.cart.Clone()
	next.Coupon = &applied
	return e.swapLocked(next), nil
}

// RemoveCoupon is idempotent: without a cart or a coupon it changes nothing.
func (e *Engine) RemoveCoupon() (*domain.Cart, error) {
	e.mu.Lock()
	if e.checkout {
		e.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	if e.cart == nil || e.cart.Coupon == nil {
		defer e.mu.Unlock()
		return e.cart, nil
	}

	next := e.cart.Clone()
	next.Coupon = nil
	return e.swapLocked(next), nil
}

// ReadyForCheckout returns the cart if it can be handed to checkout.
func (e *Engine) ReadyForCheckout() (*domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readyLocked()
}

// BeginCheckout returns the cart to hand off and holds it: until
// FinishCheckout is called every mutation fails with ErrCheckoutInProgress.
func (e *Engine) BeginCheckout() (*domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.checkout {
		return nil, ErrCheckoutInProgress
	}
	cart, err := e.readyLocked()
	if err != nil {
		return nil, err
	}
	e.checkout = true
	e.checkoutVersion = cart.Version
	return cart, nil
}

// FinishCheckout releases the hold taken by BeginCheckout. When placed is
// true the cart is destroyed, provided it is still the one handed off.
func (e *Engine) FinishCheckout(placed bool) {
	e.mu.Lock()
	e.checkout = false
	if !placed || e.cart == nil || e.cart.Version != e.checkoutVersion {
		e.mu.Unlock()
		return
	}
	e.swapLocked(nil)
}

func (e *Engine) readyLocked() (*domain.Cart, error) {
	if e.cart == nil {
		return nil, &NoActiveCartError{Op: "checkout"}
	}
	if e.cart.Subtotal.LessThan(e.cart.MinOrder) {
		return nil, &BelowMinimumOrderError{Subtotal: e.cart.Subtotal, MinOrder: e.cart.MinOrder}
	}
	return e.cart, nil
}

// Restore replaces the engine state with a previously persisted cart. Stored
// totals are ignored and recomputed from the lines and coupon.
func (e *Engine) Restore(cart *domain.Cart) error {
	if cart == nil || len(cart.Lines) == 0 {
		e.Clear()
		return nil
	}
	if cart.RestaurantID == "" {
		return &InvalidItemError{Reason: "snapshot without restaurant id"}
	}

	seen := make(map[string]struct{}, len(cart.Lines))
	for _, l := range cart.Lines {
		if l.ID == "" {
			return &InvalidItemError{ItemID: l.MenuItem.ID, Reason: "line without id"}
		}
		if _, dup := seen[l.ID]; dup {
			return &InvalidItemError{ItemID: l.MenuItem.ID, Reason: "duplicate line id"}
		}
		seen[l.ID] = struct{}{}
		if l.Quantity < 1 {
			return &InvalidQuantityError{Quantity: l.Quantity}
		}
		if l.MenuItem.RestaurantID != "" && l.MenuItem.RestaurantID != cart.RestaurantID {
			return &InvalidItemError{ItemID: l.MenuItem.ID, Reason: "belongs to another restaurant"}
		}
		if l.MenuItem.Price.IsNegative() {
			return &InvalidItemError{ItemID: l.MenuItem.ID, Reason: "negative price"}
		}
	}

	e.mu.Lock()
	if cart.Version > e.version {
		e.version = cart.Version - 1
	}
	e.swapLocked(cart.Clone())
	return nil
}

// swapLocked installs next as the current cart and notifies observers.
// It must be called with e.mu held and returns with it released.
func (e *Engine) swapLocked(next *domain.Cart) *domain.Cart {
	if next != nil && len(next.Lines) == 0 {
		next = nil
	}
	if next != nil {
		e.version++
		next.Version = e.version
		next.UpdatedAt = e.now()
		recompute(next)
	}
	e.cart = next

	e.notifyMu.Lock()
	e.mu.Unlock()
	defer e.notifyMu.Unlock()

	for _, fn := range e.observers {
		fn(next)
	}
	return next
}

func validateInput(item domain.MenuItem, restaurant domain.RestaurantRef) error {
	switch {
	case item.ID == "":
		return &InvalidItemError{Reason: "missing id"}
	case restaurant.ID == "":
		return &InvalidItemError{ItemID: item.ID, Reason: "missing restaurant id"}
	case item.Price.IsNegative():
		return &InvalidItemError{ItemID: item.ID, Reason: "negative price"}
	case restaurant.DeliveryFee.IsNegative():
		return &InvalidItemError{ItemID: item.ID, Reason: "negative delivery fee"}
	case item.RestaurantID != "" && item.RestaurantID != restaurant.ID:
		return &InvalidItemError{ItemID: item.ID, Reason: "belongs to another restaurant"}
	}
	return nil
}
