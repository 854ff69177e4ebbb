package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/food_cart/internal/domain"
	"github.com/fjod/food_cart/internal/engine"
	"github.com/fjod/food_cart/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc       *CartService
	cache     *mockCache
	publisher *mockPublisher
	clock     *fakeClock
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture(t *testing.T, pricer engine.Pricer) *fixture {
	t.Helper()

	catalog := &mockCatalog{
		restaurants: map[string]*domain.Restaurant{
			"r1": {ID: "r1", Name: "Spice Garden", DeliveryFee: dec("30"), MinOrder: dec("149"), IsOpen: true},
			"r2": {ID: "r2", Name: "Closed Kitchen", DeliveryFee: dec("40"), IsOpen: false},
		},
		items: map[string]*domain.MenuItem{
			"m1": {ID: "m1", RestaurantID: "r1", Name: "Butter Chicken", Price: dec("200"), IsAvailable: true},
			"m2": {ID: "m2", RestaurantID: "r1", Name: "Laccha Paratha", Price: dec("60"), IsAvailable: false},
			"m3": {ID: "m3", RestaurantID: "r1", Name: "Garlic Naan", Price: dec("100"), IsAvailable: true},
			"m9": {ID: "m9", RestaurantID: "r2", Name: "Soup", Price: dec("90"), IsAvailable: true},
		},
	}
	addresses := &mockAddresses{addresses: map[string]domain.Address{
		"a1": {ID: "a1", UserID: "s1", Label: "Home", City: "Bengaluru"},
	}}

	f := &fixture{
		cache:     newMockCache(),
		publisher: &mockPublisher{},
		clock:     &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.svc = NewCartService(Dependencies{
		Catalog:   catalog,
		Addresses: addresses,
		Publisher: f.publisher,
		Pricer:    pricer,
		Cache:     f.cache,
	}, zap.NewNop(),
		WithClock(f.clock.Now),
		WithIDGenerator(func() string { return "checkout-1" }),
	)
	return f
}

func tenPercent() engine.Pricer {
	return pricerFunc(func(_ context.Context, req domain.PriceRequest) (*domain.Coupon, error) {
		if req.Code != "SAVE10" {
			return nil, fmt.Errorf("unknown code: %w", domain.ErrCouponRejected)
		}
		return &domain.Coupon{Code: req.Code, DiscountType: domain.DiscountPercentage, DiscountValue: dec("10")}, nil
	})
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestAddItem_PersistsSnapshot(t *testing.T) {
	f := newFixture(t, nil)

	cart, err := f.svc.AddItem(context.Background(), "s1", "r1", "m1", 2)
	require.NoError(t, err)
	assertDecimal(t, "400", cart.Subtotal)
	assertDecimal(t, "20", cart.Taxes)
	assertDecimal(t, "450", cart.Total)
	assert.Equal(t, "Spice Garden", cart.RestaurantName)

	stored := f.cache.getCart("s1")
	require.NotNil(t, stored)
	assert.Equal(t, cart.Version, stored.Version)
	assertDecimal(t, "450", stored.Total)
}

func TestAddItem_CatalogChecks(t *testing.T) {
	tests := []struct {
		name         string
		restaurantID string
		itemID       string
		wantErr      error
	}{
		{"unavailable item", "r1", "m2", ErrItemUnavailable},
		{"closed restaurant", "r2", "m9", ErrRestaurantClosed},
		{"unknown restaurant", "nope", "m1", repository.ErrRestaurantNotFound},
		{"item of another restaurant", "r1", "m9", repository.ErrMenuItemNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			cart, err := f.svc.AddItem(context.Background(), "s1", tt.restaurantID, tt.itemID, 1)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, cart)
			assert.Nil(t, f.cache.getCart("s1"))
		})
	}
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.AddItem(context.Background(), "s1", "r1", "m1", 0)
	assert.ErrorIs(t, err, engine.ErrInvalidQuantity)
}

func TestMissingSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.GetCart(ctx, "")
	assert.ErrorIs(t, err, ErrMissingSession)
	_, err = f.svc.AddItem(ctx, "", "r1", "m1", 1)
	assert.ErrorIs(t, err, ErrMissingSession)
	assert.ErrorIs(t, f.svc.ClearCart(ctx, ""), ErrMissingSession)
}

func TestSessionsAreIsolated(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "s1", "r1", "m1", 1)
	require.NoError(t, err)

	other, err := f.svc.GetCart(ctx, "s2")
	require.NoError(t, err)
	assert.Nil(t, other)
	assert.Nil(t, f.cache.getCart("s2"))

	count, err := f.svc.ItemCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetCart_SnapshotsAreKeyedBySession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.cache.put("s2", &domain.Cart{
		RestaurantID: "r1",
		Lines: []domain.CartLine{{
			ID:       "line-1",
			MenuItem: domain.MenuItem{ID: "m3", RestaurantID: "r1", Price: dec("100")},
			Quantity: 4,
		}},
	})

	mine, err := f.svc.GetCart(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, mine)

	theirs, err := f.svc.GetCart(ctx, "s2")
	require.NoError(t, err)
	require.NotNil(t, theirs)
	assert.Equal(t, 4, theirs.ItemCount())

	_, err = f.svc.AddItem(ctx, "s1", "r1", "m1", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, f.cache.getCart("s2").ItemCount(), "writes for s1 must not touch s2")
	assert.Equal(t, 1, f.cache.getCart("s1").ItemCount())
}

func TestGetCart_RestoresSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	f.cache.carts["s1"] = &domain.Cart{
		RestaurantID:   "r1",
		RestaurantName: "Spice Garden",
		MinOrder:       dec("149"),
		DeliveryFee:    dec("30"),
		Lines: []domain.CartLine{{
			ID:       "line-1",
			MenuItem: domain.MenuItem{ID: "m1", RestaurantID: "r1", Name: "Butter Chicken", Price: dec("200")},
			Quantity: 2,
		}},
		Total:   dec("1"), // stale, recomputed on restore
		Version: 5,
	}

	cart, err := f.svc.GetCart(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, cart)
	assertDecimal(t, "450", cart.Total)
	assert.Equal(t, uint64(5), cart.Version)

	updated, err := f.svc.UpdateQuantity(context.Background(), "s1", "line-1", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), updated.Version)
	assertDecimal(t, "240", updated.Total)
}

func TestGetCart_ConcurrentLoadsOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.cache.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.GetCart(context.Background(), "s1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.cache.getCalls.Load())
}

func TestGetCart_CacheErrorTreatedAsMiss(t *testing.T) {
	f := newFixture(t, nil)
	f.cache.err = errors.New("redis down")

	cart, err := f.svc.GetCart(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, cart)

	// persistence failures do not fail mutations
	cart, err = f.svc.AddItem(context.Background(), "s1", "r1", "m1", 1)
	require.NoError(t, err)
	assert.NotNil(t, cart)
}

func TestGetCart_CancelledRequestStillLoadsSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	f.cache.carts["s1"] = &domain.Cart{
		RestaurantID: "r1",
		Lines: []domain.CartLine{{
			ID:       "line-1",
			MenuItem: domain.MenuItem{ID: "m1", RestaurantID: "r1", Price: dec("200")},
			Quantity: 1,
		}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cart, err := f.svc.GetCart(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, cart)
	assert.Len(t, cart.Lines, 1)
}

func TestGetCart_InvalidSnapshotDiscarded(t *testing.T) {
	f := newFixture(t, nil)
	f.cache.carts["s1"] = &domain.Cart{
		RestaurantID: "r1",
		Lines: []domain.CartLine{{
			ID:       "line-1",
			MenuItem: domain.MenuItem{ID: "m1", RestaurantID: "r1", Price: dec("200")},
			Quantity: 0,
		}},
	}

	cart, err := f.svc.GetCart(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, cart)
	assert.Nil(t, f.cache.getCart("s1"))
	assert.Equal(t, int32(1), f.cache.deleteCalls.Load())
}

func TestRemoveLastLine_DeletesSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cart, err := f.svc.AddItem(ctx, "s1", "r1", "m1", 1)
	require.NoError(t, err)
	require.NotNil(t, f.cache.getCart("s1"))

	cart, err = f.svc.RemoveLine(ctx, "s1", cart.Lines[0].ID)
	require.NoError(t, err)
	assert.Nil(t, cart)
	assert.Nil(t, f.cache.getCart("s1"))

	_, err = f.svc.RemoveLine(ctx, "s1", "missing")
	assert.ErrorIs(t, err, engine.ErrLineNotFound)
}

func TestClearCart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "s1", "r1", "m1", 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.ClearCart(ctx, "s1"))

	cart, err := f.svc.GetCart(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, cart)
	assert.Nil(t, f.cache.getCart("s1"))
}

func TestApplyAndRemoveCoupon(t *testing.T) {
	f := newFixture(t, tenPercent())
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "s1", "r1", "m1", 2)
	require.NoError(t, err)

	cart, err := f.svc.ApplyCoupon(ctx, "s1", " save10 ")
	require.NoError(t, err)
	assertDecimal(t, "40", cart.Discount)
	assertDecimal(t, "410", cart.Total)
	require.NotNil(t, f.cache.getCart("s1").Coupon)

	_, err = f.svc.ApplyCoupon(ctx, "s1", "BOGUS")
	assert.ErrorIs(t, err, engine.ErrInvalidCoupon)

	cart, err = f.svc.RemoveCoupon(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, cart.Coupon)
	assertDecimal(t, "450", cart.Total)
	assert.Nil(t, f.cache.getCart("s1").Coupon)
}

func TestApplyCoupon_PricerFailure(t *testing.T) {
	failing := pricerFunc(func(context.Context, domain.PriceRequest) (*domain.Coupon, error) {
		return nil, errors.New("pricing backend timeout")
	})
	f := newFixture(t, failing)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "s1", "r1", "m1", 1)
	require.NoError(t, err)

	_, err = f.svc.ApplyCoupon(ctx, "s1", "SAVE10")
	require.Error(t, err)
	assert.NotErrorIs(t, err, engine.ErrInvalidCoupon)
}

func TestCheckout_Success(t *testing.T) {
	f := newFixture(t, tenPercent())
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "s1", "r1", "m1", 2)
	require.NoError(t, err)
	_, err = f.svc.ApplyCoupon(ctx, "s1", "SAVE10")
	require.NoError(t, err)

	snapshot, err := f.svc.Checkout(ctx, "s1", CheckoutRequest{AddressID: "a1", PaymentMethod: domain.PaymentUPI})
	require.NoError(t, err)

	assert.Equal(t, "checkout-1", snapshot.CheckoutID)
	assert.Equal(t, "s1", snapshot.SessionID)
	assert.Equal(t, "r1", snapshot.RestaurantID)
	assert.Equal(t, "SAVE10", snapshot.CouponCode)
	assert.Equal(t, "Home", snapshot.Address.Label)
	assert.Equal(t, "INR", snapshot.Currency)
	assert.Equal(t, f.clock.Now(), snapshot.CapturedAt)
	assertDecimal(t, "410", snapshot.Total)
	require.Len(t, snapshot.Lines, 1)

	assert.Equal(t, 1, f.publisher.count())

	cart, err := f.svc.GetCart(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, cart)
	assert.Nil(t, f.cache.getCart("s1"))
}

func TestCheckout_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture)
		req     CheckoutRequest
		wantErr error
	}{
		{
			name:    "no cart",
			setup:   func(*testing.T, *fixture) {},
			req:     CheckoutRequest{AddressID: "a1", PaymentMethod: domain.PaymentCOD},
			wantErr: engine.ErrNoActiveCart,
		},
		{
			name: "below minimum order",
			setup: func(t *testing.T, f *fixture) {
				_, err := f.svc.AddItem(context.Background(), "s1", "r1", "m3", 1)
				require.NoError(t, err)
			},
			req:     CheckoutRequest{AddressID: "a1", PaymentMethod: domain.PaymentCOD},
			wantErr: engine.ErrBelowMinimumOrder,
		},
		{
			name: "invalid payment method",
			setup: func(t *testing.T, f *fixture) {
				_, err := f.svc.AddItem(context.Background(), "s1", "r1", "m1", 1)
				require.NoError(t, err)
			},
			req:     CheckoutRequest{AddressID: "a1", PaymentMethod: "cheque"},
			wantErr: ErrInvalidPaymentMethod,
		},
		{
			name: "unknown address",
			setup: func(t *testing.T, f *fixture) {
				_, err := f.svc.AddItem(context.Background(), "s1", "r1", "m1", 1)
				require.NoError(t, err)
			},
			req:     CheckoutRequest{AddressID: "a2", PaymentMethod: domain.PaymentCard},
			wantErr: repository.ErrAddressNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			tt.setup(t, f)
			before, err := f.svc.GetCart(context.Background(), "s1")
			require.NoError(t, err)

			snapshot, err := f.svc.Checkout(context.Background(), "s1", tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, snapshot)
			assert.Equal(t, 0, f.publisher.count())

			after, err := f.svc.GetCart(context.Background(), "s1")
			require.NoError(t, err)
			assert.Same(t, before, after)
		})
	}
}

func TestCheckout_PublishFailureKeepsCart(t *testing.T) {
	f := newFixture(t, nil)
	f.publisher.err = errors.New("broker unavailable")
	ctx := context.Background()

	cart, err := f.svc.AddItem(ctx, "s1", "r1", "m1", 1)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, "s1", CheckoutRequest{AddressID: "a1", PaymentMethod: domain.PaymentWallet})
	require.Error(t, err)

	after, err := f.svc.GetCart(ctx, "s1")
	require.NoError(t, err)
	assert.Same(t, cart, after)

	// the cart is editable again once the failed hand-off is over
	after, err = f.svc.AddItem(ctx, "s1", "r1", "m3", 1)
	require.NoError(t, err)
	assert.Len(t, after.Lines, 2)
}

func TestCheckout_ChangesDuringHandOffAreRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cart, err := f.svc.AddItem(ctx, "s1", "r1", "m1", 1)
	require.NoError(t, err)
	lineID := cart.Lines[0].ID

	var duringErrs []error
	f.publisher.onPublish = func(*domain.CheckoutSnapshot) {
		_, err := f.svc.AddItem(ctx, "s1", "r1", "m3", 1)
		duringErrs = append(duringErrs, err)
		_, err = f.svc.UpdateQuantity(ctx, "s1", lineID, 5)
		duringErrs = append(duringErrs, err)
		_, err = f.svc.RemoveCoupon(ctx, "s1")
		duringErrs = append(duringErrs, err)
		_, err = f.svc.Checkout(ctx, "s1", CheckoutRequest{AddressID: "a1", PaymentMethod: domain.PaymentUPI})
		duringErrs = append(duringErrs, err)
	}

	snapshot, err := f.svc.Checkout(ctx, "s1", CheckoutRequest{AddressID: "a1", PaymentMethod: domain.PaymentUPI})
	require.NoError(t, err)
	require.Len(t, snapshot.Lines, 1)
	assertDecimal(t, "240", snapshot.Total)

	require.Len(t, duringErrs, 4)
	for _, err := range duringErrs {
		assert.ErrorIs(t, err, engine.ErrCheckoutInProgress)
	}
	assert.Equal(t, 1, f.publisher.count())

	after, err := f.svc.GetCart(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, after)

	f.publisher.onPublish = nil
	next, err := f.svc.AddItem(ctx, "s1", "r1", "m3", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, next.ItemCount())
}

func TestEvictIdle_ReloadsFromSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "s1", "r1", "m1", 3)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	assert.Equal(t, 0, f.svc.EvictIdle(30*time.Minute))

	f.clock.Advance(time.Hour)
	assert.Equal(t, 1, f.svc.EvictIdle(30*time.Minute))

	cart, err := f.svc.GetCart(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, cart)
	assert.Equal(t, 3, cart.ItemCount())
	assert.Equal(t, int32(2), f.cache.getCalls.Load())
}

func TestRun_EvictsUntilCancelled(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := f.svc.GetCart(ctx, "s1")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx, 10*time.Millisecond, time.Minute)
		close(done)
	}()

	require.Eventually(t, func() bool {
		f.svc.mu.Lock()
		defer f.svc.mu.Unlock()
		return len(f.svc.sessions) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNoCache_KeepsCartsInMemory(t *testing.T) {
	svc := NewCartService(Dependencies{
		Catalog: &mockCatalog{
			restaurants: map[string]*domain.Restaurant{"r1": {ID: "r1", IsOpen: true}},
			items:       map[string]*domain.MenuItem{"m1": {ID: "m1", RestaurantID: "r1", Price: dec("10"), IsAvailable: true}},
		},
	}, zap.NewNop())

	_, err := svc.AddItem(context.Background(), "s1", "r1", "m1", 1)
	require.NoError(t, err)

	cart, err := svc.GetCart(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, cart.ItemCount())
}
