package main

import (
	"context"
	"testing"

	"github.com/fjod/food_cart/internal/config"
	"github.com/fjod/food_cart/internal/domain"
	"github.com/fjod/food_cart/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type noOffers struct{}

func (noOffers) GetOffer(context.Context, string) (*domain.Offer, error) {
	return nil, nil
}

func TestNewPricer(t *testing.T) {
	tests := []struct {
		mode string
		want interface{}
	}{
		{config.PricerReference, pricing.Reference{}},
		{config.PricerCatalog, &pricing.Catalog{}},
		{config.PricerRemote, &pricing.Remote{}},
		{"", pricing.Reference{}},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := &config.Config{Pricer: config.PricerConfig{Mode: tt.mode, URL: "http://pricing.local"}}
			assert.IsType(t, tt.want, newPricer(cfg, noOffers{}, zap.NewNop()))
		})
	}
}

func TestDefaultPricerAcceptsAnyCode(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	coupon, err := newPricer(cfg, noOffers{}, zap.NewNop()).Price(context.Background(), domain.PriceRequest{
		Code:     "HELLO",
		Subtotal: decimal.NewFromInt(400),
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(coupon.DiscountAmount), "got %s", coupon.DiscountAmount)
}
