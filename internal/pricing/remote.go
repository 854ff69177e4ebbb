package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/food_cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var ErrPricingUnavailable = errors.New("coupon pricing service unavailable")

type priceRequestDTO struct {
	Code         string          `json:"code"`
	RestaurantID string          `json:"restaurant_id"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type priceResponseDTO struct {
	Code          string           `json:"code"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	DiscountType  string           `json:"discount_type"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	MaxDiscount   *decimal.Decimal `json:"max_discount,omitempty"`
	MinOrder      decimal.Decimal  `json:"min_order"`
}

type errorResponseDTO struct {
	Error string `json:"error"`
}

// Remote asks an external pricing service for coupon terms. Calls go
// through a circuit breaker; rejected codes do not count as failures.
type Remote struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[*domain.Coupon]
	logger   *zap.Logger
}

func NewRemote(baseURL string, timeout time.Duration, logger *zap.Logger) *Remote {
	r := &Remote{
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/coupons/price",
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
	r.breaker = gobreaker.NewCircuitBreaker[*domain.Coupon](gobreaker.Settings{
		Name:        "coupon-pricing",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrCouponRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return r
}

func (r *Remote) Price(ctx context.Context, req domain.PriceRequest) (*domain.Coupon, error) {
	coupon, err := r.breaker.Execute(func() (*domain.Coupon, error) {
		return r.call(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}
	return coupon, err
}

func (r *Remote) call(ctx context.Context, req domain.PriceRequest) (*domain.Coupon, error) {
	body, err := json.Marshal(priceRequestDTO{
		Code:         req.Code,
		RestaurantID: req.RestaurantID,
		Subtotal:     req.Subtotal,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal price request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build price request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusUnprocessableEntity:
		var e errorResponseDTO
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = "rejected by pricing service"
		}
		return nil, fmt.Errorf("%s: %w", e.Error, domain.ErrCouponRejected)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrPricingUnavailable, resp.StatusCode)
	}

	var dto priceResponseDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("decode price response failed: %w", err)
	}

	coupon := &domain.Coupon{
		Code:          dto.Code,
		Title:         dto.Title,
		Description:   dto.Description,
		DiscountType:  domain.DiscountType(dto.DiscountType),
		DiscountValue: dto.DiscountValue,
		MaxDiscount:   dto.MaxDiscount,
		MinOrder:      dto.MinOrder,
	}
	if coupon.DiscountType != domain.DiscountPercentage && coupon.DiscountType != domain.DiscountFlat {
		return nil, fmt.Errorf("pricing service returned unknown discount type %q", dto.DiscountType)
	}
	if coupon.Code == "" {
		coupon.Code = req.Code
	}
	coupon.DiscountAmount = coupon.DiscountFor(req.Subtotal)
	return coupon, nil
}
