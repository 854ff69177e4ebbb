package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/food_cart/internal/engine"
	"github.com/fjod/food_cart/internal/pricing"
	"github.com/fjod/food_cart/internal/repository"
	"github.com/fjod/food_cart/internal/service"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrMissingSession, http.StatusUnauthorized, "missing_session"},
	{engine.ErrLineNotFound, http.StatusNotFound, "line_not_found"},
	{repository.ErrRestaurantNotFound, http.StatusNotFound, "restaurant_not_found"},
	{repository.ErrMenuItemNotFound, http.StatusNotFound, "menu_item_not_found"},
	{repository.ErrAddressNotFound, http.StatusNotFound, "address_not_found"},
	{engine.ErrNoActiveCart, http.StatusConflict, "no_active_cart"},
	{service.ErrItemUnavailable, http.StatusConflict, "item_unavailable"},
	{service.ErrRestaurantClosed, http.StatusConflict, "restaurant_closed"},
	{engine.ErrCheckoutInProgress, http.StatusConflict, "checkout_in_progress"},
	{repository.ErrAddressConflict, http.StatusConflict, "address_conflict"},
	{engine.ErrInvalidCoupon, http.StatusUnprocessableEntity, "invalid_coupon"},
	{engine.ErrBelowMinimumOrder, http.StatusUnprocessableEntity, "below_minimum_order"},
	{engine.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{engine.ErrInvalidItem, http.StatusBadRequest, "invalid_item"},
	{service.ErrInvalidPaymentMethod, http.StatusBadRequest, "invalid_payment_method"},
	{pricing.ErrPricingUnavailable, http.StatusServiceUnavailable, "pricing_unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// handleServiceError converts domain errors to HTTP status codes. Anything
// unknown is logged and reported as a 500 without internals.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			respondError(w, m.status, m.code, err.Error())
			return
		}
	}

	logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", getRequestID(r.Context())),
		zap.Error(err),
	)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
