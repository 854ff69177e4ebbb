package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/food_cart/internal/domain"
	"github.com/fjod/food_cart/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartService interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	ItemCount(ctx context.Context, sessionID string) (int, error)
	AddItem(ctx context.Context, sessionID, restaurantID, itemID string, quantity int) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, sessionID, lineID string, quantity int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, sessionID, lineID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, sessionID string) error
	ApplyCoupon(ctx context.Context, sessionID, code string) (*domain.Cart, error)
	RemoveCoupon(ctx context.Context, sessionID string) (*domain.Cart, error)
	Checkout(ctx context.Context, sessionID string, req service.CheckoutRequest) (*domain.CheckoutSnapshot, error)
}

type CartHandler struct {
	cartService CartService
	timeout     time.Duration
	logger      *zap.Logger
}

func NewCartHandler(cartService CartService, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		timeout:     timeout,
		logger:      logger,
	}
}

type AddItemRequestDTO struct {
	RestaurantID string `json:"restaurant_id"`
	MenuItemID   string `json:"menu_item_id"`
	Quantity     int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type ApplyCouponRequestDTO struct {
	Code string `json:"code"`
}

// CartResponse wraps the cart so that "no cart" is an explicit null.
type CartResponse struct {
	Cart      *domain.Cart `json:"cart"`
	ItemCount int          `json:"item_count"`
}

type ItemCountResponse struct {
	ItemCount int `json:"item_count"`
}

func newCartResponse(cart *domain.Cart) CartResponse {
	return CartResponse{Cart: cart, ItemCount: cart.ItemCount()}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.cartService.GetCart(ctx, getSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) ItemCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	count, err := h.cartService.ItemCount(ctx, getSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, ItemCountResponse{ItemCount: count})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.RestaurantID == "" || req.MenuItemID == "" {
		respondError(w, http.StatusBadRequest, "invalid_item", "restaurant_id and menu_item_id are required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	cart, err := h.cartService.AddItem(ctx, getSessionID(r.Context()), req.RestaurantID, req.MenuItemID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, newCartResponse(cart))
}

// UpdateQuantity accepts 0, which removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineID := chi.URLParam(r, "line_id")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	cart, err := h.cartService.UpdateQuantity(ctx, getSessionID(r.Context()), lineID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.cartService.RemoveLine(ctx, getSessionID(r.Context()), chi.URLParam(r, "line_id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cartService.ClearCart(ctx, getSessionID(r.Context())); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(nil))
}

func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ApplyCouponRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.cartService.ApplyCoupon(ctx, getSessionID(r.Context()), req.Code)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.cartService.RemoveCoupon(ctx, getSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req service.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.AddressID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "address_id is required")
		return
	}

	snapshot, err := h.cartService.Checkout(ctx, getSessionID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, snapshot)
}
