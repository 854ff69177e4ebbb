package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/food_cart/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AddressBook interface {
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Get(ctx context.Context, userID, addressID string) (*domain.Address, error)
	Add(ctx context.Context, address *domain.Address) error
	Update(ctx context.Context, address *domain.Address) error
	Remove(ctx context.Context, userID, addressID string) error
	SetDefault(ctx context.Context, userID, addressID string) error
}

// AddressHandler serves the saved delivery locations of the session owner.
type AddressHandler struct {
	addresses AddressBook
	timeout   time.Duration
	logger    *zap.Logger
}

func NewAddressHandler(addresses AddressBook, timeout time.Duration, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{
		addresses: addresses,
		timeout:   timeout,
		logger:    logger,
	}
}

type AddressesResponse struct {
	Addresses []domain.Address `json:"addresses"`
}

func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addresses, err := h.addresses.List(ctx, getSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if addresses == nil {
		addresses = []domain.Address{}
	}

	respondJSON(w, http.StatusOK, AddressesResponse{Addresses: addresses})
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	address, ok := decodeAddress(w, r)
	if !ok {
		return
	}
	address.ID = ""
	address.UserID = getSessionID(r.Context())

	if err := h.addresses.Add(ctx, address); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, address)
}

func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	address, ok := decodeAddress(w, r)
	if !ok {
		return
	}
	address.ID = chi.URLParam(r, "id")
	address.UserID = getSessionID(r.Context())

	if err := h.addresses.Update(ctx, address); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	updated, err := h.addresses.Get(ctx, address.UserID, address.ID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.addresses.Remove(ctx, getSessionID(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getSessionID(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.addresses.SetDefault(ctx, userID, id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	address, err := h.addresses.Get(ctx, userID, id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, address)
}

func decodeAddress(w http.ResponseWriter, r *http.Request) (*domain.Address, bool) {
	var address domain.Address
	if err := json.NewDecoder(r.Body).Decode(&address); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return nil, false
	}

	var missing []string
	if strings.TrimSpace(address.Label) == "" {
		missing = append(missing, "label")
	}
	if strings.TrimSpace(address.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(address.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(address.Pincode) == "" {
		missing = append(missing, "pincode")
	}
	if len(missing) > 0 {
		respondError(w, http.StatusBadRequest, "invalid_address", "missing fields: "+strings.Join(missing, ", "))
		return nil, false
	}

	return &address, true
}
