package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/food_cart/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Catalog interface {
	GetRestaurant(ctx context.Context, id string) (*domain.Restaurant, error)
	ListRestaurants(ctx context.Context, filters domain.RestaurantFilters) ([]*domain.Restaurant, error)
	GetMenu(ctx context.Context, restaurantID string) ([]domain.MenuCategory, error)
}

type RestaurantHandler struct {
	catalog Catalog
	timeout time.Duration
	logger  *zap.Logger
}

func NewRestaurantHandler(catalog Catalog, timeout time.Duration, logger *zap.Logger) *RestaurantHandler {
	return &RestaurantHandler{
		catalog: catalog,
		timeout: timeout,
		logger:  logger,
	}
}

type RestaurantsResponse struct {
	Restaurants []*domain.Restaurant `json:"restaurants"`
}

type MenuResponse struct {
	RestaurantID string                `json:"restaurant_id"`
	Categories   []domain.MenuCategory `json:"categories"`
}

func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filters, err := parseFilters(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	restaurants, err := h.catalog.ListRestaurants(ctx, filters)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if restaurants == nil {
		restaurants = []*domain.Restaurant{}
	}

	respondJSON(w, http.StatusOK, RestaurantsResponse{Restaurants: restaurants})
}

func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	restaurant, err := h.catalog.GetRestaurant(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, restaurant)
}

func (h *RestaurantHandler) Menu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	menu, err := h.catalog.GetMenu(ctx, id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if menu == nil {
		menu = []domain.MenuCategory{}
	}

	respondJSON(w, http.StatusOK, MenuResponse{RestaurantID: id, Categories: menu})
}

type filterError string

func (e filterError) Error() string { return string(e) }

// parseFilters reads ?sort=&cuisine=a,b&veg=true&min_rating=&offers=true&max_delivery_fee=
func parseFilters(r *http.Request) (domain.RestaurantFilters, error) {
	q := r.URL.Query()
	var f domain.RestaurantFilters

	switch sortBy := domain.SortBy(q.Get("sort")); sortBy {
	case "", domain.SortRelevance:
		f.SortBy = domain.SortRelevance
	case domain.SortRating, domain.SortDeliveryTime, domain.SortCostLowToHigh, domain.SortCostHighToLow:
		f.SortBy = sortBy
	default:
		return f, filterError("unknown sort: " + string(sortBy))
	}

	for _, raw := range q["cuisine"] {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				f.Cuisines = append(f.Cuisines, c)
			}
		}
	}

	var err error
	if v := q.Get("veg"); v != "" {
		if f.VegOnly, err = strconv.ParseBool(v); err != nil {
			return f, filterError("veg must be a boolean")
		}
	}
	if v := q.Get("offers"); v != "" {
		if f.WithOffers, err = strconv.ParseBool(v); err != nil {
			return f, filterError("offers must be a boolean")
		}
	}
	if v := q.Get("min_rating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil || rating < 0 || rating > 5 {
			return f, filterError("min_rating must be between 0 and 5")
		}
		f.MinRating = &rating
	}
	if v := q.Get("max_delivery_fee"); v != "" {
		fee, err := decimal.NewFromString(v)
		if err != nil || fee.IsNegative() {
			return f, filterError("max_delivery_fee must be a non-negative amount")
		}
		f.MaxDeliveryFee = &fee
	}

	return f, nil
}
