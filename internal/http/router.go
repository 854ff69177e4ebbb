package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	AllowedOrigins     []string
}

type Handlers struct {
	Cart        *CartHandler
	Restaurants *RestaurantHandler
	Addresses   *AddressHandler
}

func NewRouter(cfg RouterConfig, logger *zap.Logger, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	r.Use(middleware.Compress(5))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", SessionHeader, RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/restaurants", func(r chi.Router) {
			r.Get("/", h.Restaurants.List)
			r.Get("/{id}", h.Restaurants.Get)
			r.Get("/{id}/menu", h.Restaurants.Menu)
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Get("/count", h.Cart.ItemCount)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{line_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{line_id}", h.Cart.RemoveLine)
				r.Post("/coupon", h.Cart.ApplyCoupon)
				r.Delete("/coupon", h.Cart.RemoveCoupon)
				r.Post("/checkout", h.Cart.Checkout)
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", h.Addresses.List)
				r.Post("/", h.Addresses.Create)
				r.Put("/{id}", h.Addresses.Update)
				r.Delete("/{id}", h.Addresses.Delete)
				r.Post("/{id}/default", h.Addresses.SetDefault)
			})
		})
	})

	return otelhttp.NewHandler(r, "food-cart")
}
