package service

import "errors"

var (
	ErrMissingSession       = errors.New("missing session id")
	ErrItemUnavailable      = errors.New("menu item is not available")
	ErrRestaurantClosed     = errors.New("restaurant is closed")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)
