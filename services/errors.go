package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderItemNotFound   = errors.New("order item not found")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrEmptyOrder          = errors.New("order has no valid items")
	ErrOrderAlreadyPaid    = errors.New("order has already been paid")
	ErrMissingReference    = errors.New("callback carries no transaction reference")
	ErrOrderLocked         = errors.New("order is paid or cancelled and can no longer be modified")
)

// InvalidStatusError is returned when a status outside the order status enum is requested.
type InvalidStatusError struct {
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q", e.Status)
}

func (e *InvalidStatusError) Unwrap() error { return ErrInvalidStatus }

// UnsupportedProviderError is returned for a provider that is not registered.
type UnsupportedProviderError struct {
	Provider  string
	Available []string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported payment provider %q (available: %s)", e.Provider, strings.Join(e.Available, ", "))
}
