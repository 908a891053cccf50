package store

import (
	"context"
	"errors"
)

// ErrNoProvider is returned when the cart is requested outside a provider scope.
var ErrNoProvider = errors.New("cart: must be used within a provider")

type contextKey struct{}

// NewContext returns a context carrying c. Everything derived from it is
// inside the provider scope of c.
func NewContext(ctx context.Context, c Cart) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the cart of the enclosing provider scope.
func FromContext(ctx context.Context) (Cart, error) {
	c, ok := ctx.Value(contextKey{}).(Cart)
	if !ok || c == nil {
		return nil, ErrNoProvider
	}
	return c, nil
}

// MustFromContext is like FromContext but panics outside a provider scope.
func MustFromContext(ctx context.Context) Cart {
	c, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return c
}
