// Package storage defines the key-value contract the cart persists through
// and the decorators shared by every backend.
package storage

import (
	"context"
	"errors"
)

// DefaultKey is the key the mobile application stores its cart under.
const DefaultKey = "@GoMarketPlace:products"

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// KV is an asynchronous string key-value store.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
