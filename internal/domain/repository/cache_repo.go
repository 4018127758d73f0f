package repository

import (
	"time"
)

// CacheRepository defines operations against the shared TTL key-value store.
// Get returns apperrors.ErrNotFound for absent keys; any other error means the
// backend itself failed and the caller treats it as fatal for the request.
type CacheRepository interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string) (string, error)
	// Delete removes one or more keys in a single round-trip.
	Delete(keys ...string) error
	Exists(key string) (bool, error)
	Increment(key string) (int64, error)
	// SetNX sets the key only if it does not exist yet.
	// Returns true when the key was created.
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
}
