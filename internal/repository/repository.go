// Package repository defines the key-value persistence port the storefront
// core is written against, plus the key layout and JSON helpers shared by
// every backend.
//
// The port is deliberately small (get/set/remove by string key) so that the
// same core runs on SQLite, Redis, or the in-memory fake used by tests.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Persistence keys. Values are JSON documents.
const (
	UsersKey     = "users"
	AuthStoreKey = "auth-store"
	// JWTSecretKey holds the token signing secret when none is configured.
	JWTSecretKey = "jwt-secret"
	cartPrefix   = "cart_"
)

// CartKey returns the key holding the cart of the given account.
func CartKey(accountID string) string {
	return cartPrefix + accountID
}

// ErrCorrupt is returned by GetJSON when a stored value does not decode.
var ErrCorrupt = errors.New("repository: stored value is not valid JSON")

// KeyValueStore is the durable, string-keyed persistence substrate.
//
// Get returns (nil, false, nil) when the key is absent; an error means the
// backend itself failed. Set overwrites the whole value.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// GetJSON loads key into dst. It reports whether the key existed. A value that
// fails to decode is reported as ErrCorrupt (wrapped with the decode error).
func GetJSON(ctx context.Context, kv KeyValueStore, key string, dst any) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("repository: reading %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("%w: key %q: %w", ErrCorrupt, key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, kv KeyValueStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("repository: encoding %q: %w", key, err)
	}
	if err := kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("repository: writing %q: %w", key, err)
	}
	return nil
}
