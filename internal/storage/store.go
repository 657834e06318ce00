// Package storage persists the monitor state in a flat key-value namespace.
// Every backend scopes its keys with a prefix so Clear only removes what the
// monitor owns.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is the key-value contract the monitor relies on
type Store interface {
	// Get returns the value of key; found is false when the key is absent
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Clear removes every key under the store prefix
	Clear(ctx context.Context) error
	Close() error
}

// GetJSON decodes the value of key into dst. dst is left untouched when the
// key is absent.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
