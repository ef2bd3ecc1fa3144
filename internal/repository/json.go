package repository

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetJSON decodes the value stored under key into dst. It reports false when
// the key is absent.
func GetJSON(ctx context.Context, store LocalStore, key string, dst any) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, store LocalStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Put(ctx, key, raw)
}

// PutJSONMany encodes every value and stores them together.
func PutJSONMany(ctx context.Context, store LocalStore, values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		encoded[k] = raw
	}
	return store.PutMany(ctx, encoded)
}
