// Package rendercache stores rendered chart images keyed by a hash of the
// drawing they were rendered from. Redis backs it in multi-instance
// deployments; a process-local map serves single instances and tests.
package rendercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is a byte-blob cache with per-entry TTL.
type Cache interface {
	// Get returns the cached data; ok is false on a miss.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key builds "prefix:sha256(parts)". Parts are JSON-encoded so that
// structured inputs (a drawing, a layout) hash by content.
func Key(prefix string, parts ...interface{}) (string, error) {
	data, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("rendercache: key: %w", err)
	}
	sum := sha256.Sum256(data)
	return prefix + ":" + hex.EncodeToString(sum[:]), nil
}

// NullCache never stores anything.
type NullCache struct{}

// NewNullCache creates a null cache.
func NewNullCache() Cache {
	return &NullCache{}
}

func (c *NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (c *NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (c *NullCache) Delete(context.Context, string) error { return nil }

func (c *NullCache) Close() error { return nil }

var _ Cache = (*NullCache)(nil)
