// Package cache backs the read side of the query API. Resolved
// valuations are recomputed every window, so entries carry short TTLs
// and a miss is never an error worth surfacing to callers.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the surface the query handlers depend on. Values are
// stored as JSON so memory and Redis backends behave the same way.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// GenerateKeyWithParams joins a prefix and parameters into a cache
// key, e.g. "resolutions:GOLD:1724800000:50".
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}
