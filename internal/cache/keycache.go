// Package cache holds the in-process API-key validation cache.
//
// The cache is process-local with no cross-process invalidation: a key
// revoked on one instance stays served from peers' caches until their
// entries expire. TTLs are kept short (minutes) to bound that window.
package cache

import (
	"time"

	"github.com/LegalDragon/funtime-identity/internal/domain"
)

// KeyCache stores validation outcomes keyed by the exact secret string.
// A nil *domain.ApiKey entry is a cached "known invalid" result.
type KeyCache interface {
	Get(key string) (*domain.ApiKey, bool)
	Set(key string, value *domain.ApiKey, ttl time.Duration)
	Invalidate(key string)
}
