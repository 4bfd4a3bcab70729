package domain

import (
	"slices"
	"time"
)

// ApiKey is a partner credential for server-to-server calls. It is scoped to
// a partner, not a user.
type ApiKey struct {
	ID          int64
	PartnerSlug string // unique, human-readable
	PartnerName string
	Key         string // full secret, unique
	KeyPrefix   string // first chars of Key, for display

	Scopes []string

	// IPAllowlist entries are compared by exact string match against the
	// caller's IP. CIDR ranges are not supported.
	IPAllowlist     []string
	OriginAllowlist []string

	RateLimitPerMin int
	IsActive        bool
	ExpiresAt       *time.Time

	UsageCount int64
	LastUsedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
}

// IsValid reports whether the key may authenticate right now.
func (k *ApiKey) IsValid(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}

// HasScope is an exact membership test. A key with no scopes satisfies no
// scoped check.
func (k *ApiKey) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope)
}

// AllowsIP is an exact-match allow-list check. An empty list allows any IP.
func (k *ApiKey) AllowsIP(ip string) bool {
	if len(k.IPAllowlist) == 0 {
		return true
	}
	return slices.Contains(k.IPAllowlist, ip)
}
