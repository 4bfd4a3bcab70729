package middleware

import (
	"context"
	"net/http"

	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/gin-gonic/gin"
)

// APIKeyHeader is the fixed header partner services send their key in.
const APIKeyHeader = "X-API-Key"

// ContextAPIKeyKey is where the gate stores the resolved partner key.
const ContextAPIKeyKey = "apiKey"

const errForbidden = "Forbidden"

// keyAuthenticator is the subset of ApiKeyUsecase the gate needs.
type keyAuthenticator interface {
	Validate(ctx context.Context, key string) (*domain.ApiKey, error)
	RecordUsage(ctx context.Context, key string)
}

// APIKeyOptions tunes the gate per route group.
type APIKeyOptions struct {
	// RequiredScope must be present on the key; empty means any valid key.
	RequiredScope string
	// AllowTokenFallback admits requests without a key header when an
	// authenticated bearer identity is already on the context.
	AllowTokenFallback bool
}

// APIKey gates a route group on a valid partner key: header present,
// key valid, caller IP on the allow-list (exact match — CIDR ranges are
// not supported) and the required scope held. Usage accounting runs
// fire-and-forget so it can never slow down or fail the request.
func APIKey(keys keyAuthenticator, opts APIKeyOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(APIKeyHeader)
		if raw == "" {
			if opts.AllowTokenFallback {
				if _, ok := UserID(c); ok {
					c.Next()
					return
				}
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		key, err := keys.Validate(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		if !key.AllowsIP(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errForbidden})
			return
		}
		if opts.RequiredScope != "" && !key.HasScope(opts.RequiredScope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errForbidden})
			return
		}

		c.Set(ContextAPIKeyKey, key)
		go keys.RecordUsage(context.WithoutCancel(c.Request.Context()), raw)

		c.Next()
	}
}

// PartnerKey extracts the resolved key set by APIKey.
func PartnerKey(c *gin.Context) (*domain.ApiKey, bool) {
	v, ok := c.Get(ContextAPIKeyKey)
	if !ok {
		return nil, false
	}
	key, ok := v.(*domain.ApiKey)
	return key, ok
}
