package middleware

import (
	"net/http"
	"strings"

	"github.com/LegalDragon/funtime-identity/internal/usecase"
	"github.com/gin-gonic/gin"
)

const errUnauthorized = "Unauthorized"

// ContextUserIDKey is where Auth stores the authenticated user's id.
const ContextUserIDKey = "userID"

// tokenValidator is the subset of TokenService this middleware needs.
type tokenValidator interface {
	Validate(raw string) (*usecase.Identity, error)
}

// Auth validates a Bearer token and sets the user id in the gin context.
func Auth(tokens tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		identity, err := tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		c.Set(ContextUserIDKey, identity.UserID)
		c.Next()
	}
}

// UserID extracts the authenticated user id set by Auth.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
