package handler

import (
	"net/http"

	"github.com/LegalDragon/funtime-identity/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

// PartnerHandler serves the key-gated partner surface.
type PartnerHandler struct{}

func NewPartnerHandler() *PartnerHandler {
	return &PartnerHandler{}
}

// GET /partner/me — echoes the partner identity resolved by the key gate.
func (h *PartnerHandler) Me(c *gin.Context) {
	key, ok := middleware.PartnerKey(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"partner_slug": key.PartnerSlug,
		"partner_name": key.PartnerName,
		"scopes":       key.Scopes,
	})
}
