package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/LegalDragon/funtime-identity/internal/transport/http/middleware"
	"github.com/LegalDragon/funtime-identity/internal/usecase"
	"github.com/gin-gonic/gin"
)

// linkUsecaser is the subset of AuthUsecase the link endpoints need.
type linkUsecaser interface {
	LinkPhone(ctx context.Context, userID int64, phone, code string) usecase.Result
	LinkEmail(ctx context.Context, userID int64, email, password string) usecase.Result
	LinkExternal(ctx context.Context, userID int64, identity usecase.ExternalIdentity) usecase.Result
	UnlinkExternal(ctx context.Context, userID int64, provider string) usecase.Result
}

type LinkHandler struct {
	auth   linkUsecaser
	logger *slog.Logger
}

func NewLinkHandler(auth linkUsecaser, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{auth: auth, logger: logger.With("component", "link_handler")}
}

type linkPhoneRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code"  binding:"required,len=6,numeric"`
}

// POST /auth/link/phone (bearer)
func (h *LinkHandler) LinkPhone(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	var req linkPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writeResult(c, h.auth.LinkPhone(c.Request.Context(), userID, req.Phone, req.Code))
}

type linkEmailRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// POST /auth/link/email (bearer)
func (h *LinkHandler) LinkEmail(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	var req linkEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writeResult(c, h.auth.LinkEmail(c.Request.Context(), userID, req.Email, req.Password))
}

type linkExternalRequest struct {
	Provider       string  `json:"provider"         binding:"required"`
	ProviderUserID string  `json:"provider_user_id" binding:"required"`
	ProviderEmail  *string `json:"provider_email"   binding:"omitempty,email"`
	DisplayName    *string `json:"display_name"`
}

// POST /auth/link/external (bearer)
func (h *LinkHandler) LinkExternal(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	var req linkExternalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writeResult(c, h.auth.LinkExternal(c.Request.Context(), userID, usecase.ExternalIdentity{
		Provider:       req.Provider,
		ProviderUserID: req.ProviderUserID,
		ProviderEmail:  req.ProviderEmail,
		DisplayName:    req.DisplayName,
	}))
}

// DELETE /auth/link/external/:provider (bearer)
func (h *LinkHandler) UnlinkExternal(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	provider := c.Param("provider")
	if provider == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider is required"})
		return
	}
	writeResult(c, h.auth.UnlinkExternal(c.Request.Context(), userID, provider))
}
