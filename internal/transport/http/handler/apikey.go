package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/LegalDragon/funtime-identity/internal/transport/http/middleware"
	"github.com/LegalDragon/funtime-identity/internal/usecase"
	"github.com/gin-gonic/gin"
)

// keyAdminUsecaser is the subset of ApiKeyUsecase the admin endpoints need.
type keyAdminUsecaser interface {
	CreateKey(ctx context.Context, in usecase.CreateKeyInput) (*domain.ApiKey, error)
	UpdateKey(ctx context.Context, id int64, in usecase.UpdateKeyInput) (*domain.ApiKey, error)
	RegenerateKey(ctx context.Context, id int64) (*domain.ApiKey, error)
	DeleteKey(ctx context.Context, id int64) error
	ListKeys(ctx context.Context) ([]*domain.ApiKey, error)
}

type ApiKeyHandler struct {
	keys   keyAdminUsecaser
	logger *slog.Logger
}

func NewApiKeyHandler(keys keyAdminUsecaser, logger *slog.Logger) *ApiKeyHandler {
	return &ApiKeyHandler{keys: keys, logger: logger.With("component", "apikey_handler")}
}

type apiKeyPayload struct {
	ID              int64      `json:"id"`
	PartnerSlug     string     `json:"partner_slug"`
	PartnerName     string     `json:"partner_name"`
	Key             string     `json:"key,omitempty"` // full secret, only on create/regenerate
	KeyPrefix       string     `json:"key_prefix"`
	Scopes          []string   `json:"scopes"`
	IPAllowlist     []string   `json:"ip_allowlist"`
	OriginAllowlist []string   `json:"origin_allowlist"`
	RateLimitPerMin int        `json:"rate_limit_per_min"`
	IsActive        bool       `json:"is_active"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	UsageCount      int64      `json:"usage_count"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toApiKeyPayload(k *domain.ApiKey, includeSecret bool) apiKeyPayload {
	out := apiKeyPayload{
		ID:              k.ID,
		PartnerSlug:     k.PartnerSlug,
		PartnerName:     k.PartnerName,
		KeyPrefix:       k.KeyPrefix,
		Scopes:          k.Scopes,
		IPAllowlist:     k.IPAllowlist,
		OriginAllowlist: k.OriginAllowlist,
		RateLimitPerMin: k.RateLimitPerMin,
		IsActive:        k.IsActive,
		ExpiresAt:       k.ExpiresAt,
		UsageCount:      k.UsageCount,
		LastUsedAt:      k.LastUsedAt,
		CreatedAt:       k.CreatedAt,
	}
	if includeSecret {
		out.Key = k.Key
	}
	return out
}

type createKeyRequest struct {
	PartnerSlug     string     `json:"partner_slug" binding:"required,alphanum|contains=-,min=2,max=32"`
	PartnerName     string     `json:"partner_name" binding:"required"`
	Scopes          []string   `json:"scopes"`
	IPAllowlist     []string   `json:"ip_allowlist"`
	OriginAllowlist []string   `json:"origin_allowlist"`
	RateLimitPerMin int        `json:"rate_limit_per_min"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

// POST /admin/keys
func (h *ApiKeyHandler) Create(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	createdBy := ""
	if userID, ok := middleware.UserID(c); ok {
		createdBy = strconv.FormatInt(userID, 10)
	}

	key, err := h.keys.CreateKey(c.Request.Context(), usecase.CreateKeyInput{
		PartnerSlug:     req.PartnerSlug,
		PartnerName:     req.PartnerName,
		Scopes:          req.Scopes,
		IPAllowlist:     req.IPAllowlist,
		OriginAllowlist: req.OriginAllowlist,
		RateLimitPerMin: req.RateLimitPerMin,
		ExpiresAt:       req.ExpiresAt,
		CreatedBy:       createdBy,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePartner) {
			c.JSON(http.StatusConflict, gin.H{"error": domain.ErrDuplicatePartner.Error()})
			return
		}
		h.logger.Error("create api key", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusCreated, toApiKeyPayload(key, true))
}

// GET /admin/keys
func (h *ApiKeyHandler) List(c *gin.Context) {
	keys, err := h.keys.ListKeys(c.Request.Context())
	if err != nil {
		h.logger.Error("list api keys", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	out := make([]apiKeyPayload, 0, len(keys))
	for _, k := range keys {
		out = append(out, toApiKeyPayload(k, false))
	}
	c.JSON(http.StatusOK, out)
}

type updateKeyRequest struct {
	PartnerName     string     `json:"partner_name" binding:"required"`
	Scopes          []string   `json:"scopes"`
	IPAllowlist     []string   `json:"ip_allowlist"`
	OriginAllowlist []string   `json:"origin_allowlist"`
	RateLimitPerMin int        `json:"rate_limit_per_min" binding:"min=0"`
	IsActive        bool       `json:"is_active"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

// PUT /admin/keys/:id
func (h *ApiKeyHandler) Update(c *gin.Context) {
	id, err := keyID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key id"})
		return
	}

	var req updateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, err := h.keys.UpdateKey(c.Request.Context(), id, usecase.UpdateKeyInput{
		PartnerName:     req.PartnerName,
		Scopes:          req.Scopes,
		IPAllowlist:     req.IPAllowlist,
		OriginAllowlist: req.OriginAllowlist,
		RateLimitPerMin: req.RateLimitPerMin,
		IsActive:        req.IsActive,
		ExpiresAt:       req.ExpiresAt,
	})
	if err != nil {
		h.writeKeyError(c, "update api key", err)
		return
	}
	c.JSON(http.StatusOK, toApiKeyPayload(key, false))
}

// POST /admin/keys/:id/regenerate
func (h *ApiKeyHandler) Regenerate(c *gin.Context) {
	id, err := keyID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key id"})
		return
	}

	key, err := h.keys.RegenerateKey(c.Request.Context(), id)
	if err != nil {
		h.writeKeyError(c, "regenerate api key", err)
		return
	}
	c.JSON(http.StatusOK, toApiKeyPayload(key, true))
}

// DELETE /admin/keys/:id
func (h *ApiKeyHandler) Delete(c *gin.Context) {
	id, err := keyID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key id"})
		return
	}

	if err := h.keys.DeleteKey(c.Request.Context(), id); err != nil {
		h.writeKeyError(c, "delete api key", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ApiKeyHandler) writeKeyError(c *gin.Context, op string, err error) {
	if errors.Is(err, domain.ErrKeyNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": errKeyNotFound})
		return
	}
	h.logger.Error(op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
}

func keyID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
