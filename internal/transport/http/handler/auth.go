package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/LegalDragon/funtime-identity/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase this handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Register(ctx context.Context, email, password string) usecase.Result
	Login(ctx context.Context, email, password string) usecase.Result
	OtpSend(ctx context.Context, identifier string) usecase.Result
	OtpVerify(ctx context.Context, identifier, code string, firstName, lastName *string) usecase.Result
	ExternalLogin(ctx context.Context, identity usecase.ExternalIdentity, sharedSecret string) usecase.Result
	ForceAuth(ctx context.Context, userID int64, sharedSecret string) usecase.Result
	ValidateToken(ctx context.Context, raw string) usecase.TokenValidation
}

type AuthHandler struct {
	auth   authUsecaser
	logger *slog.Logger
}

func NewAuthHandler(auth authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger.With("component", "auth_handler")}
}

type registerRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writeResult(c, h.auth.Register(c.Request.Context(), req.Email, req.Password))
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writeResult(c, h.auth.Login(c.Request.Context(), req.Email, req.Password))
}

type otpSendRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// POST /auth/otp/send
func (h *AuthHandler) OtpSend(c *gin.Context) {
	var req otpSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writeResult(c, h.auth.OtpSend(c.Request.Context(), req.Identifier))
}

type otpVerifyRequest struct {
	Identifier string  `json:"identifier" binding:"required"`
	Code       string  `json:"code"       binding:"required,len=6,numeric"`
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
}

// POST /auth/otp/verify
func (h *AuthHandler) OtpVerify(c *gin.Context) {
	var req otpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writeResult(c, h.auth.OtpVerify(c.Request.Context(), req.Identifier, req.Code, req.FirstName, req.LastName))
}

type externalLoginRequest struct {
	Provider       string  `json:"provider"         binding:"required"`
	ProviderUserID string  `json:"provider_user_id" binding:"required"`
	ProviderEmail  *string `json:"provider_email"   binding:"omitempty,email"`
	DisplayName    *string `json:"display_name"`
	SharedSecret   string  `json:"shared_secret"    binding:"required"`
}

// POST /s2s/external-login — server-to-server only.
func (h *AuthHandler) ExternalLogin(c *gin.Context) {
	var req externalLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writeResult(c, h.auth.ExternalLogin(c.Request.Context(), usecase.ExternalIdentity{
		Provider:       req.Provider,
		ProviderUserID: req.ProviderUserID,
		ProviderEmail:  req.ProviderEmail,
		DisplayName:    req.DisplayName,
	}, req.SharedSecret))
}

type forceAuthRequest struct {
	UserID       int64  `json:"user_id"       binding:"required"`
	SharedSecret string `json:"shared_secret" binding:"required"`
}

// POST /s2s/force-auth — server-to-server only.
func (h *AuthHandler) ForceAuth(c *gin.Context) {
	var req forceAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writeResult(c, h.auth.ForceAuth(c.Request.Context(), req.UserID, req.SharedSecret))
}

type validateTokenResponse struct {
	Valid       bool    `json:"valid"`
	UserID      int64   `json:"user_id,omitempty"`
	Email       *string `json:"email,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Message     string  `json:"message"`
}

// GET /auth/validate
func (h *AuthHandler) ValidateToken(c *gin.Context) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if raw == "" {
		c.JSON(http.StatusUnauthorized, validateTokenResponse{Message: "missing token"})
		return
	}

	v := h.auth.ValidateToken(c.Request.Context(), raw)
	status := http.StatusOK
	if !v.Valid {
		status = http.StatusUnauthorized
	}
	c.JSON(status, validateTokenResponse{
		Valid:       v.Valid,
		UserID:      v.UserID,
		Email:       v.Email,
		PhoneNumber: v.PhoneNumber,
		Message:     v.Message,
	})
}
