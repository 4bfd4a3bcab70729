package handler

import (
	"errors"
	"net/http"

	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/LegalDragon/funtime-identity/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authResponse is the uniform wire shape for every authentication flow.
type authResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token,omitempty"`
	Message string       `json:"message"`
	User    *userPayload `json:"user,omitempty"`
}

type userPayload struct {
	ID              int64   `json:"id"`
	Email           *string `json:"email,omitempty"`
	PhoneNumber     *string `json:"phone_number,omitempty"`
	IsEmailVerified bool    `json:"is_email_verified"`
	IsPhoneVerified bool    `json:"is_phone_verified"`
	FirstName       *string `json:"first_name,omitempty"`
	LastName        *string `json:"last_name,omitempty"`
}

func writeResult(c *gin.Context, res usecase.Result) {
	c.JSON(statusFor(res), toResponse(res))
}

func toResponse(res usecase.Result) authResponse {
	out := authResponse{
		Success: res.Success,
		Token:   res.Token,
		Message: res.Message,
	}
	if res.User != nil {
		out.User = &userPayload{
			ID:              res.User.ID,
			Email:           res.User.Email,
			PhoneNumber:     res.User.PhoneNumber,
			IsEmailVerified: res.User.IsEmailVerified,
			IsPhoneVerified: res.User.IsPhoneVerified,
			FirstName:       res.User.FirstName,
			LastName:        res.User.LastName,
		}
	}
	return out
}

func statusFor(res usecase.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch {
	case res.Err == nil, errors.Is(res.Err, domain.ErrMisconfigured):
		return http.StatusInternalServerError
	case errors.Is(res.Err, domain.ErrUnauthorized),
		errors.Is(res.Err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(res.Err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(res.Err, domain.ErrUserNotFound),
		errors.Is(res.Err, domain.ErrExternalLoginNotFound):
		return http.StatusNotFound
	case errors.Is(res.Err, domain.ErrDuplicateEmail),
		errors.Is(res.Err, domain.ErrDuplicatePhone),
		errors.Is(res.Err, domain.ErrProviderTaken),
		errors.Is(res.Err, domain.ErrAlreadyLinkedProvider),
		errors.Is(res.Err, domain.ErrAlreadyHasCredential),
		errors.Is(res.Err, domain.ErrLastCredential):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
