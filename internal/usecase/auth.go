package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/LegalDragon/funtime-identity/config"
	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/LegalDragon/funtime-identity/internal/metrics"
)

// Result is the uniform outcome every authentication flow returns to the
// transport layer. Checked failures land here with Success=false and a
// human-readable message; only unexpected faults surface as Go errors.
type Result struct {
	Success bool
	Token   string
	Message string
	User    *UserInfo

	// Err carries the checked failure kind for transport-layer status
	// mapping. Nil on success and on internal faults (whose detail is
	// logged, not returned).
	Err error
}

// UserInfo is the externally visible slice of a user record.
type UserInfo struct {
	ID              int64
	Email           *string
	PhoneNumber     *string
	IsEmailVerified bool
	IsPhoneVerified bool
	FirstName       *string
	LastName        *string
}

// TokenValidation is the outcome of validating a bearer token.
type TokenValidation struct {
	Valid       bool
	UserID      int64
	Email       *string
	PhoneNumber *string
	Message     string
}

// AuthUsecase is the orchestrator: it composes the OTP engine, token
// service and linking engine into the public flows and gates the trusted
// server-to-server operations behind the shared secret.
type AuthUsecase struct {
	linking      *LinkingUsecase
	otp          *OtpUsecase
	tokens       *TokenService
	sharedSecret string
	logger       *slog.Logger
}

func NewAuthUsecase(linking *LinkingUsecase, otp *OtpUsecase, tokens *TokenService, sharedSecret string, logger *slog.Logger) *AuthUsecase {
	return &AuthUsecase{
		linking:      linking,
		otp:          otp,
		tokens:       tokens,
		sharedSecret: sharedSecret,
		logger:       logger.With("component", "auth"),
	}
}

func (u *AuthUsecase) Register(ctx context.Context, email, password string) Result {
	user, token, err := u.linking.Register(ctx, email, password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("register", "failure").Inc()
		return u.failure(ctx, err)
	}
	metrics.LoginsTotal.WithLabelValues("register", "success").Inc()
	return success(user, token, "account created")
}

func (u *AuthUsecase) Login(ctx context.Context, email, password string) Result {
	user, token, err := u.linking.Login(ctx, email, password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("password", "failure").Inc()
		return u.failure(ctx, err)
	}
	metrics.LoginsTotal.WithLabelValues("password", "success").Inc()
	return success(user, token, "logged in")
}

func (u *AuthUsecase) OtpSend(ctx context.Context, identifier string) Result {
	_, delivered, err := u.otp.Send(ctx, identifier)
	if err != nil {
		metrics.OtpSendsTotal.WithLabelValues("failure").Inc()
		return u.failure(ctx, err)
	}
	metrics.OtpSendsTotal.WithLabelValues("success").Inc()
	if !delivered {
		return Result{Success: true, Message: "code issued, delivery pending"}
	}
	return Result{Success: true, Message: "code sent"}
}

func (u *AuthUsecase) OtpVerify(ctx context.Context, identifier, code string, firstName, lastName *string) Result {
	user, token, err := u.linking.LoginOrRegisterByOtp(ctx, identifier, code, firstName, lastName)
	if err != nil {
		metrics.OtpVerifiesTotal.WithLabelValues("failure").Inc()
		return u.failure(ctx, err)
	}
	metrics.OtpVerifiesTotal.WithLabelValues("success").Inc()
	return success(user, token, "logged in")
}

func (u *AuthUsecase) LinkPhone(ctx context.Context, userID int64, phone, code string) Result {
	token, err := u.linking.LinkPhone(ctx, userID, phone, code)
	return u.linkResult(ctx, "phone", token, err)
}

func (u *AuthUsecase) LinkEmail(ctx context.Context, userID int64, email, password string) Result {
	token, err := u.linking.LinkEmail(ctx, userID, email, password)
	return u.linkResult(ctx, "email", token, err)
}

func (u *AuthUsecase) LinkExternal(ctx context.Context, userID int64, identity ExternalIdentity) Result {
	token, err := u.linking.LinkExternal(ctx, userID, identity)
	return u.linkResult(ctx, "external", token, err)
}

func (u *AuthUsecase) UnlinkExternal(ctx context.Context, userID int64, provider string) Result {
	token, err := u.linking.UnlinkExternal(ctx, userID, provider)
	return u.linkResult(ctx, "unlink_external", token, err)
}

// ExternalLogin is server-to-server only; the caller must present the
// shared secret.
func (u *AuthUsecase) ExternalLogin(ctx context.Context, identity ExternalIdentity, sharedSecret string) Result {
	if err := u.trusted(ctx, sharedSecret); err != nil {
		metrics.LoginsTotal.WithLabelValues("external", "failure").Inc()
		return u.failure(ctx, err)
	}

	user, token, err := u.linking.ExternalLogin(ctx, identity)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("external", "failure").Inc()
		return u.failure(ctx, err)
	}
	metrics.LoginsTotal.WithLabelValues("external", "success").Inc()
	return success(user, token, "logged in")
}

// ForceAuth issues a token for a user id with no credential check. It exists
// for legacy system integration and fails closed when the shared secret is
// unset or still the placeholder.
func (u *AuthUsecase) ForceAuth(ctx context.Context, userID int64, sharedSecret string) Result {
	if err := u.trusted(ctx, sharedSecret); err != nil {
		metrics.LoginsTotal.WithLabelValues("force", "failure").Inc()
		return u.failure(ctx, err)
	}

	user, token, err := u.linking.ForceAuth(ctx, userID)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("force", "failure").Inc()
		return u.failure(ctx, err)
	}
	metrics.LoginsTotal.WithLabelValues("force", "success").Inc()
	return success(user, token, "logged in")
}

func (u *AuthUsecase) ValidateToken(_ context.Context, raw string) TokenValidation {
	identity, err := u.tokens.Validate(raw)
	if err != nil {
		return TokenValidation{Message: "token is invalid or expired"}
	}
	return TokenValidation{
		Valid:       true,
		UserID:      identity.UserID,
		Email:       identity.Email,
		PhoneNumber: identity.PhoneNumber,
		Message:     "token is valid",
	}
}

func (u *AuthUsecase) linkResult(ctx context.Context, kind, token string, err error) Result {
	if err != nil {
		metrics.LinkOpsTotal.WithLabelValues(kind, "failure").Inc()
		return u.failure(ctx, err)
	}
	metrics.LinkOpsTotal.WithLabelValues(kind, "success").Inc()
	return Result{Success: true, Token: token, Message: "ok"}
}

// trusted verifies the caller-supplied shared secret in constant time.
func (u *AuthUsecase) trusted(ctx context.Context, secret string) error {
	if u.sharedSecret == "" || u.sharedSecret == config.SharedSecretPlaceholder {
		return domain.ErrMisconfigured
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(u.sharedSecret)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}

// checkedErrs are the failure kinds whose sentinel text is safe to return
// to callers verbatim.
var checkedErrs = []error{
	domain.ErrDuplicateEmail,
	domain.ErrDuplicatePhone,
	domain.ErrProviderTaken,
	domain.ErrAlreadyLinkedProvider,
	domain.ErrAlreadyHasCredential,
	domain.ErrInvalidCredentials,
	domain.ErrRateLimited,
	domain.ErrCodeExpired,
	domain.ErrCodeAlreadyUsed,
	domain.ErrCodeMismatch,
	domain.ErrTooManyAttempts,
	domain.ErrLastCredential,
	domain.ErrUserNotFound,
	domain.ErrExternalLoginNotFound,
	domain.ErrUnauthorized,
	domain.ErrBadIdentifier,
}

func (u *AuthUsecase) failure(ctx context.Context, err error) Result {
	if errors.Is(err, domain.ErrMisconfigured) {
		// Deployment fault, not a bad request. Fail closed and make noise.
		u.logger.ErrorContext(ctx, "auth misconfiguration", "error", err)
		return Result{Message: domain.ErrMisconfigured.Error(), Err: domain.ErrMisconfigured}
	}
	for _, checked := range checkedErrs {
		if errors.Is(err, checked) {
			return Result{Message: checked.Error(), Err: checked}
		}
	}
	u.logger.ErrorContext(ctx, "auth operation failed", "error", err)
	return Result{Message: "something went wrong"}
}

func success(user *domain.User, token, message string) Result {
	return Result{
		Success: true,
		Token:   token,
		Message: message,
		User:    newUserInfo(user),
	}
}

func newUserInfo(user *domain.User) *UserInfo {
	return &UserInfo{
		ID:              user.ID,
		Email:           user.Email,
		PhoneNumber:     user.PhoneNumber,
		IsEmailVerified: user.IsEmailVerified,
		IsPhoneVerified: user.IsPhoneVerified,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
	}
}
