package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/LegalDragon/funtime-identity/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// ExternalIdentity is the provider-supplied view of a third-party login.
type ExternalIdentity struct {
	Provider       string
	ProviderUserID string
	ProviderEmail  *string
	DisplayName    *string
}

// LinkingUsecase mediates every operation that changes which credentials
// point at a user. It preserves two global rules: an external identity
// belongs to at most one user, and an account always keeps at least one way
// to authenticate.
type LinkingUsecase struct {
	users     repository.UserRepository
	externals repository.ExternalLoginRepository
	otp       *OtpUsecase
	tokens    *TokenService
	logger    *slog.Logger
}

func NewLinkingUsecase(
	users repository.UserRepository,
	externals repository.ExternalLoginRepository,
	otp *OtpUsecase,
	tokens *TokenService,
	logger *slog.Logger,
) *LinkingUsecase {
	return &LinkingUsecase{
		users:     users,
		externals: externals,
		otp:       otp,
		tokens:    tokens,
		logger:    logger.With("component", "linking"),
	}
}

// Register creates an email+password user. Email uniqueness is enforced by
// the store, not a pre-check, so concurrent registrations cannot both pass.
func (u *LinkingUsecase) Register(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = domain.NormalizeEmail(email)

	hash, err := hashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user, err := u.users.Create(ctx, &domain.User{
		Email:        &email,
		PasswordHash: &hash,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := u.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login authenticates email+password. A missing account and a wrong
// password both come back as ErrInvalidCredentials.
func (u *LinkingUsecase) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = domain.NormalizeEmail(email)

	user, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", domain.ErrInvalidCredentials
		}
		return nil, "", err
	}
	if user.PasswordHash == nil {
		return nil, "", domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	if err := u.users.TouchLastLogin(ctx, user.ID); err != nil {
		u.logger.Warn("touch last login", "user_id", user.ID, "error", err)
	}

	token, err := u.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// LoginOrRegisterByOtp verifies the code and either signs in the matching
// user or creates a fresh one with the identifier as its only credential.
func (u *LinkingUsecase) LoginOrRegisterByOtp(ctx context.Context, identifier, code string, firstName, lastName *string) (*domain.User, string, error) {
	normalized, isEmail, err := domain.NormalizeIdentifier(identifier)
	if err != nil {
		return nil, "", err
	}

	if _, err := u.otp.Verify(ctx, normalized, code); err != nil {
		return nil, "", err
	}

	user, err := u.findByIdentifier(ctx, normalized, isEmail)
	switch {
	case err == nil:
		if isEmail && !user.IsEmailVerified {
			user.IsEmailVerified = true
		} else if !isEmail && !user.IsPhoneVerified {
			user.IsPhoneVerified = true
		}
		if user, err = u.users.Update(ctx, user); err != nil {
			return nil, "", err
		}
	case errors.Is(err, domain.ErrUserNotFound):
		fresh := &domain.User{FirstName: firstName, LastName: lastName}
		if isEmail {
			fresh.Email = &normalized
			fresh.IsEmailVerified = true
		} else {
			fresh.PhoneNumber = &normalized
			fresh.IsPhoneVerified = true
		}
		if user, err = u.users.Create(ctx, fresh); err != nil {
			return nil, "", err
		}
	default:
		return nil, "", err
	}

	if err := u.users.TouchLastLogin(ctx, user.ID); err != nil {
		u.logger.Warn("touch last login", "user_id", user.ID, "error", err)
	}

	token, err := u.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// LinkPhone attaches a verified phone to an existing user. An unverified or
// absent phone may be replaced; a verified one may not.
func (u *LinkingUsecase) LinkPhone(ctx context.Context, userID int64, phone, code string) (string, error) {
	normalized, err := domain.NormalizePhone(phone)
	if err != nil {
		return "", err
	}

	if _, err := u.otp.Verify(ctx, normalized, code); err != nil {
		return "", err
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	if owner, err := u.users.FindByPhone(ctx, normalized); err == nil && owner.ID != userID {
		return "", domain.ErrDuplicatePhone
	} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return "", err
	}

	if user.PhoneNumber != nil && user.IsPhoneVerified && *user.PhoneNumber != normalized {
		return "", domain.ErrAlreadyHasCredential
	}

	user.PhoneNumber = &normalized
	user.IsPhoneVerified = true
	user, err = u.users.Update(ctx, user)
	if err != nil {
		return "", err
	}

	return u.tokens.Issue(user)
}

// LinkEmail attaches an email+password credential to a user that has none.
func (u *LinkingUsecase) LinkEmail(ctx context.Context, userID int64, email, password string) (string, error) {
	email = domain.NormalizeEmail(email)

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Email != nil {
		return "", domain.ErrAlreadyHasCredential
	}

	if owner, err := u.users.FindByEmail(ctx, email); err == nil && owner.ID != userID {
		return "", domain.ErrDuplicateEmail
	} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return "", err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}

	user.Email = &email
	user.PasswordHash = &hash
	user, err = u.users.Update(ctx, user)
	if err != nil {
		return "", err
	}

	return u.tokens.Issue(user)
}

// LinkExternal binds a provider identity to the user. Uniqueness is enforced
// by the store's constraints, which also closes the race between two
// concurrent link calls for the same identity.
func (u *LinkingUsecase) LinkExternal(ctx context.Context, userID int64, identity ExternalIdentity) (string, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	_, err = u.externals.Create(ctx, &domain.ExternalLogin{
		UserID:         userID,
		Provider:       normalizeProvider(identity.Provider),
		ProviderUserID: identity.ProviderUserID,
		ProviderEmail:  identity.ProviderEmail,
		DisplayName:    identity.DisplayName,
	})
	if err != nil {
		return "", err
	}

	return u.tokens.Issue(user)
}

// UnlinkExternal removes a provider binding unless it is the account's last
// remaining credential. The count-and-delete is atomic in the store.
func (u *LinkingUsecase) UnlinkExternal(ctx context.Context, userID int64, provider string) (string, error) {
	if err := u.externals.DeleteIfNotLast(ctx, userID, normalizeProvider(provider)); err != nil {
		return "", err
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.tokens.Issue(user)
}

// ExternalLogin is the trusted server-to-server flow: reuse the user bound
// to the identity, or create a bare user and bind it.
func (u *LinkingUsecase) ExternalLogin(ctx context.Context, identity ExternalIdentity) (*domain.User, string, error) {
	provider := normalizeProvider(identity.Provider)

	var user *domain.User
	login, err := u.externals.FindByProvider(ctx, provider, identity.ProviderUserID)
	switch {
	case err == nil:
		if err := u.externals.Touch(ctx, login.ID, identity.ProviderEmail, identity.DisplayName); err != nil {
			u.logger.Warn("touch external login", "login_id", login.ID, "error", err)
		}
		if user, err = u.users.FindByID(ctx, login.UserID); err != nil {
			return nil, "", err
		}
	case errors.Is(err, domain.ErrExternalLoginNotFound):
		if user, err = u.users.Create(ctx, &domain.User{}); err != nil {
			return nil, "", err
		}
		if _, err = u.externals.Create(ctx, &domain.ExternalLogin{
			UserID:         user.ID,
			Provider:       provider,
			ProviderUserID: identity.ProviderUserID,
			ProviderEmail:  identity.ProviderEmail,
			DisplayName:    identity.DisplayName,
		}); err != nil {
			return nil, "", err
		}
	default:
		return nil, "", err
	}

	if err := u.users.TouchLastLogin(ctx, user.ID); err != nil {
		u.logger.Warn("touch last login", "user_id", user.ID, "error", err)
	}

	token, err := u.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// ForceAuth issues a token for an arbitrary user without any credential
// check. The caller (orchestrator) gates this behind the shared secret.
func (u *LinkingUsecase) ForceAuth(ctx context.Context, userID int64) (*domain.User, string, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	token, err := u.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (u *LinkingUsecase) findByIdentifier(ctx context.Context, identifier string, isEmail bool) (*domain.User, error) {
	if isEmail {
		return u.users.FindByEmail(ctx, identifier)
	}
	return u.users.FindByPhone(ctx, identifier)
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
