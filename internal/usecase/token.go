package usecase

import (
	"fmt"
	"strconv"
	"time"

	"github.com/LegalDragon/funtime-identity/internal/clock"
	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const minSecretLen = 32

// Claims is the bearer-token payload shared by every branded site.
type Claims struct {
	Email       *string `json:"email,omitempty"`
	PhoneNumber *string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the result of a successful token validation.
type Identity struct {
	UserID      int64
	Email       *string
	PhoneNumber *string
}

// TokenService issues and validates HS256 bearer tokens. The signing secret
// is process-wide configuration shared with every trusted consumer; there is
// no revocation list, a token stays valid until its natural expiry.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	lifetime time.Duration
	clock    clock.Clock
}

func NewTokenService(secret []byte, issuer, audience string, lifetime time.Duration, clk clock.Clock) (*TokenService, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("jwt secret shorter than %d bytes: %w", minSecretLen, domain.ErrMisconfigured)
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("non-positive token lifetime: %w", domain.ErrMisconfigured)
	}
	return &TokenService{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		lifetime: lifetime,
		clock:    clk,
	}, nil
}

func (s *TokenService) Issue(user *domain.User) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Validate checks signature, issuer, audience and expiry with zero leeway.
// Every failure collapses into ErrUnauthorized so callers cannot tell which
// check tripped.
func (s *TokenService) Validate(raw string) (*Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, domain.ErrUnauthorized
	}

	return &Identity{
		UserID:      userID,
		Email:       claims.Email,
		PhoneNumber: claims.PhoneNumber,
	}, nil
}
