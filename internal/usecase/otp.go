package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/LegalDragon/funtime-identity/internal/clock"
	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/LegalDragon/funtime-identity/internal/notify"
	"github.com/LegalDragon/funtime-identity/internal/repository"
)

// OtpConfig carries the engine's fixed thresholds.
type OtpConfig struct {
	TTL          time.Duration // code lifetime
	Window       time.Duration // rolling rate-limit window
	MaxPerWindow int           // sends allowed per identifier per window
	MaxAttempts  int           // verify attempts allowed per code
}

func DefaultOtpConfig() OtpConfig {
	return OtpConfig{
		TTL:          10 * time.Minute,
		Window:       10 * time.Minute,
		MaxPerWindow: 5,
		MaxAttempts:  5,
	}
}

// OtpUsecase issues, rate-limits and verifies one-time codes bound to a
// phone number or email address.
type OtpUsecase struct {
	otps   repository.OtpRepository
	limits repository.OtpRateLimitRepository
	users  repository.UserRepository
	sender notify.Sender
	clock  clock.Clock
	logger *slog.Logger
	cfg    OtpConfig
}

func NewOtpUsecase(
	otps repository.OtpRepository,
	limits repository.OtpRateLimitRepository,
	users repository.UserRepository,
	sender notify.Sender,
	clk clock.Clock,
	logger *slog.Logger,
	cfg OtpConfig,
) *OtpUsecase {
	return &OtpUsecase{
		otps:   otps,
		limits: limits,
		users:  users,
		sender: sender,
		clock:  clk,
		logger: logger.With("component", "otp"),
		cfg:    cfg,
	}
}

// Send issues a fresh code for the identifier. Storage failures abort the
// send; delivery failures do not — the stored code stays valid and the
// caller learns delivery did not go out via delivered=false.
func (u *OtpUsecase) Send(ctx context.Context, identifier string) (normalized string, delivered bool, err error) {
	normalized, _, err = domain.NormalizeIdentifier(identifier)
	if err != nil {
		return "", false, err
	}

	now := u.clock.Now()
	rl, err := u.limits.Bump(ctx, normalized, now, now.Add(-u.cfg.Window))
	if err != nil {
		return "", false, fmt.Errorf("bump rate limit: %w", err)
	}
	if rl.Blocked(now) {
		return "", false, domain.ErrRateLimited
	}
	if rl.RequestCount > u.cfg.MaxPerWindow {
		// Block until the window rolls so the count check is not re-run on
		// every probe.
		until := rl.WindowStartedAt.Add(u.cfg.Window)
		if err := u.limits.Block(ctx, normalized, until); err != nil {
			u.logger.Warn("block identifier", "identifier", normalized, "error", err)
		}
		return "", false, domain.ErrRateLimited
	}

	code, err := generateCode()
	if err != nil {
		return "", false, fmt.Errorf("generate otp code: %w", err)
	}

	req := &domain.OtpRequest{
		Identifier: normalized,
		Code:       code,
		ExpiresAt:  now.Add(u.cfg.TTL),
	}
	if user, err := u.findByIdentifier(ctx, normalized); err == nil {
		req.UserID = &user.ID
	}

	if _, err := u.otps.Create(ctx, req); err != nil {
		return "", false, fmt.Errorf("store otp request: %w", err)
	}

	if err := u.sender.Deliver(ctx, normalized, code); err != nil {
		u.logger.Warn("otp delivery failed", "identifier", normalized, "error", err)
		return normalized, false, nil
	}
	return normalized, true, nil
}

// Verify checks code against the newest request for the identifier. Only
// that row is ever eligible; older codes are dead the moment a newer one is
// issued. The attempt counter moves on every call, and the final mark-used
// is conditional so concurrent verifies cannot both succeed.
func (u *OtpUsecase) Verify(ctx context.Context, identifier, code string) (*domain.OtpRequest, error) {
	normalized, _, err := domain.NormalizeIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	req, err := u.otps.LatestByIdentifier(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrOtpNotFound) {
			return nil, domain.ErrCodeMismatch
		}
		return nil, fmt.Errorf("load otp request: %w", err)
	}

	attempts, err := u.otps.IncrementAttempts(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("increment attempts: %w", err)
	}

	switch {
	case req.Used:
		return nil, domain.ErrCodeAlreadyUsed
	case req.Expired(u.clock.Now()):
		return nil, domain.ErrCodeExpired
	case attempts > u.cfg.MaxAttempts:
		return nil, domain.ErrTooManyAttempts
	case req.Code != code:
		return nil, domain.ErrCodeMismatch
	}

	if err := u.otps.MarkUsed(ctx, req.ID); err != nil {
		return nil, err
	}
	return req, nil
}

func (u *OtpUsecase) findByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if _, isEmail, err := domain.NormalizeIdentifier(identifier); err == nil && isEmail {
		return u.users.FindByEmail(ctx, identifier)
	}
	return u.users.FindByPhone(ctx, identifier)
}

// generateCode draws a uniform 6-digit code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
