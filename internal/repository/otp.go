package repository

import (
	"context"
	"time"

	"github.com/LegalDragon/funtime-identity/internal/domain"
)

type OtpRepository interface {
	Create(ctx context.Context, req *domain.OtpRequest) (*domain.OtpRequest, error)

	// LatestByIdentifier returns the newest request for the identifier in any
	// state, or domain.ErrOtpNotFound. Older rows are never eligible for
	// verification once a newer one exists.
	LatestByIdentifier(ctx context.Context, identifier string) (*domain.OtpRequest, error)

	// IncrementAttempts bumps attempt_count and returns the new value.
	IncrementAttempts(ctx context.Context, id int64) (int, error)

	// MarkUsed is a conditional update (used=true where not used). The loser
	// of a concurrent verify observes domain.ErrCodeAlreadyUsed.
	MarkUsed(ctx context.Context, id int64) error

	// DeleteExpired removes requests whose expiry predates cutoff (sweeper).
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type OtpRateLimitRepository interface {
	// Bump atomically rolls or increments the identifier's window and returns
	// the post-increment state. windowStart is the roll cutoff: rows whose
	// window began before it restart at count 1.
	Bump(ctx context.Context, identifier string, now, windowStart time.Time) (*domain.OtpRateLimit, error)

	Block(ctx context.Context, identifier string, until time.Time) error

	// DeleteStale removes rows idle since before cutoff (sweeper).
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}
