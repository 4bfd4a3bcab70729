package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const otpColumns = `id, identifier, code, created_at, expires_at, used, attempt_count, user_id`

type OtpRepository struct {
	pool *pgxpool.Pool
}

func NewOtpRepository(pool *pgxpool.Pool) *OtpRepository {
	return &OtpRepository{pool: pool}
}

func (r *OtpRepository) Create(ctx context.Context, req *domain.OtpRequest) (*domain.OtpRequest, error) {
	query := `
		INSERT INTO otp_requests (identifier, code, expires_at, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + otpColumns

	row := r.pool.QueryRow(ctx, query, req.Identifier, req.Code, req.ExpiresAt, req.UserID)
	created, err := scanOtpRequest(row)
	if err != nil {
		return nil, fmt.Errorf("create otp request: %w", err)
	}
	return created, nil
}

func (r *OtpRepository) LatestByIdentifier(ctx context.Context, identifier string) (*domain.OtpRequest, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+otpColumns+`
		FROM otp_requests
		WHERE identifier = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		identifier)
	return scanOtpRequest(row)
}

func (r *OtpRepository) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`UPDATE otp_requests SET attempt_count = attempt_count + 1
		WHERE id = $1
		RETURNING attempt_count`,
		id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	return count, nil
}

// MarkUsed is the single-use guard: the conditional update lets exactly one
// of two concurrent verifies win.
func (r *OtpRepository) MarkUsed(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE otp_requests SET used = TRUE WHERE id = $1 AND used = FALSE`, id)
	if err != nil {
		return fmt.Errorf("mark otp used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCodeAlreadyUsed
	}
	return nil
}

func (r *OtpRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM otp_requests WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired otp requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOtpRequest(row pgx.Row) (*domain.OtpRequest, error) {
	var o domain.OtpRequest
	err := row.Scan(
		&o.ID, &o.Identifier, &o.Code, &o.CreatedAt,
		&o.ExpiresAt, &o.Used, &o.AttemptCount, &o.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOtpNotFound
		}
		return nil, fmt.Errorf("scan otp request: %w", err)
	}
	return &o, nil
}

type OtpRateLimitRepository struct {
	pool *pgxpool.Pool
}

func NewOtpRateLimitRepository(pool *pgxpool.Pool) *OtpRateLimitRepository {
	return &OtpRateLimitRepository{pool: pool}
}

// Bump rolls or increments the window in a single statement so a burst of
// concurrent sends cannot all observe a stale count.
func (r *OtpRateLimitRepository) Bump(ctx context.Context, identifier string, now, windowStart time.Time) (*domain.OtpRateLimit, error) {
	query := `
		INSERT INTO otp_rate_limits (identifier, request_count, window_started_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (identifier) DO UPDATE SET
			request_count = CASE
				WHEN otp_rate_limits.window_started_at < $3 THEN 1
				ELSE otp_rate_limits.request_count + 1
			END,
			window_started_at = CASE
				WHEN otp_rate_limits.window_started_at < $3 THEN $2
				ELSE otp_rate_limits.window_started_at
			END
		RETURNING identifier, request_count, window_started_at, blocked_until`

	var rl domain.OtpRateLimit
	err := r.pool.QueryRow(ctx, query, identifier, now, windowStart).Scan(
		&rl.Identifier, &rl.RequestCount, &rl.WindowStartedAt, &rl.BlockedUntil,
	)
	if err != nil {
		return nil, fmt.Errorf("bump otp rate limit: %w", err)
	}
	return &rl, nil
}

func (r *OtpRateLimitRepository) Block(ctx context.Context, identifier string, until time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE otp_rate_limits SET blocked_until = $2 WHERE identifier = $1`,
		identifier, until)
	if err != nil {
		return fmt.Errorf("block otp identifier: %w", err)
	}
	return nil
}

func (r *OtpRateLimitRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM otp_rate_limits
		WHERE window_started_at < $1
		  AND (blocked_until IS NULL OR blocked_until < $1)`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale rate limits: %w", err)
	}
	return tag.RowsAffected(), nil
}
