package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const externalLoginColumns = `id, user_id, provider, provider_user_id,
	provider_email, display_name, created_at, last_used_at`

type ExternalLoginRepository struct {
	pool *pgxpool.Pool
}

func NewExternalLoginRepository(pool *pgxpool.Pool) *ExternalLoginRepository {
	return &ExternalLoginRepository{pool: pool}
}

func (r *ExternalLoginRepository) Create(ctx context.Context, login *domain.ExternalLogin) (*domain.ExternalLogin, error) {
	query := `
		INSERT INTO external_logins (
			user_id, provider, provider_user_id, provider_email, display_name
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + externalLoginColumns

	row := r.pool.QueryRow(ctx, query,
		login.UserID,
		login.Provider,
		login.ProviderUserID,
		login.ProviderEmail,
		login.DisplayName,
	)

	created, err := scanExternalLogin(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "external_logins_user_provider_key" {
				return nil, domain.ErrAlreadyLinkedProvider
			}
			return nil, domain.ErrProviderTaken
		}
		return nil, fmt.Errorf("create external login: %w", err)
	}
	return created, nil
}

func (r *ExternalLoginRepository) FindByProvider(ctx context.Context, provider, providerUserID string) (*domain.ExternalLogin, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+externalLoginColumns+`
		FROM external_logins
		WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID)
	return scanExternalLogin(row)
}

func (r *ExternalLoginRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.ExternalLogin, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+externalLoginColumns+`
		FROM external_logins
		WHERE user_id = $1
		ORDER BY created_at ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list external logins: %w", err)
	}
	defer rows.Close()

	var logins []*domain.ExternalLogin
	for rows.Next() {
		l, err := scanExternalLogin(rows)
		if err != nil {
			return nil, err
		}
		logins = append(logins, l)
	}
	return logins, rows.Err()
}

func (r *ExternalLoginRepository) Touch(ctx context.Context, id int64, providerEmail, displayName *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE external_logins
		SET    provider_email = COALESCE($2, provider_email),
		       display_name   = COALESCE($3, display_name),
		       last_used_at   = NOW()
		WHERE  id = $1`,
		id, providerEmail, displayName)
	if err != nil {
		return fmt.Errorf("touch external login: %w", err)
	}
	return nil
}

// DeleteIfNotLast locks the user row, counts the remaining login methods and
// deletes the provider binding only when at least one other method survives.
// The row lock serializes concurrent unlinks for the same user.
func (r *ExternalLoginRepository) DeleteIfNotLast(ctx context.Context, userID int64, provider string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin unlink tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var user domain.User
	err = tx.QueryRow(ctx, `
		SELECT email, password_hash, phone_number, is_email_verified
		FROM users WHERE id = $1
		FOR UPDATE`,
		userID).Scan(&user.Email, &user.PasswordHash, &user.PhoneNumber, &user.IsEmailVerified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("lock user for unlink: %w", err)
	}

	var externalCount int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM external_logins WHERE user_id = $1`,
		userID).Scan(&externalCount); err != nil {
		return fmt.Errorf("count external logins: %w", err)
	}

	total := externalCount
	if user.HasEmailCredential() {
		total++
	}
	if user.PhoneNumber != nil {
		total++
	}
	if total <= 1 {
		return domain.ErrLastCredential
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM external_logins WHERE user_id = $1 AND provider = $2`,
		userID, provider)
	if err != nil {
		return fmt.Errorf("delete external login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrExternalLoginNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit unlink tx: %w", err)
	}
	return nil
}

func scanExternalLogin(row pgx.Row) (*domain.ExternalLogin, error) {
	var l domain.ExternalLogin
	err := row.Scan(
		&l.ID, &l.UserID, &l.Provider, &l.ProviderUserID,
		&l.ProviderEmail, &l.DisplayName, &l.CreatedAt, &l.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrExternalLoginNotFound
		}
		return nil, fmt.Errorf("scan external login: %w", err)
	}
	return &l, nil
}
