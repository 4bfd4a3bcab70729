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

const userColumns = `id, email, password_hash, phone_number,
	is_email_verified, is_phone_verified, first_name, last_name,
	created_at, updated_at, last_login_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (
			email, password_hash, phone_number,
			is_email_verified, is_phone_verified, first_name, last_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	row := r.pool.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.PhoneNumber,
		user.IsEmailVerified,
		user.IsPhoneVerified,
		user.FirstName,
		user.LastName,
	)

	created, err := scanUser(row)
	if err != nil {
		if dup := duplicateUserErr(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone)
	return scanUser(row)
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		UPDATE users
		SET    email             = $2,
		       password_hash     = $3,
		       phone_number      = $4,
		       is_email_verified = $5,
		       is_phone_verified = $6,
		       first_name        = $7,
		       last_name         = $8,
		       updated_at        = NOW()
		WHERE  id = $1
		RETURNING ` + userColumns

	row := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.PhoneNumber,
		user.IsEmailVerified,
		user.IsPhoneVerified,
		user.FirstName,
		user.LastName,
	)

	updated, err := scanUser(row)
	if err != nil {
		if dup := duplicateUserErr(err); dup != nil {
			return nil, dup
		}
		return nil, err
	}
	return updated, nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.PhoneNumber,
		&u.IsEmailVerified, &u.IsPhoneVerified, &u.FirstName, &u.LastName,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// duplicateUserErr maps unique violations to domain errors by constraint name.
func duplicateUserErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch pgErr.ConstraintName {
	case "users_phone_number_key":
		return domain.ErrDuplicatePhone
	default:
		return domain.ErrDuplicateEmail
	}
}
