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

const apiKeyColumns = `id, partner_slug, partner_name, key, key_prefix,
	scopes, ip_allowlist, origin_allowlist, rate_limit_per_min,
	is_active, expires_at, usage_count, last_used_at,
	created_at, updated_at, created_by`

type ApiKeyRepository struct {
	pool *pgxpool.Pool
}

func NewApiKeyRepository(pool *pgxpool.Pool) *ApiKeyRepository {
	return &ApiKeyRepository{pool: pool}
}

func (r *ApiKeyRepository) Create(ctx context.Context, key *domain.ApiKey) (*domain.ApiKey, error) {
	query := `
		INSERT INTO api_keys (
			partner_slug, partner_name, key, key_prefix,
			scopes, ip_allowlist, origin_allowlist,
			rate_limit_per_min, is_active, expires_at, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + apiKeyColumns

	row := r.pool.QueryRow(ctx, query,
		key.PartnerSlug,
		key.PartnerName,
		key.Key,
		key.KeyPrefix,
		key.Scopes,
		key.IPAllowlist,
		key.OriginAllowlist,
		key.RateLimitPerMin,
		key.IsActive,
		key.ExpiresAt,
		key.CreatedBy,
	)

	created, err := scanApiKey(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicatePartner
		}
		return nil, fmt.Errorf("create api key: %w", err)
	}
	return created, nil
}

func (r *ApiKeyRepository) FindByKey(ctx context.Context, key string) (*domain.ApiKey, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key = $1`, key)
	return scanApiKey(row)
}

func (r *ApiKeyRepository) FindByID(ctx context.Context, id int64) (*domain.ApiKey, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	return scanApiKey(row)
}

func (r *ApiKeyRepository) List(ctx context.Context) ([]*domain.ApiKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*domain.ApiKey
	for rows.Next() {
		k, err := scanApiKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *ApiKeyRepository) Update(ctx context.Context, key *domain.ApiKey) (*domain.ApiKey, error) {
	query := `
		UPDATE api_keys
		SET    partner_name       = $2,
		       scopes             = $3,
		       ip_allowlist       = $4,
		       origin_allowlist   = $5,
		       rate_limit_per_min = $6,
		       is_active          = $7,
		       expires_at         = $8,
		       updated_at         = NOW()
		WHERE  id = $1
		RETURNING ` + apiKeyColumns

	row := r.pool.QueryRow(ctx, query,
		key.ID,
		key.PartnerName,
		key.Scopes,
		key.IPAllowlist,
		key.OriginAllowlist,
		key.RateLimitPerMin,
		key.IsActive,
		key.ExpiresAt,
	)
	return scanApiKey(row)
}

func (r *ApiKeyRepository) ReplaceSecret(ctx context.Context, id int64, newKey, newPrefix string) (*domain.ApiKey, error) {
	query := `
		UPDATE api_keys
		SET    key          = $2,
		       key_prefix   = $3,
		       usage_count  = 0,
		       last_used_at = NULL,
		       updated_at   = NOW()
		WHERE  id = $1
		RETURNING ` + apiKeyColumns

	row := r.pool.QueryRow(ctx, query, id, newKey, newPrefix)
	return scanApiKey(row)
}

func (r *ApiKeyRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrKeyNotFound
	}
	return nil
}

func (r *ApiKeyRepository) RecordUsage(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = NOW() WHERE key = $1`,
		key)
	if err != nil {
		return fmt.Errorf("record api key usage: %w", err)
	}
	return nil
}

func scanApiKey(row pgx.Row) (*domain.ApiKey, error) {
	var k domain.ApiKey
	err := row.Scan(
		&k.ID, &k.PartnerSlug, &k.PartnerName, &k.Key, &k.KeyPrefix,
		&k.Scopes, &k.IPAllowlist, &k.OriginAllowlist, &k.RateLimitPerMin,
		&k.IsActive, &k.ExpiresAt, &k.UsageCount, &k.LastUsedAt,
		&k.CreatedAt, &k.UpdatedAt, &k.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	return &k, nil
}
