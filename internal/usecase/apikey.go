package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/LegalDragon/funtime-identity/internal/cache"
	"github.com/LegalDragon/funtime-identity/internal/clock"
	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/LegalDragon/funtime-identity/internal/metrics"
	"github.com/LegalDragon/funtime-identity/internal/repository"
)

const (
	// Positive entries live longer than negative ones: a cached "known
	// invalid" only needs to blunt repeated probing.
	positiveCacheTTL = 5 * time.Minute
	negativeCacheTTL = 30 * time.Second

	secretBytes = 20 // 40 hex chars
)

// ApiKeyUsecase validates partner keys with a read-through cache and owns
// the admin operations that mint and revoke them.
type ApiKeyUsecase struct {
	keys   repository.ApiKeyRepository
	cache  cache.KeyCache
	clock  clock.Clock
	logger *slog.Logger
}

func NewApiKeyUsecase(keys repository.ApiKeyRepository, keyCache cache.KeyCache, clk clock.Clock, logger *slog.Logger) *ApiKeyUsecase {
	return &ApiKeyUsecase{
		keys:   keys,
		cache:  keyCache,
		clock:  clk,
		logger: logger.With("component", "apikey"),
	}
}

// Validate resolves a key string to its ApiKey record. Cache outcomes are
// re-checked against IsValid last, so a key that expires or is deactivated
// mid-TTL is still rejected.
func (u *ApiKeyUsecase) Validate(ctx context.Context, key string) (*domain.ApiKey, error) {
	if key == "" {
		return nil, domain.ErrKeyNotFound
	}

	cached, hit := u.cache.Get(key)
	if hit {
		metrics.ApiKeyCacheLookups.WithLabelValues("hit").Inc()
		if cached == nil {
			metrics.ApiKeyValidationsTotal.WithLabelValues("not_found").Inc()
			return nil, domain.ErrKeyNotFound
		}
		return u.finalCheck(cached)
	}
	metrics.ApiKeyCacheLookups.WithLabelValues("miss").Inc()

	record, err := u.keys.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			u.cache.Set(key, nil, negativeCacheTTL)
			metrics.ApiKeyValidationsTotal.WithLabelValues("not_found").Inc()
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("load api key: %w", err)
	}

	u.cache.Set(key, record, positiveCacheTTL)
	return u.finalCheck(record)
}

func (u *ApiKeyUsecase) finalCheck(key *domain.ApiKey) (*domain.ApiKey, error) {
	if !key.IsValid(u.clock.Now()) {
		metrics.ApiKeyValidationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrUnauthorized
	}
	metrics.ApiKeyValidationsTotal.WithLabelValues("valid").Inc()
	return key, nil
}

// HasScope validates the key and tests exact scope membership. A key with
// an empty scope set satisfies no scoped check.
func (u *ApiKeyUsecase) HasScope(ctx context.Context, key, scope string) bool {
	record, err := u.Validate(ctx, key)
	if err != nil {
		return false
	}
	return record.HasScope(scope)
}

// RecordUsage is best-effort accounting: failures are logged and swallowed
// so they can never break the request path.
func (u *ApiKeyUsecase) RecordUsage(ctx context.Context, key string) {
	if err := u.keys.RecordUsage(ctx, key); err != nil {
		u.logger.Warn("record api key usage", "error", err)
	}
}

type CreateKeyInput struct {
	PartnerSlug     string
	PartnerName     string
	Scopes          []string
	IPAllowlist     []string
	OriginAllowlist []string
	RateLimitPerMin int
	ExpiresAt       *time.Time
	CreatedBy       string
}

// CreateKey mints a fresh secret and inserts the partner record. The full
// secret is only ever returned here and on regenerate.
func (u *ApiKeyUsecase) CreateKey(ctx context.Context, in CreateKeyInput) (*domain.ApiKey, error) {
	secret, prefix, err := mintSecret(in.PartnerSlug)
	if err != nil {
		return nil, err
	}

	if in.RateLimitPerMin <= 0 {
		in.RateLimitPerMin = 60
	}

	created, err := u.keys.Create(ctx, &domain.ApiKey{
		PartnerSlug:     in.PartnerSlug,
		PartnerName:     in.PartnerName,
		Key:             secret,
		KeyPrefix:       prefix,
		Scopes:          in.Scopes,
		IPAllowlist:     in.IPAllowlist,
		OriginAllowlist: in.OriginAllowlist,
		RateLimitPerMin: in.RateLimitPerMin,
		IsActive:        true,
		ExpiresAt:       in.ExpiresAt,
		CreatedBy:       in.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

type UpdateKeyInput struct {
	PartnerName     string
	Scopes          []string
	IPAllowlist     []string
	OriginAllowlist []string
	RateLimitPerMin int
	IsActive        bool
	ExpiresAt       *time.Time
}

// UpdateKey applies admin changes and drops any cached copy of the key so a
// deactivation takes effect without waiting out the TTL.
func (u *ApiKeyUsecase) UpdateKey(ctx context.Context, id int64, in UpdateKeyInput) (*domain.ApiKey, error) {
	existing, err := u.keys.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.PartnerName = in.PartnerName
	existing.Scopes = in.Scopes
	existing.IPAllowlist = in.IPAllowlist
	existing.OriginAllowlist = in.OriginAllowlist
	existing.RateLimitPerMin = in.RateLimitPerMin
	existing.IsActive = in.IsActive
	existing.ExpiresAt = in.ExpiresAt

	updated, err := u.keys.Update(ctx, existing)
	if err != nil {
		return nil, err
	}

	u.cache.Invalidate(existing.Key)
	return updated, nil
}

// RegenerateKey replaces the secret and resets usage counters. The old key
// string is invalidated immediately; it must not be servable from cache.
func (u *ApiKeyUsecase) RegenerateKey(ctx context.Context, id int64) (*domain.ApiKey, error) {
	existing, err := u.keys.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	secret, prefix, err := mintSecret(existing.PartnerSlug)
	if err != nil {
		return nil, err
	}

	updated, err := u.keys.ReplaceSecret(ctx, id, secret, prefix)
	if err != nil {
		return nil, err
	}

	u.cache.Invalidate(existing.Key)
	return updated, nil
}

func (u *ApiKeyUsecase) DeleteKey(ctx context.Context, id int64) error {
	existing, err := u.keys.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := u.keys.Delete(ctx, id); err != nil {
		return err
	}
	u.cache.Invalidate(existing.Key)
	return nil
}

func (u *ApiKeyUsecase) ListKeys(ctx context.Context) ([]*domain.ApiKey, error) {
	return u.keys.List(ctx)
}

// mintSecret builds "fk_<slug4>_<40 hex>" and a display prefix covering
// everything up to the first 6 random chars.
func mintSecret(slug string) (secret, prefix string, err error) {
	raw := make([]byte, secretBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", "", fmt.Errorf("generate api key secret: %w", err)
	}

	slugPart := slug
	if len(slugPart) > 4 {
		slugPart = slugPart[:4]
	}
	random := hex.EncodeToString(raw)
	secret = fmt.Sprintf("fk_%s_%s", slugPart, random)
	prefix = fmt.Sprintf("fk_%s_%s", slugPart, random[:6])
	return secret, prefix, nil
}
