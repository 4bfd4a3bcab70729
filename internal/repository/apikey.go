package repository

import (
	"context"

	"github.com/LegalDragon/funtime-identity/internal/domain"
)

type ApiKeyRepository interface {
	// Create inserts a partner key. A slug collision surfaces as
	// domain.ErrDuplicatePartner.
	Create(ctx context.Context, key *domain.ApiKey) (*domain.ApiKey, error)

	FindByKey(ctx context.Context, key string) (*domain.ApiKey, error)
	FindByID(ctx context.Context, id int64) (*domain.ApiKey, error)
	List(ctx context.Context) ([]*domain.ApiKey, error)

	Update(ctx context.Context, key *domain.ApiKey) (*domain.ApiKey, error)

	// ReplaceSecret swaps in a new secret and prefix and resets usage
	// counters.
	ReplaceSecret(ctx context.Context, id int64, newKey, newPrefix string) (*domain.ApiKey, error)

	Delete(ctx context.Context, id int64) error

	// RecordUsage increments usage_count and stamps last_used_at.
	RecordUsage(ctx context.Context, key string) error
}
