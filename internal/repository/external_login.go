package repository

import (
	"context"

	"github.com/LegalDragon/funtime-identity/internal/domain"
)

type ExternalLoginRepository interface {
	// Create inserts a provider identity. A (provider, provider_user_id)
	// collision surfaces as domain.ErrProviderTaken, a (user_id, provider)
	// collision as domain.ErrAlreadyLinkedProvider.
	Create(ctx context.Context, login *domain.ExternalLogin) (*domain.ExternalLogin, error)

	FindByProvider(ctx context.Context, provider, providerUserID string) (*domain.ExternalLogin, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.ExternalLogin, error)

	// Touch refreshes provider metadata and the last-used timestamp.
	Touch(ctx context.Context, id int64, providerEmail, displayName *string) error

	// DeleteIfNotLast removes the user's login for provider, but only if the
	// user would retain at least one credential afterwards. The count and the
	// delete run in one transaction holding a lock on the user row, so two
	// concurrent unlinks cannot jointly strip the account. Returns
	// domain.ErrLastCredential or domain.ErrExternalLoginNotFound.
	DeleteIfNotLast(ctx context.Context, userID int64, provider string) error
}
