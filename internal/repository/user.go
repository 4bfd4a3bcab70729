package repository

import (
	"context"

	"github.com/LegalDragon/funtime-identity/internal/domain"
)

type UserRepository interface {
	// Create inserts a new user. Unique violations surface as
	// domain.ErrDuplicateEmail / domain.ErrDuplicatePhone.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)

	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)

	// Update persists credential fields (email, password hash, phone,
	// verified flags, names). Unique violations map as in Create.
	Update(ctx context.Context, user *domain.User) (*domain.User, error)

	TouchLastLogin(ctx context.Context, id int64) error
}
