package ports

import (
	"context"
	"time"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

// IdentityRepository is the identity lookup collaborator.
type IdentityRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	FindByUsername(ctx context.Context, username string) (*domain.Identity, error)
	List(ctx context.Context) ([]*domain.Identity, error)
	Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// SetOtpSecret stores the two-factor secret; a nil secret disables 2FA.
	SetOtpSecret(ctx context.Context, id string, secret []byte) error
	TouchActivity(ctx context.Context, id string, at time.Time) error
}
