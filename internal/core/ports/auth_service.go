package ports

import (
	"context"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

// SignInResult tells the caller whether the second factor is still required.
type SignInResult struct {
	Identity *domain.Identity
	NeedOtp  bool
}

type AuthService interface {
	SignIn(ctx context.Context, username, password string) (*SignInResult, error)
	CheckOtp(ctx context.Context, identityID, code string) (*domain.Identity, error)
	IssueResetToken(ctx context.Context, username, purpose string) (string, error)
	ValidateResetToken(ctx context.Context, token, purpose string) (string, error)
	ResetPassword(ctx context.Context, token, purpose, password string) (string, error)
	SetPassword(ctx context.Context, identityID, password string) error
	CreateIdentity(ctx context.Context, draft domain.Identity) (*domain.Identity, string, error)
}
