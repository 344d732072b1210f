package ports

import (
	"context"
	"time"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

// SessionStore persists SessionState between requests. Lock serialises
// concurrent requests of the same session; the returned func releases it.
type SessionStore interface {
	Load(ctx context.Context, id string) (*domain.SessionState, error)
	Save(ctx context.Context, id string, state *domain.SessionState) error
	Clear(ctx context.Context, id string) error
	Lock(ctx context.Context, id string) (func(), error)
}

// EnrollmentCache holds short lived values shared between request handlers,
// such as a staged two-factor secret awaiting confirmation.
type EnrollmentCache interface {
	Stage(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Fetch returns (nil, false, nil) when the key is absent or expired.
	Fetch(ctx context.Context, key string) ([]byte, bool, error)
	Drop(ctx context.Context, key string) error
}
