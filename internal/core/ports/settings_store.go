package ports

import (
	"context"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

// SettingsStore is the key/value configuration store.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}

// HealthChecker reports whether the environment is installed.
type HealthChecker interface {
	Check(ctx context.Context) domain.HealthReport
}

// AuditRepository persists security events.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuditEvent) error
}

// AuditSink accepts events for asynchronous persistence.
type AuditSink interface {
	Enqueue(event domain.AuditEvent)
}
