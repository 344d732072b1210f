package mongo

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/ports"
)

const healthTimeout = 3 * time.Second

// HealthChecker decides whether the administration is installed: the
// database answers, the cloud account is linked and the project is named.
type HealthChecker struct {
	settings ports.SettingsStore
	log      zerolog.Logger
}

func NewHealthChecker(settings ports.SettingsStore, log zerolog.Logger) *HealthChecker {
	return &HealthChecker{settings: settings, log: log}
}

func (h *HealthChecker) Check(ctx context.Context) domain.HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var report domain.HealthReport
	if err := h.settings.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("database unreachable")
		return report
	}
	report.DatabaseOK = true
	report.CloudLinked = h.present(ctx, domain.SettingCloudToken)
	report.BasicConfig = h.present(ctx, domain.SettingProjectName)
	return report
}

func (h *HealthChecker) present(ctx context.Context, key string) bool {
	value, ok, err := h.settings.Get(ctx, key)
	if err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("setting lookup failed")
		return false
	}
	return ok && value != ""
}
