package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/session"
	"github.com/99minutos/admin-backend/internal/pkg/clock"
)

// DefaultHeartbeatInterval is the minimum time between two heartbeat runs of
// the same session.
const DefaultHeartbeatInterval = 45 * time.Second

// HeartbeatCallback is a side effect run while a user session is active.
type HeartbeatCallback func(ctx context.Context, identity *domain.Identity) error

type heartbeatEntry struct {
	name string
	fn   HeartbeatCallback
}

// IntegrityWorkflow runs the registered callbacks at most once per interval
// for every authenticated session.
type IntegrityWorkflow struct {
	interval  time.Duration
	clock     clock.Clock
	callbacks []heartbeatEntry
	log       zerolog.Logger
}

func NewIntegrityWorkflow(clk clock.Clock, interval time.Duration, log zerolog.Logger) *IntegrityWorkflow {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &IntegrityWorkflow{interval: interval, clock: clk, log: log}
}

// Register adds a callback. Callbacks run in registration order.
func (w *IntegrityWorkflow) Register(name string, fn HeartbeatCallback) {
	w.callbacks = append(w.callbacks, heartbeatEntry{name: name, fn: fn})
}

// Run invokes the callbacks when the session heartbeat expired and reports
// whether it did. A failing callback is logged and does not stop the others.
func (w *IntegrityWorkflow) Run(ctx context.Context, sess *session.Session) bool {
	if !sess.IsAuthenticated() {
		return false
	}
	now := w.clock.Now()
	if now.Before(sess.State.HeartbeatExpiration) {
		return false
	}

	sess.State.HeartbeatExpiration = now.Add(w.interval)
	sess.MarkDirty()

	for _, cb := range w.callbacks {
		if err := cb.fn(ctx, sess.Identity); err != nil {
			w.log.Warn().Err(err).
				Str("callback", cb.name).
				Str("identity", sess.Identity.ID).
				Msg("heartbeat callback failed")
		}
	}
	return true
}
