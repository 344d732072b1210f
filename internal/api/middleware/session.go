package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/ports"
	"github.com/99minutos/admin-backend/internal/core/session"
	"github.com/99minutos/admin-backend/internal/pkg/clock"
)

const (
	// SessionCookie carries the session id.
	SessionCookie = "admin_sid"

	sessionContextKey = "admin.session"
)

type SessionConfig struct {
	Store      ports.SessionStore
	Identities ports.IdentityRepository
	Audit      ports.AuditSink
	Clock      clock.Clock
	TTL        time.Duration
	Secure     bool
	Log        zerolog.Logger
}

// Session loads the session of the caller, holds its lock for the whole
// request and saves it afterwards if it changed. The identity of an
// authenticated session is resolved once here; when it no longer resolves
// the session is cleared and the request continues anonymous. A login is
// answered with a new session id.
func Session(cfg SessionConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			id := sessionID(c, cfg)

			unlock, err := cfg.Store.Lock(ctx, id)
			if err != nil {
				return err
			}
			defer unlock()

			state, err := cfg.Store.Load(ctx, id)
			if err != nil {
				return err
			}
			sess := session.New(id, state, cfg.Store)

			if err := resolveIdentity(c, cfg, sess); err != nil {
				return err
			}
			SetSession(c, sess)

			// a login moves the session to a fresh id before the headers go out
			c.Response().Before(func() { renew(c, cfg, sess) })
			err = next(c)
			if !c.Response().Committed {
				renew(c, cfg, sess)
			}
			if saveErr := sess.Save(ctx); saveErr != nil {
				cfg.Log.Error().Err(saveErr).Str("path", c.Path()).Msg("session not saved")
			}
			return err
		}
	}
}

// CurrentSession returns the session installed by the Session middleware, or
// nil outside of it.
func CurrentSession(c echo.Context) *session.Session {
	sess, _ := c.Get(sessionContextKey).(*session.Session)
	return sess
}

// SetSession installs sess on the request context.
func SetSession(c echo.Context, sess *session.Session) {
	c.Set(sessionContextKey, sess)
}

func sessionID(c echo.Context, cfg SessionConfig) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			return cookie.Value
		}
	}

	id := uuid.NewString()
	setSessionCookie(c, cfg, id)
	return id
}

func renew(c echo.Context, cfg SessionConfig, sess *session.Session) {
	if !sess.NeedsRenewal() {
		return
	}
	id := uuid.NewString()
	sess.Renew(id)
	setSessionCookie(c, cfg, id)
}

func setSessionCookie(c echo.Context, cfg SessionConfig, id string) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cfg.TTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func resolveIdentity(c echo.Context, cfg SessionConfig, sess *session.Session) error {
	if !sess.State.Authenticated || sess.State.IdentityID == "" {
		return nil
	}
	ctx := c.Request().Context()
	identityID := sess.State.IdentityID

	identity, err := cfg.Identities.FindByID(ctx, identityID)
	switch {
	case err == nil && identity.Active:
		sess.Identity = identity
		return nil
	case err == nil, errors.Is(err, domain.ErrIdentityNotFound):
		// forced logout
	default:
		return fmt.Errorf("resolve session identity: %w", err)
	}

	cfg.Log.Warn().
		Err(domain.ErrIntegrityBroken).
		Str("identity", identityID).
		Msg("session identity no longer valid, signing out")
	if cfg.Audit != nil {
		cfg.Audit.Enqueue(domain.AuditEvent{
			IdentityID: identityID,
			Action:     domain.AuditForcedLogout,
			RemoteIP:   c.RealIP(),
			Timestamp:  cfg.Clock.Now(),
		})
	}
	return sess.Clear(ctx)
}
