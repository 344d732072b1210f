// Package session holds the request scoped view of a user session. A Session
// is built by the session middleware for every request and discarded once the
// response is written; nothing in it outlives the request except what Save
// writes to the store.
package session

import (
	"context"
	"fmt"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/ports"
)

type Session struct {
	ID    string
	State *domain.SessionState
	// Identity is resolved once per request from State.IdentityID.
	Identity *domain.Identity

	store ports.SessionStore
	dirty bool
	renew bool

	// previous is the id abandoned by Renew, dropped on the next Save.
	previous string
}

// New wraps a loaded state. A nil state starts an empty session.
func New(id string, state *domain.SessionState, store ports.SessionStore) *Session {
	if state == nil {
		state = &domain.SessionState{}
	}
	return &Session{ID: id, State: state, store: store}
}

func (s *Session) MarkDirty() { s.dirty = true }

func (s *Session) Dirty() bool { return s.dirty }

// Save persists the state when it was modified during the request.
func (s *Session) Save(ctx context.Context) error {
	if !s.dirty || s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, s.ID, s.State); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.dirty = false
	if s.previous != "" {
		if err := s.store.Clear(ctx, s.previous); err != nil {
			return fmt.Errorf("drop previous session: %w", err)
		}
		s.previous = ""
	}
	return nil
}

// NeedsRenewal reports a privilege change that calls for a new session id.
func (s *Session) NeedsRenewal() bool { return s.renew }

// Renew moves the state to id. The old id stops working once Save runs.
func (s *Session) Renew(id string) {
	if s.previous == "" {
		s.previous = s.ID
	}
	s.ID = id
	s.renew = false
	s.dirty = true
}

// Clear drops the whole administration namespace of the session.
func (s *Session) Clear(ctx context.Context) error {
	s.State.Reset()
	s.Identity = nil
	s.dirty = false
	s.renew = false
	if s.store == nil {
		return nil
	}
	if err := s.store.Clear(ctx, s.ID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// IsAuthenticated reports a completed login, second factor included.
func (s *Session) IsAuthenticated() bool {
	return s.State.Authenticated && s.Identity != nil
}

// OtpPending reports an identity that passed the password check but still
// owes its one-time password.
func (s *Session) OtpPending() bool {
	return !s.State.Authenticated && s.State.OtpPending && s.State.IdentityID != ""
}

// Login marks identity as fully authenticated.
func (s *Session) Login(identity *domain.Identity) {
	s.State.IdentityID = identity.ID
	s.State.Authenticated = true
	s.State.OtpPending = false
	s.Identity = identity
	s.dirty = true
	s.renew = true
}

// AwaitOtp records a password-verified identity waiting for its second factor.
func (s *Session) AwaitOtp(identity *domain.Identity) {
	s.State.IdentityID = identity.ID
	s.State.Authenticated = false
	s.State.OtpPending = true
	s.Identity = nil
	s.dirty = true
	s.renew = true
}
