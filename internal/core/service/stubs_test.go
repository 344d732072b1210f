package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs shared by the service tests
// ---------------------------------------------------------------------------

type stubSessionStore struct {
	saves int
	state *domain.SessionState
}

func (s *stubSessionStore) Load(context.Context, string) (*domain.SessionState, error) {
	return s.state, nil
}

func (s *stubSessionStore) Save(_ context.Context, _ string, state *domain.SessionState) error {
	s.saves++
	s.state = state
	return nil
}

func (s *stubSessionStore) Clear(context.Context, string) error {
	s.state = nil
	return nil
}

func (s *stubSessionStore) Lock(context.Context, string) (func(), error) { return func() {}, nil }

type stubIdentityRepo struct {
	mu         sync.Mutex
	byID       map[string]*domain.Identity
	updatedPwd map[string]string
	findErr    error
}

func newStubIdentityRepo(identities ...*domain.Identity) *stubIdentityRepo {
	r := &stubIdentityRepo{byID: map[string]*domain.Identity{}, updatedPwd: map[string]string{}}
	for _, i := range identities {
		r.byID[i.ID] = i
	}
	return r
}

func (r *stubIdentityRepo) FindByID(_ context.Context, id string) (*domain.Identity, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if i, ok := r.byID[id]; ok {
		return i, nil
	}
	return nil, domain.ErrIdentityNotFound
}

func (r *stubIdentityRepo) FindByUsername(_ context.Context, username string) (*domain.Identity, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, i := range r.byID {
		if i.Username == username {
			return i, nil
		}
	}
	return nil, domain.ErrIdentityNotFound
}

func (r *stubIdentityRepo) List(context.Context) ([]*domain.Identity, error) {
	out := make([]*domain.Identity, 0, len(r.byID))
	for _, i := range r.byID {
		out = append(out, i)
	}
	return out, nil
}

func (r *stubIdentityRepo) Create(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	if identity.ID == "" {
		identity.ID = fmt.Sprintf("u%d", len(r.byID)+1)
	}
	r.byID[identity.ID] = identity
	return identity, nil
}

func (r *stubIdentityRepo) UpdatePassword(_ context.Context, id, hash string) error {
	if _, ok := r.byID[id]; !ok {
		return domain.ErrIdentityNotFound
	}
	r.updatedPwd[id] = hash
	r.byID[id].PasswordHash = hash
	return nil
}

func (r *stubIdentityRepo) SetOtpSecret(_ context.Context, id string, secret []byte) error {
	i, ok := r.byID[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	i.OtpSecret = secret
	return nil
}

func (r *stubIdentityRepo) TouchActivity(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.byID[id]; ok {
		i.LastActivity = at
	}
	return nil
}

type cacheEntry struct {
	value   []byte
	expires time.Time
}

// stubCache expires entries against the injected clock.
type stubCache struct {
	now     func() time.Time
	entries map[string]cacheEntry
}

func newStubCache(now func() time.Time) *stubCache {
	return &stubCache{now: now, entries: map[string]cacheEntry{}}
}

func (c *stubCache) Stage(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.entries[key] = cacheEntry{value: value, expires: c.now().Add(ttl)}
	return nil
}

func (c *stubCache) Fetch(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *stubCache) Drop(_ context.Context, key string) error {
	delete(c.entries, key)
	return nil
}
