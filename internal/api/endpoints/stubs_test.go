package endpoints

import (
	"context"
	"strings"
	"time"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/endpoint"
	"github.com/99minutos/admin-backend/internal/core/ports"
	"github.com/99minutos/admin-backend/internal/core/session"
)

type stubAuth struct {
	signIn      *ports.SignInResult
	signInErr   error
	otpIdentity *domain.Identity
	otpErr      error
	tokenID     string
	tokenErr    error
	issueErr    error
	setErr      error
	createErr   error
	passwords   map[string]string
	usedTokens  map[string]bool
	created     []domain.Identity
}

func newStubAuth() *stubAuth {
	return &stubAuth{passwords: map[string]string{}, usedTokens: map[string]bool{}}
}

func (a *stubAuth) SignIn(context.Context, string, string) (*ports.SignInResult, error) {
	return a.signIn, a.signInErr
}

func (a *stubAuth) CheckOtp(context.Context, string, string) (*domain.Identity, error) {
	return a.otpIdentity, a.otpErr
}

func (a *stubAuth) IssueResetToken(context.Context, string, string) (string, error) {
	return "token", a.issueErr
}

func (a *stubAuth) ValidateResetToken(_ context.Context, token, _ string) (string, error) {
	if a.tokenErr != nil {
		return "", a.tokenErr
	}
	if a.usedTokens[token] {
		return "", domain.ErrTokenExpired
	}
	return a.tokenID, nil
}

func (a *stubAuth) ResetPassword(ctx context.Context, token, purpose, password string) (string, error) {
	id, err := a.ValidateResetToken(ctx, token, purpose)
	if err != nil {
		return "", err
	}
	if err := a.SetPassword(ctx, id, password); err != nil {
		return "", err
	}
	a.usedTokens[token] = true
	return id, nil
}

func (a *stubAuth) CreateIdentity(_ context.Context, draft domain.Identity) (*domain.Identity, string, error) {
	if a.createErr != nil {
		return nil, "", a.createErr
	}
	draft.ID = "9"
	draft.Active = true
	a.created = append(a.created, draft)
	return &draft, "init-token", nil
}

func (a *stubAuth) SetPassword(_ context.Context, id, password string) error {
	if a.setErr != nil {
		return a.setErr
	}
	a.passwords[id] = password
	return nil
}

type auditRecorder struct {
	events []domain.AuditEvent
}

func (r *auditRecorder) Enqueue(event domain.AuditEvent) { r.events = append(r.events, event) }

func (r *auditRecorder) actions() string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return strings.Join(out, ",")
}

// stubAccess allows "plugin/component" pairs listed in components.
type stubAccess struct {
	components map[string]bool
}

func (a stubAccess) IsAllowedPlugin(string) bool { return true }

func (a stubAccess) IsAllowedComponent(plugin, component string) bool {
	return a.components[plugin+"/"+component]
}

type stubIdentities struct {
	byID map[string]*domain.Identity
}

func newStubIdentities(identities ...*domain.Identity) *stubIdentities {
	r := &stubIdentities{byID: map[string]*domain.Identity{}}
	for _, i := range identities {
		r.byID[i.ID] = i
	}
	return r
}

func (r *stubIdentities) FindByID(_ context.Context, id string) (*domain.Identity, error) {
	if i, ok := r.byID[id]; ok {
		return i, nil
	}
	return nil, domain.ErrIdentityNotFound
}

func (r *stubIdentities) FindByUsername(context.Context, string) (*domain.Identity, error) {
	return nil, domain.ErrIdentityNotFound
}

func (r *stubIdentities) List(context.Context) ([]*domain.Identity, error) { return nil, nil }

func (r *stubIdentities) Create(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	return identity, nil
}

func (r *stubIdentities) UpdatePassword(context.Context, string, string) error { return nil }

func (r *stubIdentities) SetOtpSecret(_ context.Context, id string, secret []byte) error {
	i, ok := r.byID[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	i.OtpSecret = secret
	return nil
}

func (r *stubIdentities) TouchActivity(context.Context, string, time.Time) error { return nil }

type memoryCache map[string][]byte

func (c memoryCache) Stage(_ context.Context, key string, value []byte, _ time.Duration) error {
	c[key] = value
	return nil
}

func (c memoryCache) Fetch(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c[key]
	return v, ok, nil
}

func (c memoryCache) Drop(_ context.Context, key string) error {
	delete(c, key)
	return nil
}

func signedIn(identity *domain.Identity) *session.Session {
	sess := session.New("sid", nil, nil)
	sess.Login(identity)
	return sess
}

func request(sess *session.Session, access endpoint.Access) endpoint.Request {
	return endpoint.Request{Session: sess, Access: access, RemoteIP: "10.0.0.1"}
}
