package endpoints

import (
	"context"
	"fmt"
	"strings"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/endpoint"
	"github.com/99minutos/admin-backend/internal/core/ports"
	"github.com/99minutos/admin-backend/internal/core/service"
	"github.com/99minutos/admin-backend/internal/pkg/clock"
	"github.com/99minutos/admin-backend/internal/plugin"
)

// User manages identities, their passwords and two-factor enrollment.
type User struct {
	auth       ports.AuthService
	enrollment *service.OtpEnrollment
	identities ports.IdentityRepository
	audit      ports.AuditSink
	links      LinkBuilder
	clock      clock.Clock
}

func NewUser(auth ports.AuthService, enrollment *service.OtpEnrollment, identities ports.IdentityRepository, audit ports.AuditSink, links LinkBuilder, clk clock.Clock) *User {
	return &User{auth: auth, enrollment: enrollment, identities: identities, audit: audit, links: links, clock: clk}
}

type createInput struct {
	Username string `validate:"required,max=128"`
	Email    string `validate:"omitempty,email"`
}

type otpConfirmInput struct {
	Secret string `validate:"required"`
	Code   string `validate:"required,numeric,len=6"`
}

func (e *User) Actions() []endpoint.Action {
	return []endpoint.Action{
		{
			Method:  "actionSetPassword",
			Params:  []endpoint.Param{endpoint.NullableString("id"), endpoint.StringParam("password")},
			Handler: e.setPassword,
		},
		{
			Method:  "actionOtpCode",
			Handler: e.otpCode,
		},
		{
			Method:  "postOtpConfirm",
			Params:  []endpoint.Param{endpoint.StringParam("secret"), endpoint.StringParam("code")},
			Handler: e.otpConfirm,
		},
		{
			Method:  "actionRemoveOtp",
			Params:  []endpoint.Param{endpoint.NullableString("id")},
			Handler: e.removeOtp,
		},
		{
			Method: "postCreate",
			Params: []endpoint.Param{
				endpoint.StringParam("username"),
				endpoint.StringParam("email").Optional(""),
				endpoint.StringParam("roles").Optional(""),
			},
			Handler: e.create,
		},
		{
			Method:  "actionDetail",
			Params:  []endpoint.Param{endpoint.StringParam("id")},
			Handler: e.detail,
		},
	}
}

// target resolves the identity an action applies to: the caller when id is
// null or its own id, anyone else only with privilege users/<privilege>.
func (e *User) target(req *endpoint.Request, privilege string) (string, error) {
	self := req.Session.Identity
	id := req.Args.StringPtr("id")
	if id == nil || *id == self.ID {
		return self.ID, nil
	}
	if !req.Access.IsAllowedComponent(plugin.UsersName, privilege) {
		return "", fmt.Errorf("%s %s: %w", plugin.UsersName, privilege, domain.ErrPermissionDenied)
	}
	return *id, nil
}

func (e *User) setPassword(ctx context.Context, req *endpoint.Request) (*endpoint.Result, error) {
	id, err := e.target(req, "set-password")
	if err != nil {
		return nil, err
	}
	if err := e.auth.SetPassword(ctx, id, req.Args.String("password")); err != nil {
		return nil, err
	}
	e.record(req, domain.AuditPasswordChanged, id)
	return endpoint.Data(nil), nil
}

func (e *User) otpCode(ctx context.Context, req *endpoint.Request) (*endpoint.Result, error) {
	enrollment, err := e.enrollment.Begin(ctx, req.Session.Identity)
	if err != nil {
		return nil, err
	}
	return endpoint.Data(map[string]any{
		"secret": enrollment.Secret,
		"uri":    enrollment.URI,
		"qrUrl":  enrollment.QRCodeURL,
	}), nil
}

func (e *User) otpConfirm(ctx context.Context, req *endpoint.Request) (*endpoint.Result, error) {
	in := otpConfirmInput{Secret: req.Args.String("secret"), Code: req.Args.String("code")}
	if err := check(in); err != nil {
		return nil, err
	}
	identity := req.Session.Identity
	if err := e.enrollment.Confirm(ctx, identity, in.Secret, in.Code); err != nil {
		return nil, err
	}
	e.record(req, domain.AuditOtpChanged, identity.ID)
	return endpoint.Data(map[string]any{"otpEnabled": true}), nil
}

func (e *User) removeOtp(ctx context.Context, req *endpoint.Request) (*endpoint.Result, error) {
	id, err := e.target(req, "remove-otp")
	if err != nil {
		return nil, err
	}
	if err := e.enrollment.Remove(ctx, id); err != nil {
		return nil, err
	}
	if id == req.Session.Identity.ID {
		req.Session.Identity.OtpSecret = nil
	}
	e.record(req, domain.AuditOtpChanged, id)
	return endpoint.Data(map[string]any{"otpEnabled": false}), nil
}

// create stores a passwordless identity and returns the link of its initial
// password form. Only admins may hand out the admin role.
func (e *User) create(ctx context.Context, req *endpoint.Request) (*endpoint.Result, error) {
	if !req.Access.IsAllowedComponent(plugin.UsersName, "create") {
		return nil, fmt.Errorf("%s create: %w", plugin.UsersName, domain.ErrPermissionDenied)
	}
	in := createInput{Username: strings.TrimSpace(req.Args.String("username")), Email: req.Args.String("email")}
	if err := check(in); err != nil {
		return nil, err
	}
	roles := splitRoles(req.Args.String("roles"))
	for _, r := range roles {
		if r == domain.RoleAdmin && !req.Session.Identity.IsAdmin() {
			return nil, fmt.Errorf("assign role %s: %w", r, domain.ErrPermissionDenied)
		}
	}

	created, token, err := e.auth.CreateIdentity(ctx, domain.Identity{Username: in.Username, Email: in.Email, Roles: roles})
	if err != nil {
		return nil, err
	}
	link := e.links(domain.RedirectTarget{Destination: "set-user-password", Args: map[string]string{"token": token}})
	e.record(req, domain.AuditIdentityCreated, created.ID)
	return endpoint.Data(map[string]any{"id": created.ID, "link": link}), nil
}

func splitRoles(raw string) []string {
	roles := []string{}
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func (e *User) detail(ctx context.Context, req *endpoint.Request) (*endpoint.Result, error) {
	if !req.Access.IsAllowedComponent(plugin.UsersName, "detail") {
		return nil, domain.ErrPermissionDenied
	}
	identity, err := e.identities.FindByID(ctx, req.Args.String("id"))
	if err != nil {
		return nil, err
	}
	return endpoint.Data(map[string]any{
		"identity":   identity,
		"otpEnabled": identity.OtpEnabled(),
	}), nil
}

func (e *User) record(req *endpoint.Request, action, subject string) {
	if e.audit == nil {
		return
	}
	e.audit.Enqueue(domain.AuditEvent{
		IdentityID: req.Session.Identity.ID,
		Action:     action,
		Subject:    subject,
		RemoteIP:   req.RemoteIP,
		Timestamp:  e.clock.Now(),
	})
}
