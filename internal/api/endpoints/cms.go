// Package endpoints holds the API endpoints reachable at
// <prefix>/api/<package>/<signal>. Each one declares its actions in a table
// read by the invoker.
package endpoints

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/api/metrics"
	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/endpoint"
	"github.com/99minutos/admin-backend/internal/core/ports"
	"github.com/99minutos/admin-backend/internal/core/service"
	"github.com/99minutos/admin-backend/internal/pkg/clock"
	"github.com/99minutos/admin-backend/internal/plugin"
)

// LinkBuilder returns an absolute URL for target.
type LinkBuilder func(target domain.RedirectTarget) string

// Cms implements the login namespace: sign in, second factor, sign out and
// the token based password forms.
type Cms struct {
	auth  ports.AuthService
	audit ports.AuditSink
	links LinkBuilder
	clock clock.Clock
	log   zerolog.Logger
}

func NewCms(auth ports.AuthService, audit ports.AuditSink, links LinkBuilder, clk clock.Clock, log zerolog.Logger) *Cms {
	return &Cms{auth: auth, audit: audit, links: links, clock: clk, log: log}
}

type signInInput struct {
	Username string `validate:"required,max=128"`
	Password string `validate:"required"`
}

type otpInput struct {
	Code string `validate:"required,numeric,len=6"`
}

type passwordInput struct {
	Token    string `validate:"required"`
	Password string `validate:"required,min=8"`
}

func (e *Cms) Actions() []endpoint.Action {
	return []endpoint.Action{
		{
			Method:  "postSignIn",
			Params:  []endpoint.Param{endpoint.StringParam("username"), endpoint.StringParam("password")},
			Handler: e.signIn,
		},
		{
			Method:  "postCheckOtp",
			Params:  []endpoint.Param{endpoint.StringParam("code")},
			Handler: e.checkOtp,
		},
		{
			Method:  "postSignOut",
			Handler: e.signOut,
		},
		{
			Method:  "postForgotPassword",
			Params:  []endpoint.Param{endpoint.StringParam("username")},
			Handler: e.forgotPassword,
		},
		{
			Method:  "postResetPassword",
			Params:  []endpoint.Param{endpoint.StringParam("token"), endpoint.StringParam("password")},
			Handler: e.passwordForm(service.PurposePasswordReset),
		},
		{
			Method:  "postSetUserPassword",
			Params:  []endpoint.Param{endpoint.StringParam("token"), endpoint.StringParam("password")},
			Handler: e.passwordForm(service.PurposeInitialPassword),
		},
	}
}

func (e *Cms) signIn(ctx context.Context, req *endpoint.Request) (*endpoint.Result, error) {
	in := signInInput{Username: req.Args.String("username"), Password: req.Args.String("password")}
	if err := check(in); err != nil {
		return nil, err
	}

	res, err := e.auth.SignIn(ctx, in.Username, in.Password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthenticationFailed) {
			metrics.AuthAttemptsTotal.WithLabelValues("password", "failed").Inc()
			e.record(req, "", domain.AuditSignInFailed, in.Username)
		}
		return nil, err
	}
	metrics.AuthAttemptsTotal.WithLabelValues("password", "ok").Inc()

	if res.NeedOtp {
		req.Session.AwaitOtp(res.Identity)
		return endpoint.Data(map[string]any{"needOtp": true}), nil
	}
	req.Session.Login(res.Identity)
	e.record(req, res.Identity.ID, domain.AuditSignIn, "")
	return endpoint.Data(map[string]any{"needOtp": false}), nil
}

func (e *Cms) checkOtp(ctx context.Context, req *endpoint.Request) (*endpoint.Result, error) {
	sess := req.Session
	if !sess.OtpPending() {
		return nil, domain.NewUserMessage("no sign-in is waiting for a verification code")
	}
	in := otpInput{Code: req.Args.String("code")}
	if err := check(in); err != nil {
		return nil, err
	}

	identityID := sess.State.IdentityID
	identity, err := e.auth.CheckOtp(ctx, identityID, in.Code)
	switch {
	case errors.Is(err, domain.ErrIntegrityBroken):
		if clearErr := sess.Clear(ctx); clearErr != nil {
			return nil, clearErr
		}
		e.record(req, identityID, domain.AuditForcedLogout, "")
		return nil, err
	case errors.Is(err, domain.ErrOtpInvalid):
		metrics.AuthAttemptsTotal.WithLabelValues("otp", "failed").Inc()
		e.record(req, identityID, domain.AuditOtpFailed, "")
		return nil, err
	case err != nil:
		return nil, err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("otp", "ok").Inc()
	sess.Login(identity)
	e.record(req, identity.ID, domain.AuditSignIn, "otp")
	return endpoint.Data(nil), nil
}

func (e *Cms) signOut(ctx context.Context, req *endpoint.Request) (*endpoint.Result, error) {
	if err := req.Session.Clear(ctx); err != nil {
		return nil, err
	}
	return endpoint.Redirect(domain.RedirectRoute(plugin.CmsName, nil)), nil
}

// forgotPassword never tells whether the username exists.
func (e *Cms) forgotPassword(ctx context.Context, req *endpoint.Request) (*endpoint.Result, error) {
	username := req.Args.String("username")
	token, err := e.auth.IssueResetToken(ctx, username, service.PurposePasswordReset)
	switch {
	case errors.Is(err, domain.ErrIdentityNotFound):
		e.log.Debug().Str("username", username).Msg("password reset requested for unknown user")
	case err != nil:
		return nil, fmt.Errorf("issue reset token: %w", err)
	default:
		link := e.links(domain.RedirectTarget{Destination: "reset-password", Args: map[string]string{"token": token}})
		e.log.Debug().Str("username", username).Str("link", link).Msg("password reset link issued")
	}
	return endpoint.Data(map[string]any{"sent": true}), nil
}

func (e *Cms) passwordForm(purpose string) endpoint.Handler {
	return func(ctx context.Context, req *endpoint.Request) (*endpoint.Result, error) {
		in := passwordInput{Token: req.Args.String("token"), Password: req.Args.String("password")}
		if err := check(in); err != nil {
			return nil, err
		}
		identityID, err := e.auth.ResetPassword(ctx, in.Token, purpose, in.Password)
		if err != nil {
			return nil, err
		}
		e.record(req, identityID, domain.AuditPasswordChanged, purpose)
		return endpoint.Redirect(domain.RedirectRoute(plugin.CmsName, nil)), nil
	}
}

func (e *Cms) record(req *endpoint.Request, identityID, action, subject string) {
	if e.audit == nil {
		return
	}
	e.audit.Enqueue(domain.AuditEvent{
		IdentityID: identityID,
		Action:     action,
		Subject:    subject,
		RemoteIP:   req.RemoteIP,
		Timestamp:  e.clock.Now(),
	})
}
