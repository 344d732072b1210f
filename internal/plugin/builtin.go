package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/ports"
)

const (
	HomepageName = "homepage"
	ErrorName    = "error"
	CmsName      = "cms"
	UsersName    = "users"
)

// --- homepage ---

type Homepage struct{ Base }

func NewHomepage() *Homepage {
	return &Homepage{Base{Desc: domain.PluginDescriptor{
		Name:     HomepageName,
		Service:  "plugin.homepage",
		Label:    "Dashboard",
		Priority: 100,
		Icon:     "home",
	}}}
}

func (h *Homepage) Views() map[string]View {
	return map[string]View{
		"actionDefault": func(_ context.Context, pc *Context) (domain.Outcome, error) {
			pc.Page.Title = "Dashboard"
			if identity := pc.Identity(); identity != nil {
				pc.Page.Set("username", identity.Username)
			}
			return domain.Continue(), nil
		},
	}
}

// --- error ---

// ErrorPage renders a failure. The dispatcher puts the message in Page.Title
// before running it.
type ErrorPage struct{ Base }

func NewErrorPage() *ErrorPage {
	return &ErrorPage{Base{Desc: domain.PluginDescriptor{Name: ErrorName, Service: "plugin.error"}}}
}

func (p *ErrorPage) Run(_ context.Context, pc *Context) (domain.Outcome, error) {
	if pc.Page.Title == "" {
		pc.Page.Title = "An error occurred"
	}
	pc.Page.Set("message", pc.Page.Title)
	return domain.Continue(), nil
}

// --- cms ---

// Cms serves the login namespace: sign in, second factor and sign out pages.
// The forms post to the cms endpoint.
type Cms struct{ Base }

func NewCms() *Cms {
	return &Cms{Base{Desc: domain.PluginDescriptor{Name: CmsName, Service: "plugin.cms"}}}
}

func (p *Cms) Views() map[string]View {
	return map[string]View{
		"actionDefault":        p.signIn,
		"actionSignIn":         p.signIn,
		"actionOtp":            p.otp,
		"actionForgotPassword": p.forgotPassword,
		"actionSignOut":        p.signOut,
	}
}

func (p *Cms) signIn(ctx context.Context, pc *Context) (domain.Outcome, error) {
	if pc.Session.IsAuthenticated() {
		return domain.RedirectRoute(HomepageName, nil), nil
	}
	if pc.Session.OtpPending() {
		return p.otp(ctx, pc)
	}
	pc.Page.Title = "Sign in"
	pc.Page.Set("form", "sign-in")
	return domain.Continue(), nil
}

func (p *Cms) otp(_ context.Context, pc *Context) (domain.Outcome, error) {
	if !pc.Session.OtpPending() {
		return domain.RedirectRoute(CmsName, nil), nil
	}
	pc.Page.Title = "Two-factor verification"
	pc.Page.Set("form", "check-otp")
	return domain.Continue(), nil
}

func (p *Cms) forgotPassword(_ context.Context, pc *Context) (domain.Outcome, error) {
	pc.Page.Title = "Forgot password"
	pc.Page.Set("form", "forgot-password")
	return domain.Continue(), nil
}

// signOut only acts on a POST carrying a verified nonce. Anything else
// renders the confirmation form.
func (p *Cms) signOut(ctx context.Context, pc *Context) (domain.Outcome, error) {
	if pc.Method != http.MethodPost || !pc.NonceVerified {
		pc.Page.Title = "Sign out"
		pc.Page.Set("form", "sign-out")
		return domain.Continue(), nil
	}
	if err := pc.Session.Clear(ctx); err != nil {
		return domain.Outcome{}, err
	}
	return domain.RedirectRoute(CmsName, nil), nil
}

// --- users ---

// Users lists and shows identities.
type Users struct {
	Base
	identities ports.IdentityRepository
}

func NewUsers(identities ports.IdentityRepository) *Users {
	return &Users{
		Base: Base{Desc: domain.PluginDescriptor{
			Name:       UsersName,
			Service:    "plugin.users",
			Label:      "Users",
			Priority:   50,
			Icon:       "users",
			Menu:       &domain.MenuItem{Label: "Users", Link: UsersName},
			BaseEntity: "identity",
		}},
		identities: identities,
	}
}

func (p *Users) Views() map[string]View {
	return map[string]View{
		"actionDefault": p.list,
		"actionDetail":  p.detail,
		"actionMe":      p.me,
	}
}

func (p *Users) list(ctx context.Context, pc *Context) (domain.Outcome, error) {
	if !pc.Access.IsAllowedComponent(UsersName, pc.View) {
		return domain.UserError("permission denied"), nil
	}
	identities, err := p.identities.List(ctx)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("list identities: %w", err)
	}
	pc.Page.Title = "Users"
	pc.Page.Set("identities", identities)
	pc.Page.Set("canCreate", pc.Access.IsAllowedComponent(UsersName, "create"))
	return domain.Continue(), nil
}

func (p *Users) detail(ctx context.Context, pc *Context) (domain.Outcome, error) {
	if !pc.Access.IsAllowedComponent(UsersName, pc.View) {
		return domain.UserError("permission denied"), nil
	}
	id := pc.Query.Get("id")
	if id == "" {
		return domain.RedirectRoute(UsersName, nil), nil
	}
	identity, err := p.identities.FindByID(ctx, id)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return domain.UserError("user not found"), nil
	}
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("load identity: %w", err)
	}
	pc.Page.Title = identity.Username
	pc.Page.Set("identity", identity)
	pc.Page.Set("otpEnabled", identity.OtpEnabled())
	return domain.Continue(), nil
}

func (p *Users) me(_ context.Context, pc *Context) (domain.Outcome, error) {
	identity := pc.Identity()
	pc.Page.Title = identity.Username
	pc.Page.Set("identity", identity)
	pc.Page.Set("otpEnabled", identity.OtpEnabled())
	return domain.Continue(), nil
}
