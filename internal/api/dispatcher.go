package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/api/metrics"
	"github.com/99minutos/admin-backend/internal/api/middleware"
	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/ports"
	"github.com/99minutos/admin-backend/internal/core/service"
	"github.com/99minutos/admin-backend/internal/core/session"
	"github.com/99minutos/admin-backend/internal/pkg/clock"
	"github.com/99minutos/admin-backend/internal/plugin"
)

// Names consumed by the dispatcher. No plugin may be registered under them.
const (
	ResetPasswordName   = "reset-password"
	SetUserPasswordName = "set-user-password"
	AssetsName          = "assets"
	LoginNamespace      = plugin.CmsName

	// NonceField is the form field carrying the CSRF token of a page form.
	NonceField = "_nonce"

	defaultLocale = "en"
	installPlugin = "install"
)

// ReservedNames lists every plugin name the dispatcher handles itself.
func ReservedNames() []string {
	return []string{ResetPasswordName, SetUserPasswordName, AssetsName}
}

// ResetTokenValidator checks the token of the standalone password forms.
type ResetTokenValidator interface {
	ValidateResetToken(ctx context.Context, token, purpose string) (string, error)
}

type ApplicationDeps struct {
	Prefix    string
	BaseURL   string
	NonceTTL  time.Duration
	Health    ports.HealthChecker
	Settings  ports.SettingsStore
	Heartbeat *service.IntegrityWorkflow
	Authz     *service.Authorizator
	Plugins   *plugin.Registry
	Tokens    ResetTokenValidator
	Renderer  Renderer
	Assets    echo.HandlerFunc
	Audit     ports.AuditSink
	Clock     clock.Clock
	Log       zerolog.Logger
}

// Application is the front controller of the administration. Run decides,
// for every page request, which single response is sent.
type Application struct {
	prefix    string
	baseURL   string
	nonceTTL  time.Duration
	health    ports.HealthChecker
	settings  ports.SettingsStore
	heartbeat *service.IntegrityWorkflow
	authz     *service.Authorizator
	plugins   *plugin.Registry
	errorPage plugin.Plugin
	tokens    ResetTokenValidator
	renderer  Renderer
	assets    echo.HandlerFunc
	audit     ports.AuditSink
	clock     clock.Clock
	log       zerolog.Logger
}

func NewApplication(d ApplicationDeps) *Application {
	errorPage, err := d.Plugins.Resolve(plugin.ErrorName)
	if err != nil {
		errorPage = plugin.NewErrorPage()
	}
	return &Application{
		prefix:    strings.Trim(d.Prefix, "/"),
		baseURL:   strings.TrimRight(d.BaseURL, "/"),
		nonceTTL:  d.NonceTTL,
		health:    d.Health,
		settings:  d.Settings,
		heartbeat: d.Heartbeat,
		authz:     d.Authz,
		plugins:   d.Plugins,
		errorPage: errorPage,
		tokens:    d.Tokens,
		renderer:  d.Renderer,
		assets:    d.Assets,
		audit:     d.Audit,
		clock:     d.Clock,
		log:       d.Log,
	}
}

// Handle serves <prefix>, <prefix>/:plugin and <prefix>/:plugin/:view.
func (a *Application) Handle(c echo.Context) error {
	return a.Run(c, c.Param("plugin"), c.Param("view"), locale(c))
}

// HandleAsset serves <prefix>/assets/*.
func (a *Application) HandleAsset(c echo.Context) error {
	return a.Run(c, AssetsName, c.Param("*"), locale(c))
}

// Run sends exactly one response for the request. The checks below run in a
// fixed order and the first one that answers ends the request.
func (a *Application) Run(c echo.Context, pluginName, view, loc string) error {
	if c == nil {
		return domain.ErrNotHTTPContext
	}
	ctx := c.Request().Context()
	sess := middleware.CurrentSession(c)
	if sess == nil {
		return errors.New("dispatch: no session on request")
	}

	// installation
	rel := a.relativePath(c)
	if report := a.health.Check(ctx); !report.Ready() {
		metrics.DispatchTotal.WithLabelValues("install").Inc()
		if rel != "" {
			return c.Redirect(http.StatusFound, a.URLFor(domain.RedirectTarget{}))
		}
		return a.renderer.Render(c, http.StatusOK, &Page{
			Plugin: installPlugin,
			View:   "default",
			Title:  "Installation",
			Locale: loc,
			Data: map[string]any{
				"databaseOk":  report.DatabaseOK,
				"cloudLinked": report.CloudLinked,
				"basicConfig": report.BasicConfig,
			},
		})
	}

	if a.heartbeat.Run(ctx, sess) {
		metrics.HeartbeatRunsTotal.Inc()
		// settings are reloaded once per heartbeat
		sess.State.Settings = nil
	}

	guard := a.nonceGuard(c, sess)

	// standalone password forms, the token is the credential
	switch pluginName {
	case ResetPasswordName:
		return a.renderTokenForm(c, guard, pluginName, service.PurposePasswordReset, loc)
	case SetUserPasswordName:
		return a.renderTokenForm(c, guard, pluginName, service.PurposeInitialPassword, loc)
	}

	if pluginName == AssetsName || strings.HasPrefix(rel, AssetsName+"/") {
		metrics.DispatchTotal.WithLabelValues("asset").Inc()
		return a.assets(c)
	}

	// login gate
	if !sess.IsAuthenticated() && pluginName != LoginNamespace {
		page := &Page{Plugin: LoginNamespace, Locale: loc, Nonce: guard.Current(), Project: a.setting(ctx, sess, domain.SettingProjectName)}
		if sess.OtpPending() {
			metrics.DispatchTotal.WithLabelValues("need_otp").Inc()
			page.View, page.Title = "otp", "Two-factor verification"
		} else {
			metrics.DispatchTotal.WithLabelValues("login").Inc()
			page.View, page.Title = "sign-in", "Sign in"
		}
		return a.renderer.Render(c, http.StatusOK, page)
	}

	if pluginName == "" {
		pluginName = plugin.HomepageName
	}
	if view == "" {
		view = "default"
	}
	access := service.NewMenuAuthorizator(a.authz, sess.Identity)
	pc := &plugin.Context{
		Plugin:  pluginName,
		View:    view,
		Locale:  loc,
		Method:  c.Request().Method,
		Query:   c.QueryParams(),
		Session: sess,
		Access:  access,
		Page:    &plugin.Page{},
	}

	p, err := a.plugins.Resolve(pluginName)
	if err != nil {
		if errors.Is(err, domain.ErrPluginNotFound) {
			a.log.Debug().Str("plugin", pluginName).Msg("unknown plugin")
		} else {
			a.log.Error().Err(err).Str("plugin", pluginName).Msg("plugin resolution failed")
		}
		return a.renderError(ctx, c, pc, guard, http.StatusNotFound, "page not found")
	}

	if pluginName != LoginNamespace && !access.IsAllowedPlugin(pluginName) {
		a.record(c, sess, domain.AuditPermissionDenied, pluginName+"/"+view)
		metrics.DispatchTotal.WithLabelValues("denied").Inc()
		// denial is a rendered page, the status stays 200
		return a.renderError(ctx, c, pc, guard, http.StatusOK, "permission denied")
	}

	if c.Request().Method == http.MethodPost {
		nonce := c.FormValue(NonceField)
		ok, err := guard.Verify(ctx, nonce)
		if err != nil {
			return err
		}
		if !ok {
			metrics.NonceVerificationsTotal.WithLabelValues("invalid").Inc()
			return a.renderError(ctx, c, pc, guard, http.StatusOK, "the form has expired, please try again")
		}
		metrics.NonceVerificationsTotal.WithLabelValues("valid").Inc()
		pc.NonceVerified = nonce != ""
	}

	outcome, err := plugin.Lifecycle(ctx, p, pc)
	if err != nil {
		return a.renderFailure(ctx, c, pc, guard, err)
	}

	switch outcome.Kind {
	case domain.OutcomeRedirect:
		metrics.DispatchTotal.WithLabelValues("redirect").Inc()
		return c.Redirect(http.StatusFound, a.URLFor(outcome.Redirect))
	case domain.OutcomeTerminate:
		metrics.DispatchTotal.WithLabelValues("terminate").Inc()
		return c.NoContent(http.StatusOK)
	case domain.OutcomeUserError:
		metrics.DispatchTotal.WithLabelValues("user_error").Inc()
		return a.renderError(ctx, c, pc, guard, http.StatusOK, outcome.Message)
	}

	metrics.DispatchTotal.WithLabelValues("render").Inc()
	return a.render(c, http.StatusOK, pc, guard)
}

// URLFor resolves a redirect target. A destination is "plugin" or
// "plugin:view"; an empty target is the administration root.
func (a *Application) URLFor(target domain.RedirectTarget) string {
	if target.URL != "" {
		return target.URL
	}

	path := "/" + a.prefix
	if target.Destination != "" {
		name, view, _ := strings.Cut(target.Destination, ":")
		path += "/" + url.PathEscape(name)
		if view != "" {
			path += "/" + url.PathEscape(view)
		}
	}
	if len(target.Args) > 0 {
		q := url.Values{}
		for k, v := range target.Args {
			q.Set(k, v)
		}
		path += "?" + q.Encode()
	}
	return path
}

// AbsoluteURLFor is URLFor prefixed with the public base URL, used in links
// sent outside the browser session.
func (a *Application) AbsoluteURLFor(target domain.RedirectTarget) string {
	u := a.URLFor(target)
	if strings.HasPrefix(u, "/") {
		return a.baseURL + u
	}
	return u
}

func (a *Application) renderTokenForm(c echo.Context, guard *service.NonceGuard, name, purpose, loc string) error {
	metrics.DispatchTotal.WithLabelValues("reset_form").Inc()

	token := c.QueryParam("token")
	data := map[string]any{"token": token, "valid": true}
	if _, err := a.tokens.ValidateResetToken(c.Request().Context(), token, purpose); err != nil {
		_, msg, _ := PublicError(err)
		data["valid"] = false
		data["error"] = msg
	}

	title := "Reset password"
	if name == SetUserPasswordName {
		title = "Choose your password"
	}
	return a.renderer.Render(c, http.StatusOK, &Page{
		Plugin: name,
		View:   "default",
		Title:  title,
		Locale: loc,
		Nonce:  guard.Current(),
		Data:   data,
	})
}

// renderFailure shows a genuine error raised by plugin code. Only messages
// meant for the operator are shown; anything else is logged and replaced.
func (a *Application) renderFailure(ctx context.Context, c echo.Context, pc *plugin.Context, guard *service.NonceGuard, err error) error {
	metrics.DispatchTotal.WithLabelValues("error").Inc()

	if _, msg, ok := PublicError(err); ok {
		return a.renderError(ctx, c, pc, guard, http.StatusOK, msg)
	}
	a.log.Error().
		Err(err).
		Str("plugin", pc.Plugin).
		Str("view", pc.View).
		Str("path", c.Request().URL.Path).
		Msg("plugin failed")
	return a.renderError(ctx, c, pc, guard, http.StatusInternalServerError, GenericErrorMessage)
}

// renderError replaces the current plugin with the error page titled message.
func (a *Application) renderError(ctx context.Context, c echo.Context, pc *plugin.Context, guard *service.NonceGuard, status int, message string) error {
	pc.Plugin = plugin.ErrorName
	pc.View = "default"
	pc.Page = &plugin.Page{Title: message}

	if _, err := plugin.Lifecycle(ctx, a.errorPage, pc); err != nil {
		a.log.Error().Err(err).Msg("error page failed")
	}
	return a.render(c, status, pc, guard)
}

func (a *Application) render(c echo.Context, status int, pc *plugin.Context, guard *service.NonceGuard) error {
	page := &Page{
		Plugin: pc.Plugin,
		View:   pc.View,
		Title:  pc.Page.Title,
		Locale: pc.Locale,
		Nonce:  guard.Current(),
		Data:   pc.Page.Data,
	}
	page.Project = a.setting(c.Request().Context(), pc.Session, domain.SettingProjectName)
	if identity := pc.Identity(); identity != nil {
		page.Identity = identity
		page.Menu = a.plugins.Menu(pc.Access)
	}
	return a.renderer.Render(c, status, page)
}

// setting reads key through the settings blob cached in the session.
func (a *Application) setting(ctx context.Context, sess *session.Session, key string) string {
	if v, ok := sess.State.Settings[key]; ok {
		return v
	}
	v, _, err := a.settings.Get(ctx, key)
	if err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("setting not loaded")
		return ""
	}
	if sess.State.Settings == nil {
		sess.State.Settings = make(map[string]string)
	}
	sess.State.Settings[key] = v
	sess.MarkDirty()
	return v
}

func (a *Application) nonceGuard(c echo.Context, sess *session.Session) *service.NonceGuard {
	return service.NewNonceGuard(sess, a.clock,
		service.WithNonceTTL(a.nonceTTL),
		service.WithHeadersSent(func() bool { return c.Response().Committed }),
	)
}

func (a *Application) record(c echo.Context, sess *session.Session, action, subject string) {
	if a.audit == nil {
		return
	}
	a.audit.Enqueue(domain.AuditEvent{
		IdentityID: sess.State.IdentityID,
		Action:     action,
		Subject:    subject,
		RemoteIP:   c.RealIP(),
		Timestamp:  a.clock.Now(),
	})
}

// relativePath returns the request path below the prefix without slashes at
// either end; the administration root is "".
func (a *Application) relativePath(c echo.Context) string {
	p := strings.Trim(c.Request().URL.Path, "/")
	if p == a.prefix {
		return ""
	}
	return strings.Trim(strings.TrimPrefix(p, a.prefix+"/"), "/")
}

func locale(c echo.Context) string {
	if l := c.QueryParam("lang"); l != "" {
		return l
	}
	header := c.Request().Header.Get("Accept-Language")
	if header == "" {
		return defaultLocale
	}
	first, _, _ := strings.Cut(header, ",")
	first, _, _ = strings.Cut(first, ";")
	if first = strings.TrimSpace(first); first == "" || first == "*" {
		return defaultLocale
	}
	return first
}
