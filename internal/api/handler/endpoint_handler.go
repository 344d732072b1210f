package handler

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/api/metrics"
	"github.com/99minutos/admin-backend/internal/api/middleware"
	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/endpoint"
	"github.com/99minutos/admin-backend/internal/core/ports"
	"github.com/99minutos/admin-backend/internal/core/service"
	"github.com/99minutos/admin-backend/internal/pkg/clock"
)

// NonceHeader carries the CSRF token of an API call. Calls without it are
// not checked.
const NonceHeader = "X-Admin-Nonce"

const maxJSONBody = 1 << 20

// URLResolver turns a redirect target into a concrete URL.
type URLResolver func(target domain.RedirectTarget) string

type EndpointHandlerConfig struct {
	Invoker *endpoint.Invoker
	Authz   *service.Authorizator
	Health  ports.HealthChecker
	Clock   clock.Clock
	// NonceTTL bounds the age of the token in NonceHeader.
	NonceTTL time.Duration
	// PublicPackage is the only package reachable without a session.
	PublicPackage string
	URLFor        URLResolver
	Log           zerolog.Logger
}

// EndpointHandler serves <prefix>/api/:package/:signal.
type EndpointHandler struct {
	cfg EndpointHandlerConfig
}

func NewEndpointHandler(cfg EndpointHandlerConfig) *EndpointHandler {
	return &EndpointHandler{cfg: cfg}
}

// Handle runs one endpoint action. Success answers the action data with
// "error": null. Failures go through the HTTP error handler, which renders
// {"error": "<message>"}. Until the installation is complete every call is
// sent to the administration root.
func (h *EndpointHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()
	pkg := c.Param("package")
	signal := c.Param("signal")

	if !h.cfg.Health.Check(ctx).Ready() {
		metrics.EndpointCallsTotal.WithLabelValues(pkg, "install").Inc()
		return c.Redirect(http.StatusFound, h.cfg.URLFor(domain.RedirectTarget{}))
	}

	sess := middleware.CurrentSession(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}
	if !sess.IsAuthenticated() && pkg != h.cfg.PublicPackage {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	guard := service.NewNonceGuard(sess, h.cfg.Clock,
		service.WithNonceTTL(h.cfg.NonceTTL),
		service.WithHeadersSent(func() bool { return c.Response().Committed }),
	)
	if token := c.Request().Header.Get(NonceHeader); token != "" {
		ok, err := guard.Verify(ctx, token)
		if err != nil {
			return err
		}
		if !ok {
			metrics.NonceVerificationsTotal.WithLabelValues("invalid").Inc()
			return domain.ErrTokenExpired
		}
		metrics.NonceVerificationsTotal.WithLabelValues("valid").Inc()
	}

	form, err := requestForm(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	call := endpoint.Call{
		Package:    pkg,
		Signal:     signal,
		HTTPMethod: c.Request().Method,
		Query:      c.QueryParams(),
		Form:       form,
		Request: endpoint.Request{
			Session:  sess,
			Access:   service.NewMenuAuthorizator(h.cfg.Authz, sess.Identity),
			RemoteIP: c.RealIP(),
		},
	}

	start := time.Now()
	result, err := h.cfg.Invoker.Process(ctx, call)
	metrics.EndpointDuration.WithLabelValues(pkg).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EndpointCallsTotal.WithLabelValues(pkg, "error").Inc()
		return err
	}
	if result == nil {
		metrics.EndpointCallsTotal.WithLabelValues(pkg, "no_result").Inc()
		return c.JSON(http.StatusOK, map[string]any{"error": nil})
	}

	switch result.Outcome.Kind {
	case domain.OutcomeRedirect:
		metrics.EndpointCallsTotal.WithLabelValues(pkg, "redirect").Inc()
		return c.Redirect(http.StatusFound, h.cfg.URLFor(result.Outcome.Redirect))
	case domain.OutcomeTerminate:
		metrics.EndpointCallsTotal.WithLabelValues(pkg, "ok").Inc()
		return c.NoContent(http.StatusOK)
	case domain.OutcomeUserError:
		metrics.EndpointCallsTotal.WithLabelValues(pkg, "error").Inc()
		return domain.NewUserMessage("%s", result.Outcome.Message)
	}

	metrics.EndpointCallsTotal.WithLabelValues(pkg, "ok").Inc()
	body := make(map[string]any, len(result.Data)+1)
	for k, v := range result.Data {
		body[k] = v
	}
	body["error"] = nil
	return c.JSON(http.StatusOK, body)
}

// requestForm returns the POST fields. A raw JSON body is returned as a
// single field so the invoker unwraps it like a posted JSON literal.
func requestForm(c echo.Context) (url.Values, error) {
	req := c.Request()
	if req.Method != http.MethodPost {
		return url.Values{}, nil
	}
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		raw, err := io.ReadAll(io.LimitReader(req.Body, maxJSONBody))
		if err != nil {
			return nil, err
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return url.Values{}, nil
		}
		return url.Values{body: {""}}, nil
	}
	if err := req.ParseForm(); err != nil {
		return nil, err
	}
	return req.PostForm, nil
}
