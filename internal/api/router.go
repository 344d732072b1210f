package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/admin-backend/internal/api/endpoints"
	"github.com/99minutos/admin-backend/internal/api/handler"
	"github.com/99minutos/admin-backend/internal/api/middleware"
	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/endpoint"
	"github.com/99minutos/admin-backend/internal/core/service"
	mongostore "github.com/99minutos/admin-backend/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/admin-backend/internal/infrastructure/db/redis"
	"github.com/99minutos/admin-backend/internal/infrastructure/queue"
	"github.com/99minutos/admin-backend/internal/pkg/clock"
	"github.com/99minutos/admin-backend/internal/pkg/config"
	"github.com/99minutos/admin-backend/internal/plugin"
	"github.com/99minutos/admin-backend/pkg/logger"
)

// apiName is the path segment of the endpoint API below the prefix.
const apiName = "api"

// NewRouter builds and returns the Echo instance with all routes registered.
// Background workers are bound to ctx.
func NewRouter(ctx context.Context, cfg *config.Config, db *mongo.Database, rdb *redis.Client, log zerolog.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("admin"))

	// --- Dependencies ---
	clk := clock.NewMonotonic(nil)

	resources, err := service.LoadResourceMap(cfg.Admin.PermissionsFile)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	authz := service.NewAuthorizator(resources)

	identities := mongostore.NewIdentityRepository(db)
	settings := mongostore.NewSettingsRepository(db)
	installation := mongostore.NewHealthChecker(settings, logger.Component("health"))

	audit := queue.NewAuditDispatcher(cfg.Security.AuditWorkers, mongostore.NewAuditRepository(db), logger.Component("audit"))
	audit.Start(ctx)

	otp := service.NewOtpService(clk)
	tokens := service.NewResetTokens(cfg.JWTSecret, cfg.Security.ResetTokenTTL, clk)
	authService := service.NewAuthService(identities, otp, tokens, logger.Component("auth"))
	enrollment := service.NewOtpEnrollment(otp, redisstore.NewEnrollmentCache(rdb), identities, cfg.Admin.OtpIssuer, logger.Component("otp"))

	heartbeat := service.NewIntegrityWorkflow(clk, cfg.Security.HeartbeatInterval, logger.Component("heartbeat"))
	heartbeat.Register("activity", func(ctx context.Context, identity *domain.Identity) error {
		return identities.TouchActivity(ctx, identity.ID, clk.Now())
	})

	plugins := plugin.NewRegistry(append(ReservedNames(), apiName)...)
	for _, p := range []plugin.Plugin{
		plugin.NewHomepage(),
		plugin.NewErrorPage(),
		plugin.NewCms(),
		plugin.NewUsers(identities),
	} {
		if err := plugins.Register(p); err != nil {
			return nil, err
		}
	}

	app := NewApplication(ApplicationDeps{
		Prefix:    cfg.Admin.Prefix,
		BaseURL:   cfg.Admin.BaseURL,
		NonceTTL:  cfg.Security.NonceTTL,
		Health:    installation,
		Settings:  settings,
		Heartbeat: heartbeat,
		Authz:     authz,
		Plugins:   plugins,
		Tokens:    authService,
		Renderer:  JSONRenderer{Minify: cfg.IsProduction()},
		Assets:    handler.NewAssetHandler(cfg.Admin.AssetsDir).Serve,
		Audit:     audit,
		Clock:     clk,
		Log:       logger.Component("dispatcher"),
	})

	container := endpoint.NewContainer()
	invoker := endpoint.NewInvoker(container, logger.Component("invoker"))
	endpoints.Install(container, invoker, map[string]endpoint.Endpoint{
		plugin.CmsName: endpoints.NewCms(authService, audit, app.AbsoluteURLFor, clk, logger.Component("cms")),
		"user":         endpoints.NewUser(authService, enrollment, identities, audit, app.AbsoluteURLFor, clk),
	})
	endpointHandler := handler.NewEndpointHandler(handler.EndpointHandlerConfig{
		Invoker:       invoker,
		Authz:         authz,
		Health:        installation,
		Clock:         clk,
		NonceTTL:      cfg.Security.NonceTTL,
		PublicPackage: plugin.CmsName,
		URLFor:        app.URLFor,
		Log:           logger.Component("endpoint"),
	})

	// --- Health probes and metrics (no session) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(settings, rdb, installation)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Administration ---
	admin := e.Group("/"+strings.Trim(cfg.Admin.Prefix, "/"), middleware.Session(middleware.SessionConfig{
		Store:      redisstore.NewSessionStore(rdb, cfg.Security.SessionTTL),
		Identities: identities,
		Audit:      audit,
		Clock:      clk,
		TTL:        cfg.Security.SessionTTL,
		Secure:     strings.HasPrefix(cfg.Admin.BaseURL, "https://"),
		Log:        logger.Component("session"),
	}))

	methods := []string{http.MethodGet, http.MethodPost}
	limiter := middleware.LoginLimiter(middleware.LoginLimiterConfig{
		Rate:    cfg.Security.LoginRate,
		Burst:   cfg.Security.LoginBurst,
		Skipper: notLoginAttempt,
		Clock:   clk,
	})
	admin.Match(methods, "/"+apiName+"/:package", endpointHandler.Handle, limiter)
	admin.Match(methods, "/"+apiName+"/:package/:signal", endpointHandler.Handle, limiter)

	admin.GET("/"+AssetsName+"/*", app.HandleAsset)
	admin.Match(methods, "", app.Handle)
	admin.Match(methods, "/", app.Handle)
	admin.Match(methods, "/:plugin", app.Handle)
	admin.Match(methods, "/:plugin/:view", app.Handle)

	return e, nil
}

// notLoginAttempt lets every API call through the login limiter except the
// password and second factor checks of the login namespace.
func notLoginAttempt(c echo.Context) bool {
	if c.Request().Method != http.MethodPost || c.Param("package") != plugin.CmsName {
		return true
	}
	switch c.Param("signal") {
	case "sign-in", "check-otp":
		return false
	}
	return true
}
