// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/studyshare/internal/app/features/errors"
	healthfeature "github.com/dalemusser/studyshare/internal/app/features/health"
	loginfeature "github.com/dalemusser/studyshare/internal/app/features/login"
	profilefeature "github.com/dalemusser/studyshare/internal/app/features/profile"
	resourcesfeature "github.com/dalemusser/studyshare/internal/app/features/resources"
	auditstore "github.com/dalemusser/studyshare/internal/app/store/audit"
	userstore "github.com/dalemusser/studyshare/internal/app/store/users"
	"github.com/dalemusser/studyshare/internal/app/system/auditlog"
	"github.com/dalemusser/studyshare/internal/app/system/auth"
	"github.com/dalemusser/studyshare/internal/app/system/mailer"
	"github.com/dalemusser/studyshare/internal/app/system/metrics"
	"github.com/dalemusser/studyshare/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// loginEmailWindow is the period over which login_email_limit applies.
const loginEmailWindow = 15 * time.Minute

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// StudyShare builds the bearer token manager, the upload backend, the mailer
// and the audit logger, then mounts the JSON API under /api alongside the
// /health and /metrics endpoints.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	tokens, err := auth.NewTokenService(appCfg.JWTSecret, appCfg.JWTTTL, appCfg.JWTIssuer)
	if err != nil {
		logger.Error("token service init failed", zap.Error(err))
		return nil, err
	}
	// The fetcher reloads the user on each request so role changes and
	// deleted accounts take effect immediately.
	authMgr := auth.NewManager(tokens, userstore.NewFetcher(db), logger)

	store, err := buildStorage(context.Background(), appCfg, logger)
	if err != nil {
		logger.Error("storage init failed", zap.Error(err))
		return nil, err
	}

	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Password: appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)

	audit := auditlog.New(auditstore.New(db), logger, auditlog.Config{
		Auth:     appCfg.AuditLogAuth,
		Resource: appCfg.AuditLogResource,
	})

	m := metrics.New()
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appCfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(m.Middleware)

	// Loads the bearer token's user into context when present; routes that
	// need a user wrap themselves in auth.RequireSignedIn.
	r.Use(authMgr.LoadBearerUser)

	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, appCfg.StorageType, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", m.Handler())

	// Uploaded files, when stored on local disk
	if appCfg.StorageType == "local" {
		prefix := appCfg.StorageLocalURL
		r.Handle(prefix+"/*", fileserver.Handler(prefix, appCfg.StorageLocalPath))
	}

	authLimiter := ratelimit.New(appCfg.AuthRateLimit, time.Minute)
	loginLimiter := ratelimit.NewLoginLimiter(appCfg.LoginIPLimit, time.Minute, appCfg.LoginEmailLimit, loginEmailWindow)

	r.Route("/api", func(api chi.Router) {
		loginHandler := loginfeature.NewHandler(db, tokens, mail, appCfg.ResetCodeExpiry, loginLimiter, audit, errLog, appCfg.MailFromName, logger)
		api.Mount("/auth", loginfeature.Routes(loginHandler, authLimiter.Middleware))

		profileHandler := profilefeature.NewHandler(db, audit, errLog, logger)
		api.Mount("/users", profilefeature.Routes(profileHandler))

		resourcesHandler := resourcesfeature.NewHandler(db, store, appCfg.MaxUploadBytes, m, audit, errLog, logger)
		api.Mount("/resources", resourcesfeature.Routes(resourcesHandler))
	})

	return r, nil
}
