package main

import (
	"context"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/handler"
	provisioningapi "github.com/zenGate-Global/palmyra-workspaces/generated/go/provisioning"
	platformauth "github.com/zenGate-Global/palmyra-workspaces/platform/go/auth"
	platformlogging "github.com/zenGate-Global/palmyra-workspaces/platform/go/logging"
	platformmiddleware "github.com/zenGate-Global/palmyra-workspaces/platform/go/middleware"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/tracing"
)

type routerConfig struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
	Auth           func(http.Handler) http.Handler
	Spec           *openapi3.T
	Handler        *handler.Handler
	Ready          func(ctx context.Context) error
	Metrics        http.Handler
}

func newRouter(cfg routerConfig, logger *zap.Logger) http.Handler {
	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.CORS(platformmiddleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins}),
	)
	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Ready(r.Context()); err != nil {
			platformlogging.FromRequest(r, logger).Warn("not ready", zap.Error(err))
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if cfg.Metrics != nil {
		rootRouter.Handle("/metrics", cfg.Metrics)
	}

	registerDocsRoutes(rootRouter, logger)

	apiRouter := chi.NewRouter()
	apiRouter.Use(tracing.Middleware("workspaces-api"))
	apiRouter.Use(cfg.Auth)
	apiRouter.Use(platformmiddleware.RequestTrace)
	apiRouter.Group(func(r chi.Router) {
		r.Use(platformauth.RequireRole(platformauth.RoleAdmin))
		r.Use(newSpecValidator(logger, cfg.Spec))
		_ = provisioningapi.HandlerWithOptions(
			provisioningapi.NewStrictHandlerWithOptions(cfg.Handler, nil, cfg.Handler.StrictOptions()),
			provisioningapi.ChiServerOptions{BaseRouter: r, ErrorHandlerFunc: cfg.Handler.RequestError},
		)
	})

	rootRouter.Mount("/api/v1", apiRouter)
	return rootRouter
}

// newSpecValidator enforces the contract on every mounted operation.
func newSpecValidator(logger *zap.Logger, spec *openapi3.T) func(http.Handler) http.Handler {
	ensureBearerScheme(logger, spec)
	return oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: platformmiddleware.ValidateAuthenticationViaSwagger,
		},
	})
}

func ensureBearerScheme(logger *zap.Logger, spec *openapi3.T) {
	if spec.Components.SecuritySchemes == nil {
		spec.Components.SecuritySchemes = openapi3.SecuritySchemes{}
	}
	if _, ok := spec.Components.SecuritySchemes["bearerAuth"]; ok {
		return
	}
	spec.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{Type: "http", Scheme: "bearer"},
	}
	logger.Warn("injecting default bearerAuth security scheme")
}
