package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-workspaces/apps/internal/wiring"
	"github.com/zenGate-Global/palmyra-workspaces/contracts"
	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/handler"
	platformlogging "github.com/zenGate-Global/palmyra-workspaces/platform/go/logging"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/tracing"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	AuthProvider    string        `env:"AUTH_PROVIDER" envDefault:"firebase"` // firebase | dev
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	Environment     string        `env:"ENVIRONMENT" envDefault:"local"`

	Stack wiring.Config
}

func main() {
	ctx := context.Background()

	// A missing .env is fine; real deployments inject the environment directly.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.Stack.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "workspaces-api",
		Environment: cfg.Environment,
		Endpoint:    cfg.Stack.Tracing.Endpoint,
		Insecure:    cfg.Stack.Tracing.Insecure,
		SampleRatio: cfg.Stack.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	stack, err := wiring.Build(ctx, cfg.Stack, logger)
	if err != nil {
		logger.Fatal("build provisioning stack", zap.Error(err))
	}
	defer stack.Close()

	spec, err := contracts.GetSwagger()
	if err != nil {
		logger.Fatal("load provisioning contract", zap.Error(err))
	}

	router := newRouter(routerConfig{
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
		Auth:           buildAuthMiddleware(ctx, cfg.AuthProvider, stack, logger),
		Spec:           spec,
		Handler:        handler.New(stack.Service, logger),
		Ready:          stack.Ready,
		Metrics:        stack.Metrics.Handler(),
	}, logger)

	resumed, err := stack.Dispatcher.ResumeInFlight(ctx, stack.Repo)
	if err != nil {
		logger.Error("resume in-flight requests", zap.Error(err))
	} else if resumed > 0 {
		logger.Info("resumed in-flight requests", zap.Int("count", resumed))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server",
			zap.String("port", cfg.Port),
			zap.String("envKey", cfg.Stack.EnvKey),
			zap.String("store", cfg.Stack.StoreBackend),
			zap.String("auth", strings.ToLower(cfg.AuthProvider)),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	// Interrupted runs keep their status and step checkpoint; the next start resumes them.
	if err := stack.Dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("provisioning runs still active at shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("flush traces", zap.Error(err))
	}
}
