package wiring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	sqlassets "github.com/zenGate-Global/palmyra-workspaces/database"
	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/provisioning"
	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/repo"
	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/gcp"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/lock"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/metrics"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/retry"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/secrets"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/storage"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/tracing"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	BundlesEmbedded = "embedded"
	BundlesGCS      = "gcs"

	SenderFirebase = "firebase"
	SenderLog      = "log"
)

// Stack holds every long-lived collaborator of the provisioning domain.
type Stack struct {
	Config     Config
	Repo       service.Repository
	Service    *service.Service
	Runner     *service.Runner
	Dispatcher *service.Dispatcher
	Bundles    *provisioning.MigrationLoader
	Metrics    *metrics.Metrics
	Pool       *pgxpool.Pool
	Redis      *redis.Client

	logger   *zap.Logger
	authOnce sync.Once
	auth     *firebaseauth.Client
	authErr  error
	closers  []func()
}

// Build connects the store, the lease backend and the provider adapters.
func Build(ctx context.Context, cfg Config, logger *zap.Logger) (*Stack, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stack{Config: cfg, Metrics: metrics.New(), logger: logger}

	if err := s.buildStore(ctx); err != nil {
		s.Close()
		return nil, err
	}

	locker, err := s.buildLocker(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	deps, err := s.buildDeps(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	exec := cfg.Execution
	s.Runner = service.NewRunner(s.Repo, deps, service.RunnerConfig{
		EnvKey:          cfg.EnvKey,
		Policy:          exec.policy(),
		DatabasePoll:    exec.pollPolicy(exec.PollCeiling),
		DeploymentPoll:  exec.pollPolicy(exec.DeployPollCeiling),
		DeliveryPolicy:  exec.deliveryPolicy(),
		Observers:       []retry.Observer{s.Metrics.ObserveAttempt},
		ExecutorOptions: []retry.Option{retry.WithTracer(otel.Tracer("workspaces/provisioning"))},
		Logger:          logger,
	})
	s.Dispatcher = service.NewDispatcher(s.Runner, locker, service.DispatcherConfig{
		LeaseTTL:     exec.LeaseTTL,
		AcquireRetry: exec.LeaseRetry,
		Metrics:      s.Metrics,
		Logger:       logger,
	})
	s.Service = service.New(s.Repo, s.Dispatcher, deps.Credentials, service.Options{Logger: logger})
	return s, nil
}

func (s *Stack) buildStore(ctx context.Context) error {
	cfg := s.Config
	switch cfg.StoreBackend {
	case StoreMemory:
		s.logger.Warn("using in-memory provisioning store; state is lost on exit")
		s.Repo = repo.NewMemoryRepository()
		return nil
	case StorePostgres, "":
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for the postgres store")
	}
	box, err := secrets.NewBox(cfg.SecretsKey)
	if err != nil {
		return fmt.Errorf("secrets key: %w", err)
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:       cfg.DatabaseURL,
		ApplicationName:  "workspaces",
		MaxConns:         cfg.Store.MaxConns,
		StatementTimeout: cfg.Store.StatementTimeout,
		ConnectAttempts:  cfg.Store.ConnectAttempts,
		ConnectBackoff:   cfg.Store.ConnectBackoff,
	})
	if err != nil {
		return fmt.Errorf("init pgx pool: %w", err)
	}
	s.Pool = pool
	s.closers = append(s.closers, func() { persistence.ClosePool(pool) })

	if cfg.BootstrapOnStart {
		if err := persistence.BootstrapAdminSchema(ctx, pool, cfg.AdminSchema); err != nil {
			return fmt.Errorf("bootstrap store: %w", err)
		}
	}

	adminDB := persistence.NewAdminDB(persistence.AdminDBConfig{Pool: pool, AdminSchema: cfg.AdminSchema})
	s.Repo = repo.NewPostgresRepository(adminDB, box)
	return nil
}

func (s *Stack) buildLocker(ctx context.Context) (lock.Locker, error) {
	if s.Config.RedisURL == "" {
		return lock.NewMemoryLocker(), nil
	}
	opts, err := redis.ParseURL(s.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	s.closers = append(s.closers, func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	s.Redis = client
	return lock.NewRedisLocker(client, "workspaces:"+s.Config.EnvKey+":"), nil
}

func (s *Stack) buildDeps(ctx context.Context) (service.ProvisioningDeps, error) {
	cfg := s.Config
	httpClient := &http.Client{Transport: tracing.Transport(http.DefaultTransport), Timeout: cfg.Execution.AttemptTimeout + 5*time.Second}

	db, err := provisioning.NewDatabaseClient(provisioning.DatabaseConfig{
		BaseURL:        cfg.Database.BaseURL,
		Token:          cfg.Database.Token,
		OrganizationID: cfg.Database.OrganizationID,
		Region:         cfg.Database.Region,
		Plans: map[service.Tier]string{
			service.TierStandard: cfg.Database.PlanStandard,
			service.TierPremium:  cfg.Database.PlanPremium,
		},
		APIDomain:         cfg.Database.APIDomain,
		HTTPClient:        httpClient,
		RequestsPerSecond: cfg.Database.RequestsPerSecond,
		Metrics:           s.Metrics,
	})
	if err != nil {
		return service.ProvisioningDeps{}, fmt.Errorf("database provider: %w", err)
	}

	deploy, err := provisioning.NewDeploymentClient(provisioning.DeploymentConfig{
		BaseURL:       cfg.Deployment.BaseURL,
		Token:         cfg.Deployment.Token,
		TeamID:        cfg.Deployment.TeamID,
		Framework:     cfg.Deployment.Framework,
		GitRepository: cfg.Deployment.GitRepository,
		GitRef:        cfg.Deployment.GitRef,
		Regions: map[service.Tier]string{
			service.TierStandard: cfg.Deployment.RegionStandard,
			service.TierPremium:  cfg.Deployment.RegionPremium,
		},
		HTTPClient:        httpClient,
		RequestsPerSecond: cfg.Deployment.RequestsPerSecond,
		Metrics:           s.Metrics,
	})
	if err != nil {
		return service.ProvisioningDeps{}, fmt.Errorf("deployment provider: %w", err)
	}

	reader, err := s.bundleReader(ctx)
	if err != nil {
		return service.ProvisioningDeps{}, err
	}
	loader, err := provisioning.NewMigrationLoader(reader)
	if err != nil {
		return service.ProvisioningDeps{}, fmt.Errorf("migration loader: %w", err)
	}
	s.Bundles = loader

	sender, err := s.credentialSender(ctx, httpClient)
	if err != nil {
		return service.ProvisioningDeps{}, err
	}

	return service.ProvisioningDeps{
		Database:    db,
		Deployment:  deploy,
		Migrations:  loader,
		Credentials: sender,
	}, nil
}

func (s *Stack) bundleReader(ctx context.Context) (storage.Reader, error) {
	cfg := s.Config.Bundles
	switch cfg.Source {
	case BundlesEmbedded, "":
		return storage.NewFSReader(sqlassets.Bundles, "bundles"), nil
	case BundlesGCS:
		if cfg.Bucket == "" {
			return nil, errors.New("BUNDLE_BUCKET is required for gcs bundles")
		}
		client, err := gcp.NewStorageClient(ctx, s.gcpConfig())
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		return storage.NewGCSReader(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown bundle source %q", cfg.Source)
	}
}

func (s *Stack) credentialSender(ctx context.Context, httpClient *http.Client) (service.CredentialSender, error) {
	cfg := s.Config.Credentials
	switch cfg.Sender {
	case SenderLog, "":
		return provisioning.NewLogCredentialSender(s.logger), nil
	case SenderFirebase:
	default:
		return nil, fmt.Errorf("unknown credentials sender %q", cfg.Sender)
	}

	client, err := s.FirebaseAuth(ctx)
	if err != nil {
		return nil, err
	}
	var notifier provisioning.Notifier
	if cfg.WebhookURL != "" {
		wh, err := provisioning.NewWebhookNotifier(provisioning.WebhookConfig{
			URL:        cfg.WebhookURL,
			Token:      cfg.WebhookToken,
			HTTPClient: httpClient,
			Metrics:    s.Metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("credentials webhook: %w", err)
		}
		notifier = wh
	}
	return provisioning.NewFirebaseCredentialSender(client, notifier, s.logger), nil
}

func (s *Stack) gcpConfig() gcp.Config {
	return gcp.Config{ProjectID: s.Config.GCP.ProjectID, CredentialsFile: s.Config.GCP.CredentialsFile}
}

// FirebaseAuth returns the shared Firebase auth client, initializing it on first use.
func (s *Stack) FirebaseAuth(ctx context.Context) (*firebaseauth.Client, error) {
	s.authOnce.Do(func() {
		s.auth, s.authErr = gcp.InitFirebaseAuth(ctx, s.gcpConfig())
	})
	return s.auth, s.authErr
}

// Ready checks the store, the lease backend and the bundle source.
func (s *Stack) Ready(ctx context.Context) error {
	if s.Pool != nil {
		if err := s.Pool.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if s.Bundles != nil {
		if err := s.Bundles.Check(ctx); err != nil {
			return fmt.Errorf("migration bundles: %w", err)
		}
	}
	return nil
}

// Close releases connections in reverse order of acquisition.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
