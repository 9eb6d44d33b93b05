// Package wiring assembles the provisioning stack shared by the API server and the CLI.
package wiring

import (
	"time"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/retry"
)

// Config is parsed from the environment once in main with caarlos0/env.
type Config struct {
	EnvKey      string `env:"ENV_KEY,required"`
	AdminSchema string `env:"ADMIN_SCHEMA" envDefault:"workspace_admin"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	StoreBackend     string `env:"STORE_BACKEND" envDefault:"postgres"` // postgres | memory
	DatabaseURL      string `env:"DATABASE_URL"`
	SecretsKey       string `env:"SECRETS_KEY"` // base64 32-byte key sealing provider credentials
	BootstrapOnStart bool   `env:"BOOTSTRAP_ON_START" envDefault:"true"`
	RedisURL         string `env:"REDIS_URL"` // enables cross-replica leases

	Store StoreConfig `envPrefix:"STORE_"`

	GCP         GCPConfig         `envPrefix:"GCP_"`
	Database    DatabaseConfig    `envPrefix:"DB_PROVIDER_"`
	Deployment  DeploymentConfig  `envPrefix:"DEPLOY_PROVIDER_"`
	Bundles     BundleConfig      `envPrefix:"BUNDLE_"`
	Credentials CredentialsConfig `envPrefix:"CREDENTIALS_"`
	Execution   ExecutionConfig   `envPrefix:"STEP_"`
	Tracing     TracingConfig     `envPrefix:"OTEL_"`
}

// StoreConfig tunes the Postgres pool behind the provisioning store.
type StoreConfig struct {
	MaxConns         int32         `env:"MAX_CONNS" envDefault:"10"`
	StatementTimeout time.Duration `env:"STATEMENT_TIMEOUT" envDefault:"15s"`
	ConnectAttempts  int           `env:"CONNECT_ATTEMPTS" envDefault:"5"`
	ConnectBackoff   time.Duration `env:"CONNECT_BACKOFF" envDefault:"1s"`
}

type GCPConfig struct {
	ProjectID       string `env:"PROJECT_ID"`
	CredentialsFile string `env:"CREDENTIALS_FILE"`
}

type DatabaseConfig struct {
	BaseURL           string  `env:"URL" envDefault:"https://api.supabase.com"`
	Token             string  `env:"TOKEN"`
	OrganizationID    string  `env:"ORG_ID"`
	Region            string  `env:"REGION" envDefault:"eu-central-1"`
	PlanStandard      string  `env:"PLAN_STANDARD" envDefault:"free"`
	PlanPremium       string  `env:"PLAN_PREMIUM" envDefault:"pro"`
	APIDomain         string  `env:"API_DOMAIN" envDefault:"supabase.co"`
	RequestsPerSecond float64 `env:"RPS" envDefault:"2"`
}

type DeploymentConfig struct {
	BaseURL           string  `env:"URL" envDefault:"https://api.vercel.com"`
	Token             string  `env:"TOKEN"`
	TeamID            string  `env:"TEAM_ID"`
	Framework         string  `env:"FRAMEWORK" envDefault:"nextjs"`
	GitRepository     string  `env:"GIT_REPO"`
	GitRef            string  `env:"GIT_REF" envDefault:"main"`
	RegionStandard    string  `env:"REGION_STANDARD" envDefault:"iad1"`
	RegionPremium     string  `env:"REGION_PREMIUM" envDefault:"fra1"`
	RequestsPerSecond float64 `env:"RPS" envDefault:"5"`
}

type BundleConfig struct {
	Source string `env:"SOURCE" envDefault:"embedded"` // embedded | gcs
	Bucket string `env:"BUCKET"`
	Prefix string `env:"PREFIX"`
}

type CredentialsConfig struct {
	Sender       string `env:"SENDER" envDefault:"log"` // firebase | log
	WebhookURL   string `env:"WEBHOOK_URL"`
	WebhookToken string `env:"WEBHOOK_TOKEN"`
}

type ExecutionConfig struct {
	MaxAttempts        int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	UnknownMaxAttempts int           `env:"UNKNOWN_MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay          time.Duration `env:"BASE_DELAY" envDefault:"2s"`
	MaxDelay           time.Duration `env:"MAX_DELAY" envDefault:"60s"`
	AttemptTimeout     time.Duration `env:"ATTEMPT_TIMEOUT" envDefault:"30s"`
	PollInterval       time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	MaxPolls           int           `env:"MAX_POLLS" envDefault:"120"`
	PollCeiling        time.Duration `env:"POLL_CEILING" envDefault:"10m"`
	DeployPollCeiling  time.Duration `env:"DEPLOY_POLL_CEILING" envDefault:"15m"`
	LeaseTTL           time.Duration `env:"LEASE_TTL" envDefault:"1m"`
	LeaseRetry         time.Duration `env:"LEASE_RETRY" envDefault:"1s"`
}

type TracingConfig struct {
	Endpoint    string  `env:"EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `env:"EXPORTER_OTLP_INSECURE"`
	SampleRatio float64 `env:"SAMPLE_RATIO" envDefault:"1"`
}

func (c ExecutionConfig) policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.MaxAttempts
	p.UnknownMaxAttempts = c.UnknownMaxAttempts
	p.BaseDelay = c.BaseDelay
	p.MaxDelay = c.MaxDelay
	p.AttemptTimeout = c.AttemptTimeout
	return p
}

func (c ExecutionConfig) pollPolicy(ceiling time.Duration) retry.PollPolicy {
	p := retry.DefaultPollPolicy()
	p.Interval = c.PollInterval
	p.MaxPolls = c.MaxPolls
	p.Ceiling = ceiling
	return p
}

func (c ExecutionConfig) deliveryPolicy() retry.Policy {
	p := c.policy()
	p.MaxAttempts = 3
	return p
}
