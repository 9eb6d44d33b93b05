package service

import (
	"context"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
)

// DatabaseSpec describes the database project to create.
type DatabaseSpec struct {
	Name string
	Tier Tier
}

// DatabaseKeys are the credentials issued for a database project.
type DatabaseKeys struct {
	Endpoint   string
	AnonKey    string
	ServiceKey string
}

// Migration is one ordered schema change.
type Migration struct {
	ID       string
	SQL      string
	Checksum string
}

// AuthUserSpec describes the admin identity created inside the tenant database's auth service.
type AuthUserSpec struct {
	Endpoint   string
	ServiceKey string
	Email      string
	Password   string
}

// DatabaseProvider manages database projects on the hosting provider.
// Create calls are idempotent by name: a duplicate reports provider.AlreadyExists with the
// existing project's id.
type DatabaseProvider interface {
	CreateProject(ctx context.Context, spec DatabaseSpec) (provider.CreateResult, error)
	FindProject(ctx context.Context, name string) (externalID string, found bool, err error)
	ProjectStatus(ctx context.Context, externalID string) (provider.Health, error)
	APIKeys(ctx context.Context, externalID string) (DatabaseKeys, error)
	RunMigration(ctx context.Context, externalID string, m Migration) error
	CreateAuthUser(ctx context.Context, spec AuthUserSpec) (provider.CreateResult, error)
}

// DeploymentSpec describes the deployment project to create.
type DeploymentSpec struct {
	Name string
	Tier Tier
}

// EnvVar is one deployment environment variable.
type EnvVar struct {
	Key       string
	Value     string
	Sensitive bool
}

// DeploymentState is the provider-side state of a deployment.
type DeploymentState struct {
	Health provider.Health
	URL    string
}

// DeploymentProvider manages deployment projects on the hosting provider.
type DeploymentProvider interface {
	CreateProject(ctx context.Context, spec DeploymentSpec) (provider.CreateResult, error)
	FindProject(ctx context.Context, name string) (externalID string, found bool, err error)
	// SetEnv upserts vars on the project.
	SetEnv(ctx context.Context, externalID string, vars []EnvVar) error
	TriggerDeploy(ctx context.Context, externalID string) (deploymentID string, err error)
	DeploymentStatus(ctx context.Context, deploymentID string) (DeploymentState, error)
}

// MigrationSource returns the ordered migrations of a tier's bundle.
type MigrationSource interface {
	Migrations(ctx context.Context, tier Tier) (bundle string, migrations []Migration, err error)
}

// Delivery reports the outcome of a credential delivery.
type Delivery struct {
	Delivered bool
	// TemporaryCredential is set when the operator has to hand the credential over manually.
	TemporaryCredential string
}

// CredentialSender delivers admin credentials to the workspace admin.
type CredentialSender interface {
	Deliver(ctx context.Context, email, temporaryPassword string) (Delivery, error)
	Resend(ctx context.Context, email string) (Delivery, error)
}

// ProvisioningDeps groups the collaborators the pipeline drives.
type ProvisioningDeps struct {
	Database    DatabaseProvider
	Deployment  DeploymentProvider
	Migrations  MigrationSource
	Credentials CredentialSender
}
