package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"maps"
	"math/big"
	"slices"

	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
)

// Keys under which database credentials are stored on the database resource.
const (
	SecretAnonKey    = "anon_key"
	SecretServiceKey = "service_key"
)

// Deployment environment variable names.
const (
	EnvDatabaseURL        = "TENANT_DATABASE_URL"
	EnvDatabaseAnonKey    = "TENANT_DATABASE_ANON_KEY"
	EnvDatabaseServiceKey = "TENANT_DATABASE_SERVICE_KEY"
	EnvTenantSlug         = "TENANT_SLUG"
	EnvTenantTier         = "TENANT_TIER"
	EnvAdminEmail         = "TENANT_ADMIN_EMAIL"
)

func (sc *stepContext) log() *zap.Logger {
	return sc.runner.logger.With(zap.String("request_id", sc.req.ID.String()))
}

func (sc *stepContext) createDatabase(ctx context.Context) error {
	if db, ok := sc.req.Resource(ResourceDatabase); ok && db.ExternalID != "" {
		return nil
	}
	name := sc.runner.resourceName(sc.req)
	dbp := sc.runner.deps.Database

	externalID, found, err := dbp.FindProject(ctx, name)
	if err != nil {
		return err
	}
	outcome := provider.AlreadyExists
	if !found {
		res, err := dbp.CreateProject(ctx, DatabaseSpec{Name: name, Tier: sc.req.Tier})
		if err != nil {
			return err
		}
		externalID, outcome = res.ExternalID, res.Outcome
	}
	if externalID == "" {
		return provider.NewPermanent("database", "create project", errors.New("provider returned an empty project id"))
	}

	sc.adopt(ResourceDatabase, name, externalID)
	sc.log().Info("database project recorded", zap.String("name", name), zap.String("external_id", externalID), zap.String("outcome", string(outcome)))
	return nil
}

func (sc *stepContext) databaseHealthy(ctx context.Context) (bool, error) {
	db, ok := sc.req.Resource(ResourceDatabase)
	if !ok || db.ExternalID == "" {
		return false, provider.NewPermanent("database", "project status", errors.New("database project not recorded"))
	}
	health, err := sc.runner.deps.Database.ProjectStatus(ctx, db.ExternalID)
	if err != nil {
		return false, err
	}
	switch health {
	case provider.HealthReady:
		db.Status = ResourceReady
		db.UpdatedAt = sc.runner.now().UTC()
		sc.req.SetResource(db)
		return true, nil
	case provider.HealthError:
		db.Status = ResourceFailed
		db.UpdatedAt = sc.runner.now().UTC()
		sc.req.SetResource(db)
		return false, provider.NewPermanent("database", "project status", errors.New("provider reported the project as failed"))
	}
	return false, nil
}

func (sc *stepContext) fetchDatabaseCredentials(ctx context.Context) error {
	db, ok := sc.req.Resource(ResourceDatabase)
	if !ok || db.ExternalID == "" {
		return provider.NewPermanent("database", "api keys", errors.New("database project not recorded"))
	}
	keys, err := sc.runner.deps.Database.APIKeys(ctx, db.ExternalID)
	if err != nil {
		return err
	}
	if keys.ServiceKey == "" || keys.Endpoint == "" {
		return provider.NewPermanent("database", "api keys", errors.New("provider returned incomplete credentials"))
	}

	issued := Secrets{SecretAnonKey: Secret(keys.AnonKey), SecretServiceKey: Secret(keys.ServiceKey)}
	if db.SecretsVersion == 0 || !maps.Equal(db.Secrets, issued) {
		db = db.Supersede(sc.req.ID, issued)
	}
	db.Endpoint = keys.Endpoint
	db.UpdatedAt = sc.runner.now().UTC()
	sc.req.SetResource(db)
	sc.req.Metadata.DatabaseKeysRef = db.SecretRef
	return nil
}

func (sc *stepContext) applyMigrations(ctx context.Context) error {
	db, ok := sc.req.Resource(ResourceDatabase)
	if !ok || db.ExternalID == "" {
		return provider.NewPermanent("database", "run migration", errors.New("database project not recorded"))
	}
	bundle, migrations, err := sc.runner.deps.Migrations.Migrations(ctx, sc.req.Tier)
	if err != nil {
		return err
	}
	sc.req.Metadata.MigrationBundle = bundle

	for _, m := range migrations {
		if slices.Contains(sc.req.Metadata.AppliedMigrations, m.ID) {
			continue
		}
		if err := sc.runner.deps.Database.RunMigration(ctx, db.ExternalID, m); err != nil {
			return err
		}
		sc.req.Metadata.AppliedMigrations = append(sc.req.Metadata.AppliedMigrations, m.ID)
		if err := sc.checkpoint(ctx); err != nil {
			return err
		}
		sc.log().Info("migration applied", zap.String("migration", m.ID), zap.String("bundle", bundle))
	}
	sc.req.Metadata.MigrationsComplete = true
	return nil
}

func (sc *stepContext) createDeployment(ctx context.Context) error {
	if d, ok := sc.req.Resource(ResourceDeployment); ok && d.ExternalID != "" {
		return nil
	}
	name := sc.runner.resourceName(sc.req)
	dp := sc.runner.deps.Deployment

	externalID, found, err := dp.FindProject(ctx, name)
	if err != nil {
		return err
	}
	outcome := provider.AlreadyExists
	if !found {
		res, err := dp.CreateProject(ctx, DeploymentSpec{Name: name, Tier: sc.req.Tier})
		if err != nil {
			return err
		}
		externalID, outcome = res.ExternalID, res.Outcome
	}
	if externalID == "" {
		return provider.NewPermanent("deployment", "create project", errors.New("provider returned an empty project id"))
	}

	sc.adopt(ResourceDeployment, name, externalID)
	sc.log().Info("deployment project recorded", zap.String("name", name), zap.String("external_id", externalID), zap.String("outcome", string(outcome)))
	return nil
}

func (sc *stepContext) configureDeploymentEnv(ctx context.Context) error {
	db, ok := sc.req.Resource(ResourceDatabase)
	if !ok || db.SecretsVersion == 0 {
		return provider.NewPermanent("deployment", "set env", errors.New("database credentials not recorded"))
	}
	d, ok := sc.req.Resource(ResourceDeployment)
	if !ok || d.ExternalID == "" {
		return provider.NewPermanent("deployment", "set env", errors.New("deployment project not recorded"))
	}
	if db.Secrets[SecretServiceKey] == "" {
		return provider.NewPermanent("deployment", "set env", errors.New("database credentials unavailable"))
	}

	vars := []EnvVar{
		{Key: EnvDatabaseURL, Value: db.Endpoint},
		{Key: EnvDatabaseAnonKey, Value: db.Secrets[SecretAnonKey].Reveal()},
		{Key: EnvDatabaseServiceKey, Value: db.Secrets[SecretServiceKey].Reveal(), Sensitive: true},
		{Key: EnvTenantSlug, Value: sc.req.TenantSlug},
		{Key: EnvTenantTier, Value: string(sc.req.Tier)},
		{Key: EnvAdminEmail, Value: sc.req.AdminEmail},
	}
	if err := sc.runner.deps.Deployment.SetEnv(ctx, d.ExternalID, vars); err != nil {
		return err
	}
	sc.req.Metadata.EnvSecretsVersion = db.SecretsVersion
	return nil
}

func (sc *stepContext) triggerDeployment(ctx context.Context) error {
	d, ok := sc.req.Resource(ResourceDeployment)
	if !ok || d.ExternalID == "" {
		return provider.NewPermanent("deployment", "trigger deploy", errors.New("deployment project not recorded"))
	}
	deploymentID, err := sc.runner.deps.Deployment.TriggerDeploy(ctx, d.ExternalID)
	if err != nil {
		return err
	}
	if deploymentID == "" {
		return provider.NewPermanent("deployment", "trigger deploy", errors.New("provider returned an empty deployment id"))
	}

	d.Status = ResourceCreating
	d.UpdatedAt = sc.runner.now().UTC()
	sc.req.SetResource(d)
	sc.req.Metadata.DeploymentID = deploymentID
	sc.req.Metadata.DeploymentIDs = append(sc.req.Metadata.DeploymentIDs, deploymentID)
	return nil
}

func (sc *stepContext) deploymentLive(ctx context.Context) (bool, error) {
	d, ok := sc.req.Resource(ResourceDeployment)
	if !ok || sc.req.Metadata.DeploymentID == "" {
		return false, provider.NewPermanent("deployment", "deployment status", errors.New("deployment not triggered"))
	}
	state, err := sc.runner.deps.Deployment.DeploymentStatus(ctx, sc.req.Metadata.DeploymentID)
	if err != nil {
		return false, err
	}
	switch state.Health {
	case provider.HealthReady:
		if state.URL == "" {
			sc.log().Info("deployment ready without a public url, waiting for the alias")
			return false, nil
		}
		d.Status = ResourceReady
		d.Endpoint = state.URL
		d.UpdatedAt = sc.runner.now().UTC()
		sc.req.SetResource(d)
		return true, nil
	case provider.HealthError:
		d.Status = ResourceFailed
		d.UpdatedAt = sc.runner.now().UTC()
		sc.req.SetResource(d)
		return false, provider.NewPermanent("deployment", "deployment status", errors.New("deployment build failed"))
	}
	return false, nil
}

func (sc *stepContext) createAdminIdentity(ctx context.Context) error {
	db, ok := sc.req.Resource(ResourceDatabase)
	if !ok || db.Secrets[SecretServiceKey] == "" {
		return provider.NewPermanent("database", "create auth user", errors.New("database credentials unavailable"))
	}
	password, err := sc.runner.cfg.Password()
	if err != nil {
		return fmt.Errorf("generate temporary password: %w", err)
	}

	res, err := sc.runner.deps.Database.CreateAuthUser(ctx, AuthUserSpec{
		Endpoint:   db.Endpoint,
		ServiceKey: db.Secrets[SecretServiceKey].Reveal(),
		Email:      sc.req.AdminEmail,
		Password:   password,
	})
	if err != nil {
		return err
	}

	sc.req.Metadata.AdminIdentityID = res.ExternalID
	sc.req.Metadata.AdminIdentityCreated = true
	sc.password = ""
	if res.Outcome == provider.Created {
		sc.password = password
	}
	return nil
}

func (sc *stepContext) finalize(context.Context) error {
	for _, kind := range []ResourceKind{ResourceDatabase, ResourceDeployment} {
		res, ok := sc.req.Resource(kind)
		if !ok || res.Status != ResourceReady {
			return provider.NewPermanent("pipeline", "finalize", fmt.Errorf("%s resource is not ready", kind))
		}
	}
	d, _ := sc.req.Resource(ResourceDeployment)
	if d.Endpoint == "" {
		return provider.NewPermanent("pipeline", "finalize", errors.New("deployment has no public url"))
	}
	sc.req.Status = StatusApproved
	sc.req.Metadata.InstanceURL = d.Endpoint
	return nil
}

// adopt records a created or found project, keeping an existing record's history.
func (sc *stepContext) adopt(kind ResourceKind, name, externalID string) {
	now := sc.runner.now().UTC()
	res, ok := sc.req.Resource(kind)
	if !ok {
		res = ProvisionedResource{Kind: kind, CreatedAt: now}
	}
	res.Name = name
	res.ExternalID = externalID
	res.Status = ResourceCreating
	res.UpdatedAt = now
	sc.req.SetResource(res)
}

const passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789!@#%+="

// GeneratePassword returns a random 20 character temporary password.
func GeneratePassword() (string, error) {
	out := make([]byte, 20)
	limit := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
