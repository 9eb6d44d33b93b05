package service

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSecretNeverPrints(t *testing.T) {
	t.Parallel()

	s := Secret("super-secret")
	require.Equal(t, "[redacted]", s.String())
	require.Equal(t, "[redacted]", fmt.Sprintf("%v %s %#v", s, s, s)[:10])
	require.NotContains(t, fmt.Sprintf("%v", Secrets{"k": s}), "super-secret")

	raw, err := json.Marshal(ProvisionedResource{Secrets: Secrets{"k": s}})
	require.NoError(t, err)
	require.NotContains(t, string(raw), "super-secret")
	require.Equal(t, "super-secret", s.Reveal())
}

func TestSupersedeKeepsPreviousSecrets(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	orig := ProvisionedResource{Kind: ResourceDatabase}.Supersede(id, Secrets{"service_key": "v1"})
	next := orig.Supersede(id, Secrets{"service_key": "v2"})

	require.Equal(t, 1, orig.SecretsVersion)
	require.Equal(t, "v1", orig.Secrets["service_key"].Reveal())
	require.Equal(t, 2, next.SecretsVersion)
	require.Equal(t, SecretRef(id, ResourceDatabase, 2), next.SecretRef)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	req := ProvisioningRequest{ID: uuid.New()}
	req.SetResource(ProvisionedResource{Kind: ResourceDatabase, Secrets: Secrets{"k": "v"}})
	req.Metadata.AppliedMigrations = []string{"a"}
	req.Metadata.Steps = []StepRecord{{Step: StepCreateDatabase}}

	cp := req.Clone()
	cp.Metadata.AppliedMigrations[0] = "b"
	cp.Metadata.Steps[0].Attempts = 7
	cp.Resources[ResourceDatabase].Secrets["k"] = "changed"

	require.Equal(t, "a", req.Metadata.AppliedMigrations[0])
	require.Zero(t, req.Metadata.Steps[0].Attempts)
	require.Equal(t, Secret("v"), req.Resources[ResourceDatabase].Secrets["k"])
	require.Empty(t, req.WithoutSecrets().Resources[ResourceDatabase].Secrets)
}

func TestResumePoint(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	req := &ProvisioningRequest{ID: id, Status: StatusFailed}
	require.Equal(t, 0, ResumePoint(req))

	db := ProvisionedResource{Kind: ResourceDatabase, ExternalID: "db_1", Status: ResourceCreating}
	req.SetResource(db)
	require.Equal(t, StepIndex(StepAwaitDatabaseHealthy), ResumePoint(req))

	db.Status = ResourceReady
	db = db.Supersede(id, Secrets{SecretServiceKey: "k"})
	req.SetResource(db)
	require.Equal(t, StepIndex(StepFetchDatabaseCredentials), ResumePoint(req))

	req.Metadata.DatabaseKeysRef = db.SecretRef
	require.Equal(t, StepIndex(StepApplySchemaMigrations), ResumePoint(req))

	req.Metadata.MigrationsComplete = true
	req.SetResource(ProvisionedResource{Kind: ResourceDeployment, ExternalID: "prj_1", Status: ResourceCreating})
	req.Metadata.EnvSecretsVersion = db.SecretsVersion
	require.Equal(t, StepIndex(StepTriggerDeployment), ResumePoint(req))

	// a rotated credential must be pushed to the deployment again
	db = db.Supersede(id, Secrets{SecretServiceKey: "k2"})
	req.SetResource(db)
	req.Metadata.DatabaseKeysRef = db.SecretRef
	require.Equal(t, StepIndex(StepConfigureDeploymentEnv), ResumePoint(req))
}

func TestStepTable(t *testing.T) {
	t.Parallel()

	require.Equal(t, 10, StepCount())
	require.Equal(t, StepCreateDatabase, StepName(0))
	require.Equal(t, StepFinalize, StepName(9))
	require.Equal(t, "", StepName(10))
	require.Equal(t, -1, StepIndex("teardown"))
	require.Equal(t, "Creating workspace admin", StepLabel(StepIndex(StepCreateAdminIdentity)))
}

func TestParseTier(t *testing.T) {
	t.Parallel()

	tier, err := ParseTier("premium")
	require.NoError(t, err)
	require.Equal(t, TierPremium, tier)

	_, err = ParseTier("gold")
	require.ErrorIs(t, err, ErrInvalidTier)
}
