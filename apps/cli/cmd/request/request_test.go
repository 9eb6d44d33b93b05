package request

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
)

// Each command builds its own stack, so the in-memory store does not outlive one invocation.
func setMemoryEnv(t *testing.T) {
	t.Helper()

	t.Setenv("ENV_KEY", "test")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DB_PROVIDER_TOKEN", "db-token")
	t.Setenv("DB_PROVIDER_ORG_ID", "org-1")
	t.Setenv("DEPLOY_PROVIDER_TOKEN", "deploy-token")
	t.Setenv("DEPLOY_PROVIDER_GIT_REPO", "acme/workspace-app")
	t.Setenv("CREDENTIALS_SENDER", "log")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := Command()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSubmitPrintsSnapshot(t *testing.T) {
	setMemoryEnv(t)

	out, err := run(t, "submit", "--name", "Acme Corp", "--admin-email", "ops@acme.test", "--tier", "premium")
	require.NoError(t, err)

	var snap service.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	require.Equal(t, "acme-corp", snap.TenantSlug)
	require.Equal(t, service.TierPremium, snap.Tier)
	require.Equal(t, service.StatusPending, snap.Status)
}

func TestSubmitValidation(t *testing.T) {
	setMemoryEnv(t)

	_, err := run(t, "submit", "--name", "Acme", "--admin-email", "not-an-email")
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestListEmptyStore(t *testing.T) {
	setMemoryEnv(t)

	out, err := run(t, "list", "--status", "pending")
	require.NoError(t, err)

	var page service.SnapshotPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Empty(t, page.Items)

	_, err = run(t, "list", "--status", "bogus")
	require.Error(t, err)
}

func TestStatusUnknownRequest(t *testing.T) {
	setMemoryEnv(t)

	_, err := run(t, "status", uuid.NewString())
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = run(t, "status", "not-a-uuid")
	require.Error(t, err)
}

func TestApproveUnknownRequest(t *testing.T) {
	setMemoryEnv(t)

	_, err := run(t, "approve", uuid.NewString(), "--wait=false")
	require.ErrorIs(t, err, service.ErrNotFound)
}
