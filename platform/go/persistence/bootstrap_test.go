package persistence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	sqlassets "github.com/zenGate-Global/palmyra-workspaces/database"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id int);\n\n  ;CREATE INDEX b ON a (id);  ")
	require.Equal(t, []string{"CREATE TABLE a (id int)", "CREATE INDEX b ON a (id)"}, stmts)
}

func TestProvisioningDDLHasActiveSlugGuard(t *testing.T) {
	stmts := splitStatements(sqlassets.ProvisioningSQL)
	require.NotEmpty(t, stmts)

	var found bool
	for _, s := range stmts {
		if containsAll(s, "UNIQUE INDEX", "tenant_slug", "status = 'provisioning'") {
			found = true
		}
	}
	require.True(t, found, "one active request per tenant slug must be enforced by the schema")
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
