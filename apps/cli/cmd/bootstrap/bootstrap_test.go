package bootstrap

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/secrets"
)

func TestSecretsKeyIsUsable(t *testing.T) {
	t.Parallel()

	cmd := Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"secrets-key"})
	require.NoError(t, cmd.Execute())

	box, err := secrets.NewBox(strings.TrimSpace(out.String()))
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("service-role-key"))
	require.NoError(t, err)
	plain, err := box.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "service-role-key", string(plain))
}

func TestStoreRequiresDatabaseURL(t *testing.T) {
	t.Parallel()

	cmd := Command()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"store"})
	require.Error(t, cmd.Execute())
}
