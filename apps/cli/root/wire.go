package root

import (
	"github.com/zenGate-Global/palmyra-workspaces/apps/cli/cmd/auth"
	"github.com/zenGate-Global/palmyra-workspaces/apps/cli/cmd/bootstrap"
	"github.com/zenGate-Global/palmyra-workspaces/apps/cli/cmd/credentials"
	"github.com/zenGate-Global/palmyra-workspaces/apps/cli/cmd/request"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(request.Command())
	Root().AddCommand(credentials.Command())
}
