package auth

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	platformauth "github.com/zenGate-Global/palmyra-workspaces/platform/go/auth"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/auth/devtoken"
)

// Command groups operator authentication helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Operator authentication helpers",
	}

	cmd.AddCommand(devTokenCommand())
	return cmd
}

func devTokenCommand() *cobra.Command {
	var op devtoken.Operator

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Mint an unsigned operator token for AUTH_PROVIDER=dev",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := devtoken.Mint(op, time.Now().UTC())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&op.ProjectID, "project-id", "", "Firebase project ID (iss/aud)")
	cmd.Flags().StringVar(&op.UserID, "user-id", "", "operator id, recorded as approvedBy")
	cmd.Flags().StringVar(&op.Email, "email", "", "operator email")
	cmd.Flags().StringVar(&op.Name, "name", "", "display name")
	cmd.Flags().StringSliceVar(&op.Roles, "roles", []string{platformauth.RoleAdmin}, "roles claim (comma-separated)")
	cmd.Flags().DurationVar(&op.TTL, "ttl", time.Hour, "token lifetime, at most 24h")

	_ = cmd.MarkFlagRequired("project-id")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
