package credentials

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-workspaces/apps/cli/internal/clistack"
	"github.com/zenGate-Global/palmyra-workspaces/apps/internal/wiring"
)

// Command groups workspace admin credential helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Workspace admin credential delivery",
	}

	cmd.AddCommand(resendCommand())
	return cmd
}

func resendCommand() *cobra.Command {
	var email string

	c := &cobra.Command{
		Use:   "resend",
		Short: "Issue a fresh setup link to an existing workspace admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			stack, closeStack, err := clistack.Open(ctx)
			if err != nil {
				return err
			}
			defer closeStack()

			return resend(ctx, cmd, stack, email)
		},
	}

	c.Flags().StringVar(&email, "email", "", "Workspace admin email")
	_ = c.MarkFlagRequired("email")

	return c
}

func resend(ctx context.Context, cmd *cobra.Command, stack *wiring.Stack, email string) error {
	delivery, err := stack.Service.ResendCredentials(ctx, email)
	if err != nil {
		return err
	}
	if delivery.Delivered {
		fmt.Fprintf(cmd.OutOrStdout(), "Credentials sent to %s.\n", email)
		return nil
	}
	if delivery.TemporaryCredential != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "No delivery channel configured. Hand this over to %s:\n%s\n", email, delivery.TemporaryCredential)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "No delivery channel configured for %s; nothing was sent.\n", email)
	return nil
}
