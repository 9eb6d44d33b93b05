package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/secrets"
)

// Command groups one-time setup helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap the provisioning store and secrets",
		Long:  "Bootstrap platform resources such as the provisioning status store schema and the secrets sealing key.",
	}

	cmd.AddCommand(storeCommand())
	cmd.AddCommand(secretsKeyCommand())
	return cmd
}

func storeCommand() *cobra.Command {
	var (
		databaseURL string
		adminSchema string
	)

	c := &cobra.Command{
		Use:   "store",
		Short: "Create the provisioning schema and tables (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			adminSchema = strings.TrimSpace(adminSchema)
			if adminSchema == "" {
				return fmt.Errorf("admin schema is required")
			}

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL, ApplicationName: "workspaces-cli"})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapAdminSchema(ctx, pool, adminSchema); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Provisioning store ready in schema %q.\n", adminSchema)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&adminSchema, "admin-schema", "workspace_admin", "Schema holding the provisioning tables")

	_ = c.MarkFlagRequired("database-url")

	return c
}

func secretsKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "secrets-key",
		Short: "Generate a SECRETS_KEY for sealing provider credentials at rest",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
