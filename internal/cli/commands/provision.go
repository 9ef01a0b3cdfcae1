package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/portsql/pkg/provision"
)

// NewProvisionCommand creates the provision command.
func NewProvisionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Manage the LONG_IDENTIFIERS and BLOBS support tables",
		Long: `Create, drop or inspect the support tables of the target database.

PostgreSQL and SQLite are migrated with goose. Oracle runs an idempotent
script that skips objects which already exist.`,
		Example: `  portsql provision up
  portsql provision status
  portsql provision down --yes`,
	}

	cmd.AddCommand(newProvisionUpCommand())
	cmd.AddCommand(newProvisionDownCommand())
	cmd.AddCommand(newProvisionStatusCommand())
	return cmd
}

func newProvisionUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create missing support tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cmdCtx := NewCommandContext(cmd)
			a, err := cmdCtx.Connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := provision.Up(ctx, a.DB(), a.Dialect(), cmdCtx.Logger); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "support tables ready (%s)\n", a.Dialect().Name)
			return nil
		},
	}
}

func newProvisionDownCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Drop the support tables and everything stored in them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to drop support tables without --yes")
			}
			ctx := cmd.Context()
			cmdCtx := NewCommandContext(cmd)
			a, err := cmdCtx.Connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := provision.Down(ctx, a.DB(), a.Dialect(), cmdCtx.Logger); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "support tables dropped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm dropping the support tables")
	return cmd
}

func newProvisionStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the support table version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cmdCtx := NewCommandContext(cmd)
			a, err := cmdCtx.Connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			version, err := provision.Version(ctx, a.DB(), a.Dialect())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: version %d\n", a.Dialect().Name, version)
			return nil
		},
	}
}
