package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/portsql/pkg/longid"
)

// NewLongIDsCommand creates the longids command.
func NewLongIDsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "longids",
		Short: "Inspect the long identifier registry",
		Long: `List, register or forget long identifiers.

Names longer than the backend identifier limit are stored in LONG_IDENTIFIERS
and replaced by a short alias (L#<id>) in rewritten queries.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered long identifiers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			conn, _, cleanup, err := NewCommandContext(cmd).OpenConn(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			reg := conn.Registry()
			reg.Load(ctx)
			entries := reg.Entries()

			renderLongIDs(cmd.OutOrStdout(), entries)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "alias <name>",
		Short: "Print the backend name for an identifier, registering it if too long",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conn, _, cleanup, err := NewCommandContext(cmd).OpenConn(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			alias, err := conn.Registry().Alias(ctx, args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), alias)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <name>",
		Short: "Remove a long identifier from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conn, _, cleanup, err := NewCommandContext(cmd).OpenConn(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := conn.Registry().Forget(ctx, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func renderLongIDs(w io.Writer, entries []longid.Entry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "(0 identifiers)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Alias", "Name"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Alias(), e.Name})
	}
	t.Render()
}
