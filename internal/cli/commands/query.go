package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/portsql/pkg/adapter"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format   string
	Input    string
	Args     map[string]string
	Offset   int
	Limit    int
	Mode     string
	Sequence string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run a portable query against the target database",
		Long: `Run a portable query through the translation layer.

The query is rewritten for the target dialect, bound values are encoded,
and fetched rows are decoded before they are printed. Named binds are
passed with --arg and referenced as :name in the query.

Without a query on a terminal, an interactive shell is started.`,
		Example: `  # Select rows
  portsql query "SELECT id, name FROM {users} WHERE name = :name" --arg name=alice

  # Fetch rows 11 to 20
  portsql query "SELECT id FROM {users} ORDER BY id" --offset 10 --limit 10

  # Run a statement and print the affected row count
  portsql query --mode affected "DELETE FROM {users} WHERE id > 100"

  # Output as JSON
  portsql query "SELECT * FROM {users}" --format json

  # Interactive shell
  portsql query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md (default: config output)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().StringToStringVarP(&opts.Args, "arg", "a", nil, "Named bind value (name=value)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Rows to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Rows to return (0 for all)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "statement", "Return mode: statement, affected, insert-id, null")
	cmd.Flags().StringVar(&opts.Sequence, "sequence", "", "Sequence read by --mode insert-id")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv", "md"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"statement", "affected", "insert-id", "null"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	if len(args) == 0 && opts.Input == "" && stdinIsTerminal(cmd) {
		return runQueryREPL(cmd, opts)
	}
	query, err := readQuery(cmd, args, opts.Input)
	if err != nil {
		return err
	}
	mode, err := parseReturnMode(opts.Mode)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	format := opts.Format
	if format == "" {
		format = cmdCtx.Cfg.OutputFormat
	}

	conn, _, cleanup, err := cmdCtx.OpenConn(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return executeAndRender(ctx, cmd.OutOrStdout(), conn, execRequest{
		Query:    query,
		Args:     namedArgs(opts.Args),
		Mode:     mode,
		Sequence: opts.Sequence,
		Offset:   opts.Offset,
		Limit:    opts.Limit,
		Format:   format,
	})
}

type execRequest struct {
	Query    string
	Args     []any
	Mode     adapter.ReturnMode
	Sequence string
	Offset   int
	Limit    int
	Format   string
}

// executeAndRender runs one statement and prints its outcome for the mode.
func executeAndRender(ctx context.Context, w io.Writer, conn *adapter.Conn, req execRequest) error {
	execOpts := []adapter.ExecOption{adapter.WithReturn(req.Mode)}
	if req.Sequence != "" {
		execOpts = append(execOpts, adapter.WithSequence(req.Sequence))
	}

	var (
		res *adapter.Result
		err error
	)
	if req.Offset > 0 || req.Limit > 0 {
		res, err = conn.ExecuteRange(ctx, req.Query, req.Offset, req.Limit, req.Args, execOpts...)
	} else {
		res, err = conn.Execute(ctx, req.Query, req.Args, execOpts...)
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = res.Close() }()

	switch req.Mode {
	case adapter.ReturnStatement:
		return renderResults(w, res.Rows, req.Format)
	case adapter.ReturnAffected:
		_, _ = fmt.Fprintf(w, "%d rows affected\n", res.RowsAffected)
	case adapter.ReturnInsertID:
		_, _ = fmt.Fprintf(w, "insert id %d\n", res.InsertID)
	default:
		_, _ = fmt.Fprintln(w, "ok")
	}
	return nil
}

func parseReturnMode(name string) (adapter.ReturnMode, error) {
	for _, mode := range []adapter.ReturnMode{
		adapter.ReturnStatement,
		adapter.ReturnAffected,
		adapter.ReturnInsertID,
		adapter.ReturnNull,
	} {
		if mode.String() == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown return mode %q", name)
}

// namedArgs turns --arg pairs into named binds in a stable order.
func namedArgs(values map[string]string) []any {
	if len(values) == 0 {
		return nil
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, sql.Named(name, values[name]))
	}
	return args
}
