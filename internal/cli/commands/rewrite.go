package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/portsql/pkg/longid"
	"github.com/leapstack-labs/portsql/pkg/rewrite"
)

// RewriteOptions holds options for the rewrite command.
type RewriteOptions struct {
	Dialect string
	Trace   bool
	Connect bool
	Format  string
	Input   string
}

// NewRewriteCommand creates the rewrite command.
func NewRewriteCommand() *cobra.Command {
	opts := &RewriteOptions{}

	cmd := &cobra.Command{
		Use:   "rewrite [SQL]",
		Short: "Show the backend-native form of a portable query",
		Long: `Rewrite a portable query for the target dialect and print the result.

Without --connect, long identifiers are aliased against an empty in-memory
registry and nothing touches the database. With --connect, the registry of
the target database is used and new long identifiers are persisted.`,
		Example: `  # Rewrite for the configured target
  portsql rewrite "SELECT name FROM {users} WHERE note = ''"

  # Show every rewrite stage for Oracle
  portsql rewrite --dialect oracle --trace "SELECT 1"

  # Read the query from a file
  portsql rewrite -i query.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "Dialect to rewrite for (default: target type)")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "Print the SQL after every rewrite stage")
	cmd.Flags().BoolVar(&opts.Connect, "connect", false, "Use the long identifier registry of the target database")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "text", "Trace format: text, yaml, json")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "yaml", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runRewrite(cmd *cobra.Command, args []string, opts *RewriteOptions) error {
	query, err := readQuery(cmd, args, opts.Input)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)

	var rw *rewrite.Rewriter
	if opts.Connect {
		conn, _, cleanup, err := cmdCtx.OpenConn(ctx)
		if err != nil {
			return err
		}
		defer cleanup()
		rw = conn.Rewriter()
	} else {
		rw, err = offlineRewriter(cmdCtx, opts.Dialect)
		if err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if !opts.Trace {
		_, _ = fmt.Fprintln(w, rw.Rewrite(ctx, query))
		return nil
	}
	return renderTrace(w, rw.Trace(ctx, query), opts.Format)
}

func offlineRewriter(cmdCtx *CommandContext, name string) (*rewrite.Rewriter, error) {
	d, err := cmdCtx.Dialect(name)
	if err != nil {
		return nil, err
	}
	target := cmdCtx.Cfg.Target
	ids := longid.New(longid.NewMemoryStore(), d, longid.WithLogger(cmdCtx.Logger))
	return rewrite.New(d,
		rewrite.WithPrefix(target.Prefix),
		rewrite.WithTablePrefixes(target.Prefixes),
		rewrite.WithExternal(target.External),
		rewrite.WithIdentifiers(ids),
		rewrite.WithLogger(cmdCtx.Logger),
	), nil
}

func renderTrace(w io.Writer, results []rewrite.StageResult, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	default:
		width := 0
		for _, r := range results {
			width = max(width, len(r.Stage))
		}
		for _, r := range results {
			_, _ = fmt.Fprintf(w, "%-*s  %s\n", width, r.Stage, r.SQL)
		}
		return nil
	}
}

// readQuery takes SQL from args, a file or piped stdin, in that order.
func readQuery(cmd *cobra.Command, args []string, input string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case input != "":
		content, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(content), nil
	}

	if stdinIsTerminal(cmd) {
		return "", fmt.Errorf("no query given: pass SQL as an argument, with --input, or on stdin")
	}
	content, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	query := strings.TrimSpace(string(content))
	if query == "" {
		return "", fmt.Errorf("no query given")
	}
	return query, nil
}

func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
