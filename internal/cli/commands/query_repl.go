package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/portsql/pkg/adapter"
)

const (
	replPrompt     = "portsql> "
	replContinue   = "    ...> "
	replHistoryDot = ".portsql_history"
)

var replDotCommands = []string{
	".help", ".rewrite", ".trace", ".format", ".longids", ".stats", ".clear", ".quit", ".exit",
}

func runQueryREPL(cmd *cobra.Command, opts *QueryOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)

	conn, _, cleanup, err := cmdCtx.OpenConn(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	// History lives next to the project config; without one it is not kept.
	historyFile := ""
	if cmdCtx.Cfg.ConfigFile != "" {
		historyFile = filepath.Join(filepath.Dir(cmdCtx.Cfg.ConfigFile), replHistoryDot)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newIdentifierCompleter(ctx, conn),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	format := opts.Format
	if format == "" {
		format = cmdCtx.Cfg.OutputFormat
	}
	session := newReplSession(conn, cmd.OutOrStdout(), cmd.ErrOrStderr(), format)

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "portsql shell (%s, %s)\n", cmdCtx.Cfg.Target.Type, conn.Dialect().Name)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			session.reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if session.handleLine(ctx, line) {
			return nil
		}
		if session.pending() {
			rl.SetPrompt(replContinue)
		} else {
			rl.SetPrompt(replPrompt)
		}
	}
}

// replSession holds the state of one interactive shell. It is driven line by
// line so that it can run without a terminal.
type replSession struct {
	conn   *adapter.Conn
	out    io.Writer
	errOut io.Writer
	format string
	trace  bool
	buf    strings.Builder
}

func newReplSession(conn *adapter.Conn, out, errOut io.Writer, format string) *replSession {
	return &replSession{conn: conn, out: out, errOut: errOut, format: format}
}

func (s *replSession) pending() bool { return s.buf.Len() > 0 }

func (s *replSession) reset() { s.buf.Reset() }

// handleLine consumes one input line and reports whether the shell should
// exit. SQL accumulates until a line ends with a semicolon.
func (s *replSession) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !s.pending() && strings.HasPrefix(line, ".") {
		return s.dotCommand(ctx, line)
	}

	s.buf.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.buf.WriteString("\n")
		return false
	}
	query := strings.TrimSuffix(s.buf.String(), ";")
	s.buf.Reset()

	if s.trace {
		_, _ = fmt.Fprintf(s.errOut, "-- %s\n", s.conn.Rewriter().Rewrite(ctx, query))
	}
	req := execRequest{Query: query, Mode: modeFor(query), Format: s.format}
	if err := executeAndRender(ctx, s.out, s.conn, req); err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	return false
}

func (s *replSession) dotCommand(ctx context.Context, line string) bool {
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(command) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(s.out)
	case ".rewrite":
		if rest == "" {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .rewrite <sql>")
			break
		}
		_, _ = fmt.Fprintln(s.out, s.conn.Rewriter().Rewrite(ctx, strings.TrimSuffix(rest, ";")))
	case ".trace":
		switch strings.ToLower(rest) {
		case "on":
			s.trace = true
		case "off":
			s.trace = false
		default:
			s.trace = !s.trace
		}
		_, _ = fmt.Fprintf(s.out, "trace %s\n", onOff(s.trace))
	case ".format":
		switch rest {
		case "table", "json", "csv", "md":
			s.format = rest
		default:
			_, _ = fmt.Fprintln(s.errOut, "Usage: .format table|json|csv|md")
		}
	case ".longids":
		reg := s.conn.Registry()
		reg.Load(ctx)
		renderLongIDs(s.out, reg.Entries())
	case ".stats":
		_, _ = fmt.Fprintln(s.out, s.conn.Stats().String())
	case ".clear":
		_, _ = fmt.Fprint(s.out, "\033[H\033[2J")
	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

// modeFor picks how a shell statement is run: statements that return rows
// are printed, everything else reports the affected row count.
func modeFor(query string) adapter.ReturnMode {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return adapter.ReturnNull
	}
	switch strings.ToUpper(strings.TrimLeft(fields[0], "(")) {
	case "SELECT", "WITH", "VALUES", "SHOW", "PRAGMA", "EXPLAIN":
		return adapter.ReturnStatement
	default:
		return adapter.ReturnAffected
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .rewrite <sql>     Print the backend form of a query without running it
  .trace [on|off]    Print the backend form of every query before it runs
  .format <name>     Switch output: table, json, csv, md
  .longids           List registered long identifiers
  .stats             Show statement statistics for this session
  .clear             Clear the screen
  .quit / .exit      Exit the shell

Tips:
  - SQL statements must end with a semicolon (;)
  - Write tables as {name} to apply the configured prefix
  - Tab completes dot commands and registered long identifiers
`
	_, _ = fmt.Fprintln(w, help)
}

// newIdentifierCompleter completes dot commands and the long identifiers the
// registry knows about.
func newIdentifierCompleter(ctx context.Context, conn *adapter.Conn) *readline.PrefixCompleter {
	reg := conn.Registry()
	reg.Load(ctx)

	var items []readline.PrefixCompleterInterface
	for _, e := range reg.Entries() {
		items = append(items, readline.PcItem(e.Name))
	}
	for _, c := range replDotCommands {
		items = append(items, readline.PcItem(c))
	}
	return readline.NewPrefixCompleter(items...)
}
