package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/portsql/pkg/provision"
	"github.com/spf13/cobra"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the target database and the translation layer",
		Long: `Connect to the configured target and report whether portsql can use it:
the connection, the dialect settings, the support tables and a rewritten
round trip query.`,
		Example: `  # Run health check
  portsql doctor

  # Output as JSON
  portsql doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "text", "Output format: text, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Target  TargetSummary `json:"target"`
	Checks  []HealthCheck `json:"checks"`
	Healthy bool          `json:"healthy"`
}

// TargetSummary describes the configured target.
type TargetSummary struct {
	Type       string `json:"type"`
	Database   string `json:"database"`
	Dialect    string `json:"dialect,omitempty"`
	ConfigFile string `json:"config_file,omitempty"`
}

// HealthCheck represents a single check result.
type HealthCheck struct {
	Name    string `json:"name"`
	Group   string `json:"group"`
	Status  string `json:"status"` // "pass", "warn", "error"
	Message string `json:"message"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)

	out := &DoctorOutput{
		Target: TargetSummary{
			Type:       cmdCtx.Cfg.Target.Type,
			Database:   cmdCtx.Cfg.Target.Database,
			ConfigFile: cmdCtx.Cfg.ConfigFile,
		},
	}
	out.Checks = diagnose(ctx, cmdCtx, &out.Target)

	out.Healthy = true
	for _, c := range out.Checks {
		if c.Status == "error" {
			out.Healthy = false
		}
	}

	w := cmd.OutOrStdout()
	var err error
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(out)
	} else {
		renderDoctorText(w, out)
	}
	if err != nil {
		return err
	}
	if !out.Healthy {
		return fmt.Errorf("doctor found problems with target %s", out.Target.Type)
	}
	return nil
}

func diagnose(ctx context.Context, cmdCtx *CommandContext, target *TargetSummary) []HealthCheck {
	var checks []HealthCheck
	add := func(group, name, status, msg string) {
		checks = append(checks, HealthCheck{Name: name, Group: group, Status: status, Message: msg})
	}

	a, err := cmdCtx.Connect(ctx)
	if err != nil {
		add("connection", "connect", "error", err.Error())
		return checks
	}
	defer func() { _ = a.Close() }()
	add("connection", "connect", "pass", "connected to "+a.Dialect().Name)

	d := a.Dialect()
	target.Dialect = d.Name
	add("dialect", "identifiers", "pass", identifierSummary(d.MaxIdentifierLength))
	add("dialect", "pagination", "pass", d.Pagination.String())
	add("dialect", "upsert", "pass", d.Upsert.String())
	if d.InListLimit > 0 {
		add("dialect", "in lists", "pass", fmt.Sprintf("split above %d values", d.InListLimit))
	} else {
		add("dialect", "in lists", "pass", "unlimited")
	}

	version, err := provision.Version(ctx, a.DB(), d)
	switch {
	case err != nil:
		add("support tables", "version", "warn", err.Error())
	case version == 0:
		add("support tables", "version", "warn", "not provisioned (run 'portsql provision up')")
	default:
		add("support tables", "version", "pass", fmt.Sprintf("version %d", version))
	}

	conn, err := a.NewConn(ctx)
	if err != nil {
		add("translation", "session", "error", err.Error())
		return checks
	}
	defer func() { _ = conn.Close() }()

	res, err := conn.Execute(ctx, "SELECT 1 AS one", nil)
	if err != nil {
		add("translation", "round trip", "error", err.Error())
		return checks
	}
	rows, err := res.Rows.All()
	switch {
	case err != nil:
		add("translation", "round trip", "error", err.Error())
	case len(rows) != 1:
		add("translation", "round trip", "error", fmt.Sprintf("expected 1 row, got %d", len(rows)))
	default:
		add("translation", "round trip", "pass", "SELECT 1 returned one row")
	}

	if version > 0 {
		reg := conn.Registry()
		reg.Load(ctx)
		add("translation", "long identifiers", "pass", fmt.Sprintf("%d registered", len(reg.Entries())))
	}
	add("translation", "statistics", "pass", conn.Stats().String())
	return checks
}

func identifierSummary(limit int) string {
	if limit <= 0 {
		return "no length limit"
	}
	return fmt.Sprintf("%d characters, longer names aliased", limit)
}

func renderDoctorText(w io.Writer, out *DoctorOutput) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "portsql Target Health Report")
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 55))
	_, _ = fmt.Fprintf(w, "   Target: %s (%s)\n", out.Target.Type, out.Target.Database)
	if out.Target.ConfigFile != "" {
		_, _ = fmt.Fprintf(w, "   Config: %s\n", out.Target.ConfigFile)
	}
	_, _ = fmt.Fprintln(w)

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			_, _ = fmt.Fprintln(w, "   "+titleCaser.String(currentGroup))
			_, _ = fmt.Fprintln(w, "   "+strings.Repeat("-", 40))
		}

		icon := "✓"
		switch check.Status {
		case "warn":
			icon = "!"
		case "error":
			icon = "✗"
		}
		_, _ = fmt.Fprintf(w, "   %s %s: %s\n", icon, check.Name, check.Message)
	}
	_, _ = fmt.Fprintln(w)

	status := "healthy"
	if !out.Healthy {
		status = "problems found"
	}
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 55))
	_, _ = fmt.Fprintf(w, "   Status: %s\n", status)
}
