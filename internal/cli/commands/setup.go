package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/portsql/internal/config"
	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/dialect"

	oracleadapter "github.com/leapstack-labs/portsql/pkg/adapters/oracle"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext reads the config and logger stored by the root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.FromContext(ctx)
	if cfg == nil {
		target := &config.TargetConfig{}
		config.ApplyTargetDefaults(target)
		cfg = &config.Config{
			Environment:  config.DefaultEnv,
			OutputFormat: config.DefaultOutput,
			LogLevel:     config.DefaultLogLevel,
			Target:       target,
		}
	}
	return &CommandContext{Cfg: cfg, Logger: config.GetLogger(ctx)}
}

// Connect opens the configured adapter. The caller closes it.
func (c *CommandContext) Connect(ctx context.Context) (adapter.Adapter, error) {
	cfg := c.Cfg.Target.AdapterConfig()
	a, err := adapter.NewAdapter(cfg, c.Logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	return a, nil
}

// OpenConn connects and pins one session. The cleanup function closes both.
func (c *CommandContext) OpenConn(ctx context.Context, opts ...adapter.ConnOption) (*adapter.Conn, adapter.Adapter, func(), error) {
	a, err := c.Connect(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	conn, err := a.NewConn(ctx, opts...)
	if err != nil {
		_ = a.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := conn.Close(); err != nil {
			c.Logger.Warn("failed to close connection", slog.String("error", err.Error()))
		}
		_ = a.Close()
	}
	return conn, a, cleanup, nil
}

// Dialect resolves the dialect of the target without connecting. name wins
// when set.
func (c *CommandContext) Dialect(name string) (*dialect.Dialect, error) {
	if name == "" && c.Cfg.Target.Type == "oracle" {
		return oracleadapter.DialectFor(c.Cfg.Target.Params)
	}
	if name == "" {
		name = c.Cfg.Target.Type
	}
	return dialect.Lookup(name)
}
