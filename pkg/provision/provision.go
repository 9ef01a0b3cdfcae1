// Package provision creates the support tables a portsql connection needs:
// LONG_IDENTIFIERS for registered long names and BLOBS for out-of-band values.
//
// PostgreSQL and SQLite are migrated with goose from embedded migrations.
// Goose has no Oracle dialect, so Oracle runs an embedded script whose
// statements are skipped when the object already exists.
package provision

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/leapstack-labs/portsql/pkg/dialect"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

//go:embed scripts/*.sql
var scripts embed.FS

// ErrUnsupported is returned for dialects without support table definitions.
var ErrUnsupported = errors.New("provisioning not supported")

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

type backend struct {
	goose string // goose dialect, empty for script based backends
	dir   string
}

func backendFor(d *dialect.Dialect) (backend, error) {
	switch d.Name {
	case "postgres":
		return backend{goose: "postgres", dir: "migrations/postgres"}, nil
	case "sqlite":
		return backend{goose: "sqlite3", dir: "migrations/sqlite"}, nil
	case "oracle", "oracle11":
		return backend{dir: "scripts"}, nil
	default:
		return backend{}, fmt.Errorf("%w for dialect %s", ErrUnsupported, d.Name)
	}
}

// Up creates every missing support object.
func Up(ctx context.Context, db *sql.DB, d *dialect.Dialect, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b, err := backendFor(d)
	if err != nil {
		return err
	}

	if b.goose == "" {
		return runScript(ctx, db, "scripts/oracle.sql", logger)
	}
	return withGoose(b, logger, func() error {
		if err := goose.UpContext(ctx, db, b.dir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

// Down drops the support objects.
func Down(ctx context.Context, db *sql.DB, d *dialect.Dialect, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b, err := backendFor(d)
	if err != nil {
		return err
	}

	if b.goose == "" {
		return runScript(ctx, db, "scripts/oracle_down.sql", logger)
	}
	return withGoose(b, logger, func() error {
		if err := goose.DownToContext(ctx, db, b.dir, 0); err != nil {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		return nil
	})
}

// Version returns the applied migration version. For Oracle it is the
// number of support tables present.
func Version(ctx context.Context, db *sql.DB, d *dialect.Dialect) (int64, error) {
	b, err := backendFor(d)
	if err != nil {
		return 0, err
	}

	if b.goose == "" {
		var n int64
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM user_tables WHERE table_name IN ('LONG_IDENTIFIERS', 'BLOBS')").Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("failed to count support tables: %w", err)
		}
		return n, nil
	}

	var version int64
	err = withGoose(b, nil, func() error {
		var err error
		version, err = goose.GetDBVersionContext(ctx, db)
		return err
	})
	return version, err
}

func withGoose(b backend, logger *slog.Logger, fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if logger != nil {
		goose.SetLogger(gooseLogger{logger})
	} else {
		goose.SetLogger(goose.NopLogger())
	}

	if err := goose.SetDialect(b.goose); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return fn()
}

// runScript executes each statement of an embedded script. Statements
// failing because the object exists (ORA-00955) or is already gone
// (ORA-00942, ORA-02289) are skipped.
func runScript(ctx context.Context, db *sql.DB, name string, logger *slog.Logger) error {
	data, err := scripts.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	for _, stmt := range Statements(string(data)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if skippable(err) {
				logger.Debug("support object unchanged", slog.String("statement", firstLine(stmt)))
				continue
			}
			return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), err)
		}
		logger.Info("executed", slog.String("statement", firstLine(stmt)))
	}
	return nil
}

func skippable(err error) bool {
	msg := err.Error()
	for _, code := range []string{"ORA-00955", "ORA-00942", "ORA-02289"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// Statements splits a script on semicolons that end a line. Comment lines
// and empty statements are dropped.
func Statements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		if strings.HasSuffix(trimmed, ";") {
			cur.WriteString(strings.TrimSuffix(strings.TrimRight(line, " \t\r"), ";"))
			stmts = append(stmts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteString(strings.TrimRight(line, "\r"))
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(stmt, "\n")
	return strings.TrimSpace(line)
}

// gooseLogger routes goose progress output to slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
