package sqlite

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
)

// Params holds SQLite-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// BusyTimeout is how long a statement waits for a locked database.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	// JournalMode sets PRAGMA journal_mode (e.g., "wal").
	JournalMode string `mapstructure:"journal_mode"`

	// ForeignKeys enables foreign key enforcement.
	ForeignKeys bool `mapstructure:"foreign_keys"`
}

// DefaultBusyTimeout is used when busy_timeout is not configured.
const DefaultBusyTimeout = 5 * time.Second

func parseParams(params map[string]any) (*Params, error) {
	p := &Params{BusyTimeout: DefaultBusyTimeout, ForeignKeys: true}
	if len(params) == 0 {
		return p, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := decoder.Decode(params); err != nil {
		return nil, fmt.Errorf("failed to decode sqlite params: %w", err)
	}
	return p, nil
}

// buildDSN turns a path into a modernc.org/sqlite DSN carrying the pragmas.
// An empty path or ":memory:" becomes a named shared-cache memory database
// so every pinned session sees the same tables.
func buildDSN(path string, p *Params) string {
	if path == "" || path == ":memory:" {
		path = "file:portsql-" + uuid.NewString() + "?mode=memory&cache=shared"
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", p.BusyTimeout.Milliseconds()))
	if p.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if p.JournalMode != "" {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToLower(p.JournalMode)))
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}
