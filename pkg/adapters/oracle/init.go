// Package oracle provides an Oracle database adapter for portsql.
//
// This file registers the Oracle adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/portsql/pkg/adapters/oracle"
package oracle

import (
	"log/slog"

	"github.com/leapstack-labs/portsql/pkg/adapter"
)

func init() {
	adapter.Register("oracle", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
