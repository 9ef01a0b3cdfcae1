// Package core defines the shared language of the portsql system.
//
// This package contains:
//   - Dialect configuration (DialectConfig, IdentifierConfig, styles)
//   - Adapter configuration (AdapterConfig)
//   - Error classification (ErrorKind)
//
// The Golden Rule: pkg/core imports ONLY the stdlib.
// All other packages depend on core, not the reverse.
package core
