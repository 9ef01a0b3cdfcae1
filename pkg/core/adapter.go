package core

import "strings"

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any

	// Prefix is the default table prefix applied to {table} placeholders.
	Prefix string
	// Prefixes overrides Prefix for individual tables.
	Prefixes map[string]string
	// External marks a schema this connection does not own. No long-identifier
	// aliasing or value encoding is applied.
	External bool
}

// PrefixFor returns the prefix configured for a table placeholder.
func (c AdapterConfig) PrefixFor(table string) string {
	for name, prefix := range c.Prefixes {
		if strings.EqualFold(name, table) {
			return prefix
		}
	}
	return c.Prefix
}
