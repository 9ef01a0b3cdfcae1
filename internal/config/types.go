// Package config loads portsql.yaml.
//
// Values are layered with koanf. From lowest to highest precedence: built-in
// defaults, the config file, PORTSQL_ environment variables and command line
// flags. An environment block can override the base target.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/core"
)

// TargetConfig holds the database target and its translation settings.
type TargetConfig struct {
	Type string `koanf:"type"` // oracle, postgres, sqlite

	// File path for sqlite, service or database name otherwise.
	Database string `koanf:"database"`

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Schema   string `koanf:"schema"`

	// Prefix is applied to {table} placeholders. Prefixes overrides it per table.
	Prefix   string            `koanf:"prefix"`
	Prefixes map[string]string `koanf:"prefixes"`

	// External marks a schema portsql does not own.
	External bool `koanf:"external"`

	// Options are passed to the driver connection string.
	Options map[string]string `koanf:"options"`

	// Params holds adapter settings such as in_max_size or inline_limit.
	Params map[string]any `koanf:"params"`
}

// Config holds all CLI configuration options.
type Config struct {
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	LogLevel     string               `koanf:"log_level"`
	OutputFormat string               `koanf:"output"`
	Target       *TargetConfig        `koanf:"target"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ConfigFile is the file the values were read from, if any.
	ConfigFile string `koanf:"-"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	Target *TargetConfig `koanf:"target"`
}

// Default configuration values.
const (
	DefaultEnv      = "dev"
	DefaultOutput   = "table"
	DefaultLogLevel = "warn"
	DefaultType     = "sqlite"
	DefaultDatabase = ":memory:"
)

// ApplyTargetDefaults fills in what a target leaves out. Without a type the
// target is an in-memory sqlite database.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Type = strings.ToLower(strings.TrimSpace(t.Type))
	if t.Type == "" {
		t.Type = DefaultType
	}
	if canonical, ok := adapter.Canonical(t.Type); ok {
		t.Type = canonical
	}
	switch t.Type {
	case "sqlite":
		if t.Database == "" {
			t.Database = DefaultDatabase
		}
	case "postgres":
		if t.Port == 0 {
			t.Port = 5432
		}
	case "oracle":
		if t.Port == 0 {
			t.Port = 1521
		}
	}
}

// Validate checks the target against the registered adapters.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	if strings.ToLower(t.Type) != "sqlite" && t.Database == "" {
		return fmt.Errorf("target database is required for %s", t.Type)
	}
	return nil
}

// AdapterConfig converts the target into the adapter configuration.
func (t *TargetConfig) AdapterConfig() core.AdapterConfig {
	cfg := core.AdapterConfig{
		Type:     strings.ToLower(t.Type),
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
		Prefix:   t.Prefix,
		Prefixes: t.Prefixes,
		External: t.External,
	}
	if cfg.Type == "sqlite" {
		cfg.Path = t.Database
	}
	return cfg
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	merged.Params = make(map[string]any, len(base.Params)+len(override.Params))
	merged.Prefixes = make(map[string]string, len(base.Prefixes)+len(override.Prefixes))
	for k, v := range base.Options {
		merged.Options[k] = v
	}
	for k, v := range base.Params {
		merged.Params[k] = v
	}
	for k, v := range base.Prefixes {
		merged.Prefixes[k] = v
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	if override.Prefix != "" {
		merged.Prefix = override.Prefix
	}
	if override.External {
		merged.External = true
	}

	for k, v := range override.Options {
		merged.Options[k] = v
	}
	for k, v := range override.Params {
		merged.Params[k] = v
	}
	for k, v := range override.Prefixes {
		merged.Prefixes[k] = v
	}
	return &merged
}
