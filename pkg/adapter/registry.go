package adapter

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/portsql/pkg/core"
)

// Factory builds an unconnected adapter. A nil logger discards output.
type Factory func(*slog.Logger) Adapter

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	aliases    = make(map[string]string)
)

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register makes an adapter available under name and any aliases. Backend
// packages call it from init. Registering a taken name panics.
func Register(name string, factory Factory, alias ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name = normalize(name)
	if name == "" || factory == nil {
		panic("adapter: Register needs a name and a factory")
	}
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("adapter: %q registered twice", name))
	}
	for _, a := range alias {
		if _, dup := aliases[normalize(a)]; dup || normalize(a) == name {
			panic(fmt.Sprintf("adapter: alias %q registered twice", a))
		}
	}
	factories[name] = factory
	for _, a := range alias {
		aliases[normalize(a)] = name
	}
}

// Canonical resolves a type or alias to the registered adapter name.
func Canonical(name string) (string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return canonicalLocked(name)
}

func canonicalLocked(name string) (string, bool) {
	name = normalize(name)
	if target, ok := aliases[name]; ok {
		name = target
	}
	_, ok := factories[name]
	return name, ok
}

// Get returns the factory for a type or alias.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	canonical, ok := canonicalLocked(name)
	if !ok {
		return nil, false
	}
	return factories[canonical], true
}

// NewAdapter builds the adapter named by cfg.Type without connecting it.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if normalize(cfg.Type) == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return factory(logger), nil
}

// ListAdapters returns the registered adapter names, sorted. Aliases are not
// listed.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether name is a registered type or alias.
func IsRegistered(name string) bool {
	_, ok := Canonical(name)
	return ok
}

// UnknownAdapterError is returned for a target type no backend registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %s); check target.type in portsql.yaml",
		e.Type, strings.Join(e.Available, ", "))
}
