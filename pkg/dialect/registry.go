package dialect

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string]*Dialect)
	aliases    = make(map[string]string)
)

// ErrDialectRequired is returned by Lookup for an empty name.
var ErrDialectRequired = errors.New("dialect is required")

// Register publishes d under its lower-cased name and any aliases. Dialect
// packages call it from init; a taken name panics.
func Register(d *Dialect, alias ...string) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()

	name := strings.ToLower(d.Name)
	if _, dup := dialects[name]; dup {
		panic(fmt.Sprintf("dialect: %q registered twice", name))
	}
	dialects[name] = d
	for _, a := range alias {
		aliases[strings.ToLower(a)] = name
	}
}

// Get returns the dialect registered under name or one of its aliases.
func Get(name string) (*Dialect, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	key := strings.ToLower(strings.TrimSpace(name))
	if target, ok := aliases[key]; ok {
		key = target
	}
	d, ok := dialects[key]
	return d, ok
}

// Lookup is Get with an error naming the registered dialects.
func Lookup(name string) (*Dialect, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrDialectRequired
	}
	if d, ok := Get(name); ok {
		return d, nil
	}
	return nil, fmt.Errorf("unknown dialect %q (available: %s)", name, strings.Join(List(), ", "))
}

// List returns the registered dialect names in order. Aliases are left out.
func List() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
