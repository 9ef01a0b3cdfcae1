// Package longid maps identifiers longer than the backend allows to stable
// short aliases of the form L#<id>.
//
// A Registry belongs to exactly one connection. Entries are loaded lazily from
// the backing Store on first use, appended when a new over-length name is
// seen and never changed in place.
package longid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/portsql/pkg/dialect"
	"github.com/leapstack-labs/portsql/pkg/token"
)

// Prefix starts every short alias.
const Prefix = "L#"

// Entry is one persisted long identifier.
type Entry struct {
	ID   int64
	Name string
}

// Alias returns the short alias of the entry.
func (e Entry) Alias() string {
	return Prefix + strconv.FormatInt(e.ID, 10)
}

// Store persists long identifiers.
type Store interface {
	// Load returns every persisted entry.
	Load(ctx context.Context) ([]Entry, error)
	// Insert persists name under a fresh id and returns the id.
	Insert(ctx context.Context, name string) (int64, error)
	// Delete removes name (case-insensitive).
	Delete(ctx context.Context, name string) error
}

// Registry resolves long identifiers for one connection.
type Registry struct {
	store  Store
	d      *dialect.Dialect
	logger *slog.Logger

	mu        sync.Mutex
	loaded    bool
	byName    map[string]Entry
	byID      map[int64]Entry
	entries   []Entry // longest name first
	listeners []func()
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a registry over store for dialect d. Nothing is loaded until first use.
func New(store Store, d *dialect.Dialect, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		d:      d,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.reset(nil)
	return r
}

// OnChange registers fn to run whenever an entry is added or removed.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Alias returns the bare name the backend accepts for name: the normalized
// name when it fits the limit, the short alias otherwise. A new over-length
// name is persisted first.
func (r *Registry) Alias(ctx context.Context, name string) (string, error) {
	if !r.d.IsLongIdentifier(name) {
		return r.d.NormalizeName(name), nil
	}

	r.mu.Lock()
	r.ensureLoaded(ctx)
	if e, ok := r.byName[key(name)]; ok {
		r.mu.Unlock()
		return e.Alias(), nil
	}

	id, err := r.store.Insert(ctx, name)
	if err != nil {
		r.mu.Unlock()
		return "", fmt.Errorf("failed to register long identifier %q: %w", name, err)
	}
	e := Entry{ID: id, Name: name}
	r.add(e)
	listeners := r.listeners
	r.mu.Unlock()

	r.logger.Debug("registered long identifier", slog.String("name", name), slog.String("alias", e.Alias()))
	notify(listeners)
	return e.Alias(), nil
}

// Resolve returns name in the form to write into SQL text. Names within the
// limit are escaped by the dialect; longer names become their quoted alias.
func (r *Registry) Resolve(ctx context.Context, name string) (string, error) {
	if !r.d.IsLongIdentifier(name) {
		return r.d.EscapeName(name), nil
	}
	alias, err := r.Alias(ctx, name)
	if err != nil {
		return "", err
	}
	return r.d.QuoteIdentifier(alias), nil
}

// Substitute returns the alias of a registered long name without registering anything.
func (r *Registry) Substitute(ctx context.Context, word string) (string, bool) {
	if !r.d.IsLongIdentifier(word) {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded(ctx)
	e, ok := r.byName[key(word)]
	if !ok {
		return "", false
	}
	return e.Alias(), true
}

// LookupOriginal returns the name registered under id.
func (r *Registry) LookupOriginal(ctx context.Context, id int64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded(ctx)
	e, ok := r.byID[id]
	return e.Name, ok
}

// Original maps a short alias (as returned in a result column name) back to
// the registered name. Quotes and letter case are ignored.
func (r *Registry) Original(ctx context.Context, alias string) (string, bool) {
	id, ok := ParseAlias(alias)
	if !ok {
		return "", false
	}
	return r.LookupOriginal(ctx, id)
}

// Reload discards the in-memory table and loads it again from the store.
// On failure the registry is left empty and the error is returned.
func (r *Registry) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = true
	entries, err := r.store.Load(ctx)
	if err != nil {
		r.reset(nil)
		return fmt.Errorf("failed to load long identifiers: %w", err)
	}
	r.reset(entries)
	return nil
}

// Forget removes name from the store and the in-memory table.
func (r *Registry) Forget(ctx context.Context, name string) error {
	if err := r.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to forget long identifier %q: %w", name, err)
	}

	r.mu.Lock()
	e, ok := r.byName[key(name)]
	if ok {
		kept := make([]Entry, 0, len(r.entries))
		for _, x := range r.entries {
			if x.ID != e.ID {
				kept = append(kept, x)
			}
		}
		r.reset(kept)
	}
	listeners := r.listeners
	r.mu.Unlock()

	if ok {
		notify(listeners)
	}
	return nil
}

// Discover registers every over-length word, quoted identifier, table
// placeholder and bind name in text and returns the aliases of the names
// found.
func (r *Registry) Discover(ctx context.Context, text string) ([]string, error) {
	seen := make(map[string]bool)
	var aliases []string
	var errs []error

	for _, tok := range token.Scan(text) {
		switch tok.Type {
		case token.WORD, token.QUOTED, token.PLACEHOLDER, token.BIND:
		default:
			continue
		}
		name := tok.Name()
		if !r.d.IsLongIdentifier(name) || seen[key(name)] {
			continue
		}
		seen[key(name)] = true

		alias, err := r.Alias(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		aliases = append(aliases, alias)
	}

	return aliases, errors.Join(errs...)
}

// Entries returns the registered entries, longest name first.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Load reads the store unless it has already been read.
func (r *Registry) Load(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded(ctx)
}

// ensureLoaded loads the store once. Load failures are expected while the
// support table is not provisioned yet; the registry then starts empty.
// Caller must hold r.mu.
func (r *Registry) ensureLoaded(ctx context.Context) {
	if r.loaded {
		return
	}
	r.loaded = true

	entries, err := r.store.Load(ctx)
	if err != nil {
		r.logger.Debug("long identifier table not available", slog.String("error", err.Error()))
		return
	}
	r.reset(entries)
	r.logger.Debug("loaded long identifiers", slog.Int("count", len(r.entries)))
}

// reset rebuilds the lookup tables. Caller must hold r.mu.
func (r *Registry) reset(entries []Entry) {
	r.byName = make(map[string]Entry, len(entries))
	r.byID = make(map[int64]Entry, len(entries))
	r.entries = r.entries[:0]
	for _, e := range entries {
		if r.d.IsSystemName(e.Name) {
			continue
		}
		r.byName[key(e.Name)] = e
		r.byID[e.ID] = e
		r.entries = append(r.entries, e)
	}
	sortEntries(r.entries)
}

// add appends one entry. Caller must hold r.mu.
func (r *Registry) add(e Entry) {
	r.byName[key(e.Name)] = e
	r.byID[e.ID] = e
	r.entries = append(r.entries, e)
	sortEntries(r.entries)
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if len(entries[i].Name) != len(entries[j].Name) {
			return len(entries[i].Name) > len(entries[j].Name)
		}
		return entries[i].ID < entries[j].ID
	})
}

func notify(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}

func key(name string) string {
	return strings.ToUpper(name)
}

// IsAlias reports whether name has the short alias form.
func IsAlias(name string) bool {
	_, ok := ParseAlias(name)
	return ok
}

// ParseAlias extracts the id from a short alias such as L#12 or "l#12".
func ParseAlias(name string) (int64, bool) {
	name = strings.Trim(name, `"`)
	if len(name) <= len(Prefix) || !strings.EqualFold(name[:len(Prefix)], Prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(name[len(Prefix):], 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
