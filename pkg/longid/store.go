package longid

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/portsql/pkg/dialect"
)

// Table and Sequence name the persisted long identifier support objects.
const (
	Table    = "LONG_IDENTIFIERS"
	Sequence = "LONG_IDENTIFIERS_SEQ"
)

// Querier is the subset of *sql.DB and *sql.Tx the store needs.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore persists long identifiers in the LONG_IDENTIFIERS table.
type SQLStore struct {
	db Querier
	d  *dialect.Dialect
}

// NewSQLStore creates a store that writes SQL in dialect d.
func NewSQLStore(db Querier, d *dialect.Dialect) *SQLStore {
	return &SQLStore{db: db, d: d}
}

// Load implements Store.
func (s *SQLStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ID, IDENTIFIER FROM "+Table+" ORDER BY LENGTH(IDENTIFIER) DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", Table, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", Table, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Insert implements Store. Ids come from LONG_IDENTIFIERS_SEQ when the
// dialect has sequences, otherwise from the insert itself.
func (s *SQLStore) Insert(ctx context.Context, name string) (int64, error) {
	var id int64

	if next := s.d.NextValueSQL(Sequence); next != "" {
		if err := s.db.QueryRowContext(ctx, next).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to draw from %s: %w", Sequence, err)
		}
		query := fmt.Sprintf("INSERT INTO %s (ID, IDENTIFIER) VALUES (%s, %s)",
			Table, s.d.FormatPlaceholder(1), s.d.FormatPlaceholder(2))
		if _, err := s.db.ExecContext(ctx, query, id, name); err != nil {
			return 0, fmt.Errorf("failed to insert into %s: %w", Table, err)
		}
		return id, nil
	}

	query := fmt.Sprintf("INSERT INTO %s (IDENTIFIER) VALUES (%s) RETURNING ID",
		Table, s.d.FormatPlaceholder(1))
	if err := s.db.QueryRowContext(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", Table, err)
	}
	return id, nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, name string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE UPPER(IDENTIFIER) = UPPER(%s)",
		Table, s.d.FormatPlaceholder(1))
	if _, err := s.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", Table, err)
	}
	return nil
}

// MemoryStore keeps long identifiers in memory. It backs external mode
// dry runs and tests.
type MemoryStore struct {
	entries []Entry
	next    int64
}

// NewMemoryStore creates a store seeded with entries.
func NewMemoryStore(entries ...Entry) *MemoryStore {
	m := &MemoryStore{next: 1}
	for _, e := range entries {
		m.entries = append(m.entries, e)
		if e.ID >= m.next {
			m.next = e.ID + 1
		}
	}
	return m
}

// Load implements Store.
func (m *MemoryStore) Load(context.Context) ([]Entry, error) {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

// Insert implements Store.
func (m *MemoryStore) Insert(_ context.Context, name string) (int64, error) {
	id := m.next
	m.next++
	m.entries = append(m.entries, Entry{ID: id, Name: name})
	return id, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	kept := m.entries[:0]
	for _, e := range m.entries {
		if key(e.Name) != key(name) {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}
