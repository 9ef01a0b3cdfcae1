package adapter

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/portsql/pkg/codec"
)

// Result is the outcome of one Execute call. Which field is set depends on
// the return mode.
type Result struct {
	Rows         *Rows
	RowsAffected int64
	InsertID     int64
	// Err holds the classified failure when the call ran WithoutErrors.
	Err error
}

// Close closes the cursor, if any.
func (r *Result) Close() error {
	if r == nil || r.Rows == nil {
		return nil
	}
	return r.Rows.Close()
}

// RowDecoder reverses the value encoding of fetched rows.
type RowDecoder interface {
	DecodeValue(ctx context.Context, v any) (any, error)
	DecodeColumns(ctx context.Context, cols []string) []codec.Column
}

// Rows is a cursor over decoded rows. The pagination alias column is never
// visible and long identifier alias columns carry their registered names.
type Rows struct {
	ctx  context.Context
	rows *sql.Rows
	dec  RowDecoder

	cols    []codec.Column
	names   []string
	pending [][]any // read ahead when buffered

	current []any
	err     error
	closed  bool
}

func newRows(ctx context.Context, rows *sql.Rows, dec RowDecoder, buffer bool) (*Rows, error) {
	raw, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	r := &Rows{ctx: ctx, rows: rows, dec: dec, cols: dec.DecodeColumns(ctx, raw)}
	for _, col := range r.cols {
		if !col.Drop {
			r.names = append(r.names, col.Name)
		}
	}

	if !buffer {
		return r, nil
	}
	r.rows = nil
	for rows.Next() {
		values, err := scanRaw(rows, len(raw))
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		r.pending = append(r.pending, values)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close rows: %w", err)
	}
	return r, nil
}

func scanRaw(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return values, nil
}

// Columns returns the visible column names.
func (r *Rows) Columns() []string {
	return r.names
}

// Next advances to the next row and decodes it.
func (r *Rows) Next() bool {
	if r.closed || r.err != nil {
		return false
	}

	var raw []any
	if r.rows != nil {
		if !r.rows.Next() {
			r.err = r.rows.Err()
			_ = r.Close()
			return false
		}
		raw, r.err = scanRaw(r.rows, len(r.cols))
	} else {
		if len(r.pending) == 0 {
			_ = r.Close()
			return false
		}
		raw, r.pending = r.pending[0], r.pending[1:]
	}
	if r.err != nil {
		return false
	}

	r.current = r.current[:0]
	for i, col := range r.cols {
		if col.Drop {
			continue
		}
		v, err := r.dec.DecodeValue(r.ctx, raw[i])
		if err != nil {
			r.err = fmt.Errorf("failed to decode column %s: %w", col.Name, err)
			return false
		}
		r.current = append(r.current, v)
	}
	return true
}

// Values returns the decoded values of the current row in column order.
func (r *Rows) Values() []any {
	out := make([]any, len(r.current))
	copy(out, r.current)
	return out
}

// Row returns the current row keyed by column name.
func (r *Rows) Row() codec.Row {
	row := make(codec.Row, len(r.names))
	for i, name := range r.names {
		if i < len(r.current) {
			row[name] = r.current[i]
		}
	}
	return row
}

// Value returns the value of the named column in the current row.
func (r *Rows) Value(name string) (any, bool) {
	for i, n := range r.names {
		if n == name && i < len(r.current) {
			return r.current[i], true
		}
	}
	return nil, false
}

// Err returns the error, if any, that ended iteration.
func (r *Rows) Err() error {
	return r.err
}

// Close releases the cursor. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.pending = nil
	if r.rows != nil {
		return r.rows.Close()
	}
	return nil
}

// All reads every remaining row and closes the cursor.
func (r *Rows) All() ([]codec.Row, error) {
	defer func() { _ = r.Close() }()
	var out []codec.Row
	for r.Next() {
		out = append(out, r.Row())
	}
	return out, r.Err()
}
