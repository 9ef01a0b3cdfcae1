package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/dialect"
)

// Executor runs portable statements. *adapter.Conn implements it.
type Executor interface {
	Dialect() *dialect.Dialect
	Execute(ctx context.Context, query string, args []any, opts ...adapter.ExecOption) (*adapter.Result, error)
	InTx() bool
	BeginTx(ctx context.Context, opts *sql.TxOptions) error
	Commit() error
	Rollback() error
}

// Exec renders s and runs it on e. Statements rendered into several
// statements run in one transaction unless e already has one open.
//
// For an Insert the result is the last generated id when the dialect can
// report it, otherwise the number of inserted rows. For every other kind it
// is the number of affected rows.
func Exec(ctx context.Context, e Executor, s Statement) (int64, error) {
	rendered, err := Render(e.Dialect(), s)
	if err != nil {
		return 0, err
	}

	own := len(rendered) > 1 && !e.InTx()
	if own {
		if err := e.BeginTx(ctx, nil); err != nil {
			return 0, err
		}
	}

	var total, lastID int64
	for _, r := range rendered {
		opts := []adapter.ExecOption{adapter.WithReturn(r.Return)}
		if r.Sequence != "" {
			opts = append(opts, adapter.WithSequence(r.Sequence))
		}
		res, err := e.Execute(ctx, r.SQL, r.Args, opts...)
		if err != nil {
			if own {
				_ = e.Rollback()
			}
			return 0, fmt.Errorf("failed to execute %s: %w", s.Kind(), err)
		}
		switch r.Return {
		case adapter.ReturnInsertID:
			lastID = res.InsertID
			total++
		case adapter.ReturnAffected:
			total += res.RowsAffected
		}
	}

	if own {
		if err := e.Commit(); err != nil {
			return 0, err
		}
	}
	if s.Kind() == KindInsert && lastID != 0 {
		return lastID, nil
	}
	return total, nil
}
