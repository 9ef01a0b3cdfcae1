package adapter

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/leapstack-labs/portsql/pkg/codec"
)

// stmtCache holds prepared statements keyed by the hash of their final text.
type stmtCache struct {
	mu    sync.Mutex
	size  int
	stmts map[string]*sql.Stmt
}

func newStmtCache(size int) *stmtCache {
	if size <= 0 {
		size = DefaultStatementCacheSize
	}
	return &stmtCache{size: size, stmts: make(map[string]*sql.Stmt)}
}

// get returns the cached statement for query, preparing it through h on a miss.
func (c *stmtCache) get(ctx context.Context, h Handle, query string) (*sql.Stmt, error) {
	key := codec.Hash([]byte(query))

	c.mu.Lock()
	defer c.mu.Unlock()
	if stmt, ok := c.stmts[key]; ok {
		return stmt, nil
	}

	stmt, err := h.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(c.stmts) >= c.size {
		_ = c.clearLocked()
	}
	c.stmts[key] = stmt
	return stmt, nil
}

// len returns the number of cached statements.
func (c *stmtCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stmts)
}

// clear closes and drops every cached statement.
func (c *stmtCache) clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearLocked()
}

func (c *stmtCache) clearLocked() error {
	var errs []error
	for key, stmt := range c.stmts {
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.stmts, key)
	}
	return errors.Join(errs...)
}
