package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// QueryStats holds statement statistics for one connection.
type QueryStats struct {
	// TotalQueries counts statements that returned rows.
	TotalQueries atomic.Int64
	// TotalExecs counts statements that did not.
	TotalExecs atomic.Int64
	// TotalDuration is the time spent in the backend, in nanoseconds.
	TotalDuration atomic.Int64
	// SlowQueries counts statements above the slow threshold.
	SlowQueries atomic.Int64
	// Retries counts self-healing retries.
	Retries atomic.Int64
	// Errors counts statements that failed after all retries.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Retries:       s.Retries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Retries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	TotalQueries  int64         `json:"total_queries" yaml:"total_queries"`
	TotalExecs    int64         `json:"total_execs" yaml:"total_execs"`
	TotalDuration time.Duration `json:"total_duration" yaml:"total_duration"`
	SlowQueries   int64         `json:"slow_queries" yaml:"slow_queries"`
	Retries       int64         `json:"retries" yaml:"retries"`
	Errors        int64         `json:"errors" yaml:"errors"`
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a one-line summary.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d retries=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Retries, s.Errors,
	)
}

// SlowQueryHook is called when a statement exceeds the slow threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// LogSlowQueries returns a hook that logs slow statements at warn level.
func LogSlowQueries(logger *slog.Logger) SlowQueryHook {
	return func(_ context.Context, query string, args []any, duration time.Duration) {
		logger.Warn("slow query detected", "duration", duration, "query", query, "args", args)
	}
}

func (c *Conn) record(ctx context.Context, query string, args []any, start time.Time, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		c.stats.TotalQueries.Add(1)
	} else {
		c.stats.TotalExecs.Add(1)
	}
	c.stats.TotalDuration.Add(int64(duration))

	if c.slowThreshold > 0 && duration > c.slowThreshold {
		c.stats.SlowQueries.Add(1)
		if c.slowHook != nil {
			c.slowHook(ctx, query, args, duration)
		}
	}
}
