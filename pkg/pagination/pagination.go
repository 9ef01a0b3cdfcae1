// Package pagination rewrites row-range requests into backend windowing SQL.
package pagination

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/portsql/pkg/core"
)

// DefaultAlias is the synthetic row-number column added by the RowNum style.
// Callers strip it from fetched rows.
const DefaultAlias = "RWN_TO_REMOVE"

// Range restricts query to rows offset+1..offset+limit. A zero offset uses
// the simpler first-N form. An empty alias means DefaultAlias.
func Range(query string, offset, limit int, style core.PaginationStyle, alias string) string {
	if alias == "" {
		alias = DefaultAlias
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	query = strings.TrimRight(strings.TrimSpace(query), ";")

	switch style {
	case core.PaginationOffsetFetch:
		if offset == 0 {
			return fmt.Sprintf("%s FETCH FIRST %d ROWS ONLY", query, limit)
		}
		return fmt.Sprintf("%s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", query, offset, limit)

	case core.PaginationRowNum:
		if offset == 0 {
			return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", query, limit)
		}
		return fmt.Sprintf(
			"SELECT * FROM (SELECT TAB.*, ROWNUM AS %s FROM (%s) TAB WHERE ROWNUM <= %d) WHERE %s > %d",
			alias, query, offset+limit, alias, offset)

	default:
		if offset == 0 {
			return fmt.Sprintf("%s LIMIT %d", query, limit)
		}
		return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, limit, offset)
	}
}

// AddsAlias reports whether style adds the synthetic alias column.
func AddsAlias(style core.PaginationStyle) bool {
	return style == core.PaginationRowNum
}
