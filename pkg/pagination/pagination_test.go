package pagination

import (
	"testing"

	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestRange(t *testing.T) {
	const q = "SELECT ID FROM T ORDER BY ID"

	tests := []struct {
		name   string
		style  core.PaginationStyle
		offset int
		limit  int
		want   string
	}{
		{
			name:  "offset fetch first page",
			style: core.PaginationOffsetFetch, offset: 0, limit: 10,
			want: q + " FETCH FIRST 10 ROWS ONLY",
		},
		{
			name:  "offset fetch second page",
			style: core.PaginationOffsetFetch, offset: 10, limit: 10,
			want: q + " OFFSET 10 ROWS FETCH NEXT 10 ROWS ONLY",
		},
		{
			name:  "limit offset first page",
			style: core.PaginationLimitOffset, offset: 0, limit: 5,
			want: q + " LIMIT 5",
		},
		{
			name:  "limit offset second page",
			style: core.PaginationLimitOffset, offset: 5, limit: 5,
			want: q + " LIMIT 5 OFFSET 5",
		},
		{
			name:  "rownum first page",
			style: core.PaginationRowNum, offset: 0, limit: 10,
			want: "SELECT * FROM (" + q + ") WHERE ROWNUM <= 10",
		},
		{
			name:  "rownum second page",
			style: core.PaginationRowNum, offset: 10, limit: 10,
			want: "SELECT * FROM (SELECT TAB.*, ROWNUM AS RWN_TO_REMOVE FROM (" + q +
				") TAB WHERE ROWNUM <= 20) WHERE RWN_TO_REMOVE > 10",
		},
		{
			name:  "negative offset",
			style: core.PaginationLimitOffset, offset: -3, limit: 2,
			want: q + " LIMIT 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Range(q, tt.offset, tt.limit, tt.style, ""))
		})
	}
}

func TestRange_TrailingSemicolon(t *testing.T) {
	got := Range("SELECT 1 FROM DUAL; ", 0, 1, core.PaginationOffsetFetch, "")
	assert.Equal(t, "SELECT 1 FROM DUAL FETCH FIRST 1 ROWS ONLY", got)
}

func TestRange_CustomAlias(t *testing.T) {
	got := Range("SELECT 1 FROM DUAL", 2, 3, core.PaginationRowNum, "RN")
	assert.Contains(t, got, "ROWNUM AS RN ")
	assert.Contains(t, got, "WHERE RN > 2")
}

func TestAddsAlias(t *testing.T) {
	assert.True(t, AddsAlias(core.PaginationRowNum))
	assert.False(t, AddsAlias(core.PaginationOffsetFetch))
	assert.False(t, AddsAlias(core.PaginationLimitOffset))
}
