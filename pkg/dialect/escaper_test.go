package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeName(t *testing.T) {
	d := upperDialect()

	tests := []struct {
		in   string
		want string
	}{
		{"title", "TITLE"},
		{"TITLE", "TITLE"},
		{"MixedCase", `"MixedCase"`},
		{"comment", `"COMMENT"`},
		{"L#12", "L#12"},
		{"with space", `"with space"`},
		{"1col", `"1col"`},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, d.EscapeName(tt.in))
		})
	}
}

func TestEscapeField(t *testing.T) {
	d := upperDialect()

	tests := []struct {
		in   string
		want string
	}{
		{"title", "TITLE"},
		{"n.title", "N.TITLE"},
		{"n.comment", `N."COMMENT"`},
		{"n.Title", `N."Title"`},
		{"-title", "TITLE"},
		{"ti;tle", "TITLE"},
		{".title", "TITLE"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, d.EscapeField(tt.in))
		})
	}
}

func TestEscapeAlias(t *testing.T) {
	d := upperDialect()
	assert.Equal(t, "NODE_TITLE", d.EscapeAlias("node_title"))
	assert.Equal(t, "NT", d.EscapeAlias("n.t"))
	assert.Equal(t, `"SIZE"`, d.EscapeAlias("size"))
}

func TestEscapeTable(t *testing.T) {
	d := upperDialect()
	assert.Equal(t, "SITE1.USERS", d.EscapeTable("site1.users"))
	assert.Equal(t, "USERS", d.EscapeTable("users;"))
	assert.Equal(t, `"Users"`, d.EscapeTable("Users"))
}
