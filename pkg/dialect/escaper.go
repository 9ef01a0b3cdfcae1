package dialect

import "strings"

// IsBareIdentifier reports whether name can be written without quotes.
func (d *Dialect) IsBareIdentifier(name string) bool {
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !d.IsIdentifierChar(name[i]) {
			return false
		}
	}
	return true
}

// EscapeName returns name in the form the backend resolves to the same object:
// mixed-case and non-bare names are quoted verbatim, reserved words are quoted
// in the dialect's case and everything else is written bare.
func (d *Dialect) EscapeName(name string) string {
	switch {
	case name == "":
		return name
	case !d.IsBareIdentifier(name), isMixedCase(name):
		return d.QuoteIdentifier(name)
	case d.IsReservedWord(name):
		return d.QuoteIdentifier(d.NormalizeName(name))
	}
	return d.NormalizeName(name)
}

// EscapeField escapes a column reference, optionally qualified by a table
// alias ("n.title"). Characters that cannot appear in a field name are dropped.
func (d *Dialect) EscapeField(field string) string {
	escaped := keep(field, func(ch byte) bool { return isAlnum(ch) || ch == '.' })
	escaped = strings.TrimLeft(escaped, ".")
	if escaped == "" {
		return ""
	}
	if table, column, ok := strings.Cut(escaped, "."); ok && table != "" && column != "" {
		return d.EscapeTable(table) + "." + d.EscapeAlias(column)
	}
	return d.EscapeName(strings.Trim(escaped, "."))
}

// EscapeAlias escapes a column or table alias.
func (d *Dialect) EscapeAlias(alias string) string {
	return d.EscapeName(keep(alias, isAlnum))
}

// EscapeTable escapes a possibly schema-qualified table name.
func (d *Dialect) EscapeTable(table string) string {
	cleaned := keep(table, func(ch byte) bool { return isAlnum(ch) || ch == '.' })
	parts := strings.Split(cleaned, ".")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, d.EscapeName(p))
		}
	}
	return strings.Join(out, ".")
}

func isAlnum(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

func keep(s string, ok func(byte) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if ok(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isMixedCase(s string) bool {
	var upper, lower bool
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch >= 'A' && ch <= 'Z':
			upper = true
		case ch >= 'a' && ch <= 'z':
			lower = true
		}
	}
	return upper && lower
}
