package query

import (
	"fmt"
	"strings"
)

// Kind identifies the statement strategy.
type Kind int

// Statement kinds.
const (
	KindInsert Kind = iota
	KindUpdate
	KindDelete
	KindMerge
	KindUpsert
	KindTruncate
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindMerge:
		return "merge"
	case KindUpsert:
		return "upsert"
	case KindTruncate:
		return "truncate"
	default:
		return "unknown"
	}
}

// Statement is a statement shape. The concrete types are Insert, Update,
// Delete, Merge, Upsert and Truncate.
type Statement interface {
	Kind() Kind
}

// Assignment gives a field a bound value or, when Expr is set, an SQL
// expression with its own named arguments.
type Assignment struct {
	Field string
	Value any
	Expr  string
	Args  []any
}

// Set assigns a bound value to field.
func Set(field string, value any) Assignment {
	return Assignment{Field: field, Value: value}
}

// Expression assigns an SQL expression to field, e.g. Expression("hits", "hits + :inc", sql.Named("inc", 1)).
func Expression(field, expr string, args ...any) Assignment {
	return Assignment{Field: field, Expr: expr, Args: args}
}

// Insert adds rows to a table.
type Insert struct {
	Table  string
	Fields []string
	Rows   [][]any
	// Defaults are fields filled with the column default, placed first.
	Defaults []string
	// From, when set, inserts the result of a portable query instead of Rows.
	From     string
	FromArgs []any
	// Sequence names the sequence behind the generated id. Without it
	// dialects that need one return no insert id.
	Sequence string
}

// Kind implements Statement.
func (Insert) Kind() Kind { return KindInsert }

// Update changes the rows matching Where.
type Update struct {
	Table string
	Set   []Assignment
	Where []Condition
}

// Kind implements Statement.
func (Update) Kind() Kind { return KindUpdate }

// Delete removes the rows matching Where.
type Delete struct {
	Table string
	Where []Condition
}

// Kind implements Statement.
func (Delete) Kind() Kind { return KindDelete }

// Merge updates the row identified by Keys or inserts it when missing.
// Fields are written on insert. Update overrides the fields written when the
// row exists; when nil the Fields are used. Expression assignments in Update
// win over plain ones for the same field.
type Merge struct {
	Table  string
	Keys   []Assignment
	Fields []Assignment
	Update []Assignment
}

// Kind implements Statement.
func (Merge) Kind() Kind { return KindMerge }

// Upsert inserts rows, updating the existing row when Key matches.
// Each row runs as one Merge.
type Upsert struct {
	Table  string
	Key    string
	Fields []string
	Rows   [][]any
}

// Kind implements Statement.
func (Upsert) Kind() Kind { return KindUpsert }

// Merges returns one Merge per row.
func (u Upsert) Merges() ([]Merge, error) {
	keyIdx := -1
	for i, f := range u.Fields {
		if strings.EqualFold(f, u.Key) {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return nil, fmt.Errorf("%w: upsert key %q is not a field", ErrInvalidStatement, u.Key)
	}

	merges := make([]Merge, 0, len(u.Rows))
	for _, row := range u.Rows {
		if len(row) != len(u.Fields) {
			return nil, fmt.Errorf("%w: row has %d values for %d fields", ErrInvalidStatement, len(row), len(u.Fields))
		}
		m := Merge{Table: u.Table, Keys: []Assignment{Set(u.Fields[keyIdx], row[keyIdx])}}
		for i, f := range u.Fields {
			if i != keyIdx {
				m.Fields = append(m.Fields, Set(f, row[i]))
			}
		}
		merges = append(merges, m)
	}
	return merges, nil
}

// Truncate removes every row of a table.
type Truncate struct {
	Table string
}

// Kind implements Statement.
func (Truncate) Kind() Kind { return KindTruncate }
