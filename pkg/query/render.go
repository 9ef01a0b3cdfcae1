package query

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/dialect"
)

// ErrInvalidStatement is returned for statements that cannot be rendered.
var ErrInvalidStatement = errors.New("invalid statement")

// Rendered is one portable statement ready for adapter.Conn.Execute.
type Rendered struct {
	SQL      string
	Args     []any
	Return   adapter.ReturnMode
	Sequence string
}

type strategy func(d *dialect.Dialect, s Statement) ([]Rendered, error)

var strategies = map[Kind]strategy{
	KindInsert:   renderInsert,
	KindUpdate:   renderUpdate,
	KindDelete:   renderDelete,
	KindMerge:    renderMerge,
	KindUpsert:   renderUpsert,
	KindTruncate: renderTruncate,
}

// Render renders s for dialect d. Inserts and upserts produce one statement
// per row.
func Render(d *dialect.Dialect, s Statement) ([]Rendered, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil statement", ErrInvalidStatement)
	}
	fn, ok := strategies[s.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %s", ErrInvalidStatement, s.Kind())
	}
	return fn(d, s)
}

// binder hands out named binds with a common prefix.
type binder struct {
	prefix string
	n      int
	args   []any
}

func (b *binder) bind(v any) string {
	name := b.prefix + strconv.Itoa(b.n)
	b.n++
	b.args = append(b.args, sql.Named(name, v))
	return ":" + name
}

// assign renders a value or expression and collects its arguments.
func (b *binder) assign(a Assignment) string {
	if a.Expr == "" {
		return b.bind(a.Value)
	}
	b.args = append(b.args, a.Args...)
	return a.Expr
}

func table(name string) string {
	return "{" + name + "}"
}

func renderInsert(d *dialect.Dialect, s Statement) ([]Rendered, error) {
	ins := s.(Insert)
	if ins.Table == "" {
		return nil, fmt.Errorf("%w: insert without table", ErrInvalidStatement)
	}

	if ins.From != "" {
		fields := append(append([]string{}, ins.Defaults...), ins.Fields...)
		q := "INSERT INTO " + table(ins.Table) + " "
		if len(fields) > 0 {
			q += "(" + strings.Join(fields, ", ") + ") "
		}
		return []Rendered{{SQL: q + ins.From, Args: ins.FromArgs, Return: adapter.ReturnAffected}}, nil
	}

	mode, seq := adapter.ReturnInsertID, ins.Sequence
	if seq == "" && d.RequiresSequence() {
		mode = adapter.ReturnAffected
	}

	if len(ins.Rows) == 0 {
		if len(ins.Defaults) == 0 {
			return nil, fmt.Errorf("%w: insert without values", ErrInvalidStatement)
		}
		// MERGE style backends (Oracle) have no DEFAULT VALUES form.
		q := "INSERT INTO " + table(ins.Table) + " DEFAULT VALUES"
		if d.Upsert == core.UpsertMerge {
			defaults := make([]string, len(ins.Defaults))
			for i := range defaults {
				defaults[i] = "DEFAULT"
			}
			q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table(ins.Table),
				strings.Join(ins.Defaults, ", "), strings.Join(defaults, ", "))
		}
		return []Rendered{{SQL: q, Return: mode, Sequence: seq}}, nil
	}

	out := make([]Rendered, 0, len(ins.Rows))
	for _, row := range ins.Rows {
		if len(row) != len(ins.Fields) {
			return nil, fmt.Errorf("%w: row has %d values for %d fields", ErrInvalidStatement, len(row), len(ins.Fields))
		}
		b := &binder{prefix: "ins_"}
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = b.bind(v)
		}
		// Fields left out of the column list take their default.
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table(ins.Table),
			strings.Join(ins.Fields, ", "), strings.Join(values, ", "))
		out = append(out, Rendered{SQL: q, Args: b.args, Return: mode, Sequence: seq})
	}
	return out, nil
}

func renderUpdate(d *dialect.Dialect, s Statement) ([]Rendered, error) {
	upd := s.(Update)
	if upd.Table == "" || len(upd.Set) == 0 {
		return nil, fmt.Errorf("%w: update needs a table and fields", ErrInvalidStatement)
	}

	b := &binder{prefix: "upd_"}
	q := "UPDATE " + table(upd.Table) + " SET " + setList(b, dedupe(upd.Set))

	where, args := renderWhere(d, upd.Where)
	b.args = append(b.args, args...)
	return []Rendered{{SQL: q + where, Args: b.args, Return: adapter.ReturnAffected}}, nil
}

func renderDelete(d *dialect.Dialect, s Statement) ([]Rendered, error) {
	del := s.(Delete)
	if del.Table == "" {
		return nil, fmt.Errorf("%w: delete without table", ErrInvalidStatement)
	}
	where, args := renderWhere(d, del.Where)
	return []Rendered{{SQL: "DELETE FROM " + table(del.Table) + where, Args: args, Return: adapter.ReturnAffected}}, nil
}

func renderTruncate(_ *dialect.Dialect, s Statement) ([]Rendered, error) {
	t := s.(Truncate)
	if t.Table == "" {
		return nil, fmt.Errorf("%w: truncate without table", ErrInvalidStatement)
	}
	return []Rendered{{SQL: "TRUNCATE TABLE " + table(t.Table), Return: adapter.ReturnNull}}, nil
}

func renderUpsert(d *dialect.Dialect, s Statement) ([]Rendered, error) {
	merges, err := s.(Upsert).Merges()
	if err != nil {
		return nil, err
	}
	out := make([]Rendered, 0, len(merges))
	for _, m := range merges {
		r, err := renderMerge(d, m)
		if err != nil {
			return nil, err
		}
		out = append(out, r...)
	}
	return out, nil
}

func renderMerge(d *dialect.Dialect, s Statement) ([]Rendered, error) {
	m := s.(Merge)
	if m.Table == "" || len(m.Keys) == 0 {
		return nil, fmt.Errorf("%w: merge needs a table and keys", ErrInvalidStatement)
	}

	isKey := make(map[string]bool, len(m.Keys))
	for _, k := range m.Keys {
		isKey[strings.ToLower(k.Field)] = true
	}
	update := m.Update
	if update == nil {
		update = m.Fields
	}
	var set []Assignment
	for _, a := range dedupe(update) {
		if !isKey[strings.ToLower(a.Field)] {
			set = append(set, a)
		}
	}
	insert := append([]Assignment{}, m.Keys...)
	for _, a := range m.Fields {
		if !isKey[strings.ToLower(a.Field)] {
			insert = append(insert, a)
		}
	}

	if d.Upsert == core.UpsertMerge {
		return []Rendered{mergeInto(d, m, set, insert)}, nil
	}
	return []Rendered{onConflict(m, set, insert)}, nil
}

// mergeInto writes MERGE INTO ... USING the single-row table.
func mergeInto(d *dialect.Dialect, m Merge, set, insert []Assignment) Rendered {
	b := &binder{prefix: "mrg_"}

	on := make([]string, len(m.Keys))
	for i, k := range m.Keys {
		on[i] = k.Field + " = " + b.assign(k)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "MERGE INTO %s USING %s ON (%s)", table(m.Table), d.DualTable, strings.Join(on, " AND "))
	if len(set) > 0 {
		sb.WriteString(" WHEN MATCHED THEN UPDATE SET ")
		sb.WriteString(setList(b, set))
	}
	fields, values := insertList(b, insert)
	fmt.Fprintf(&sb, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)", fields, values)

	return Rendered{SQL: sb.String(), Args: b.args, Return: adapter.ReturnAffected}
}

// onConflict writes INSERT ... ON CONFLICT (keys) DO UPDATE. The keys need a
// unique constraint.
func onConflict(m Merge, set, insert []Assignment) Rendered {
	b := &binder{prefix: "mrg_"}

	fields, values := insertList(b, insert)
	keys := make([]string, len(m.Keys))
	for i, k := range m.Keys {
		keys[i] = k.Field
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO ",
		table(m.Table), fields, values, strings.Join(keys, ", "))
	if len(set) == 0 {
		q += "NOTHING"
	} else {
		q += "UPDATE SET " + setList(b, set)
	}
	return Rendered{SQL: q, Args: b.args, Return: adapter.ReturnAffected}
}

func setList(b *binder, set []Assignment) string {
	parts := make([]string, len(set))
	for i, a := range set {
		parts[i] = a.Field + " = " + b.assign(a)
	}
	return strings.Join(parts, ", ")
}

func insertList(b *binder, insert []Assignment) (string, string) {
	fields := make([]string, len(insert))
	values := make([]string, len(insert))
	for i, a := range insert {
		fields[i] = a.Field
		values[i] = b.assign(a)
	}
	return strings.Join(fields, ", "), strings.Join(values, ", ")
}

// dedupe keeps one assignment per field. Expressions win over values; among
// equals the last one wins. Order follows first appearance.
func dedupe(set []Assignment) []Assignment {
	index := make(map[string]int, len(set))
	var out []Assignment
	for _, a := range set {
		key := strings.ToLower(a.Field)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, a)
			continue
		}
		if a.Expr != "" || out[i].Expr == "" {
			out[i] = a
		}
	}
	return out
}

// renderWhere renders conditions joined by AND, splitting IN lists above
// the dialect limit.
func renderWhere(d *dialect.Dialect, conds []Condition) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	b := &binder{prefix: "cnd_"}
	parts := make([]string, 0, len(conds))
	for _, c := range SplitIn(conds, InMaxSize(d)) {
		parts = append(parts, renderCondition(b, c))
	}
	return " WHERE " + strings.Join(parts, " AND "), b.args
}

func renderCondition(b *binder, c Condition) string {
	if c.Group != nil {
		conj := strings.ToUpper(c.Group.Conjunction)
		if conj == "" {
			conj = "AND"
		}
		parts := make([]string, len(c.Group.Conditions))
		for i, child := range c.Group.Conditions {
			parts[i] = renderCondition(b, child)
		}
		return "(" + strings.Join(parts, " "+conj+" ") + ")"
	}

	op := strings.ToUpper(c.Op)
	switch op {
	case "":
		op = OpEq
	case OpIsNull, OpIsNotNull:
		return c.Field + " " + op
	case OpIn, OpNotIn:
		items, ok := sliceValues(c.Value)
		if !ok {
			items = []any{c.Value}
		}
		return c.Field + " " + op + " (" + b.bind(items) + ")"
	}
	if c.Value == nil && op == OpEq {
		return c.Field + " IS NULL"
	}
	return c.Field + " " + op + " " + b.bind(c.Value)
}
