// Package query describes data-changing statements as plain values and
// renders them into portable SQL.
//
// A statement value (Insert, Update, Delete, Merge, Upsert, Truncate) holds
// the table, fields and conditions. Render picks the strategy for the value's
// kind and the target dialect and returns portable SQL with {table}
// placeholders and named binds. The SQL is then run through an
// adapter.Conn, which rewrites it and encodes the arguments, so values above
// the inline limit travel as blob references without any work here.
//
// # Basic Usage
//
//	stmt := query.Merge{
//	    Table:  "users",
//	    Keys:   []query.Assignment{query.Set("uid", 7)},
//	    Fields: []query.Assignment{query.Set("name", "alice")},
//	}
//	n, err := query.Exec(ctx, conn, stmt)
package query
