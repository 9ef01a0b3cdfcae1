package oracle

import (
	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/dialect"
)

func init() {
	dialect.Register(Oracle)
	dialect.Register(Legacy)
}

// oracleReservedWords must be quoted when used as identifiers.
var oracleReservedWords = []string{
	"ACCESS", "ADD", "ALL", "ALTER", "AND", "ANY", "AS", "ASC", "AUDIT",
	"BETWEEN", "BY", "CHAR", "CHECK", "CLUSTER", "COLUMN", "COLUMN_VALUE",
	"COMMENT", "COMPRESS", "CONNECT", "CREATE", "CURRENT", "DATE", "DECIMAL",
	"DEFAULT", "DELETE", "DESC", "DISTINCT", "DROP", "ELSE", "EXCLUSIVE",
	"EXISTS", "FILE", "FLOAT", "FOR", "FROM", "GRANT", "GROUP", "HAVING",
	"IDENTIFIED", "IMMEDIATE", "IN", "INCREMENT", "INDEX", "INITIAL", "INSERT",
	"INTEGER", "INTERSECT", "INTO", "IS", "LEVEL", "LIKE", "LOCK", "LONG",
	"MAXEXTENTS", "MINUS", "MLSLABEL", "MODE", "MODIFY", "NESTED_TABLE_ID",
	"NOAUDIT", "NOCOMPRESS", "NOT", "NOWAIT", "NULL", "NUMBER", "OF",
	"OFFLINE", "ON", "ONLINE", "OPTION", "OR", "ORDER", "PCTFREE", "PRIOR",
	"PUBLIC", "RAW", "RENAME", "RESOURCE", "REVOKE", "ROW", "ROWID", "ROWNUM",
	"ROWS", "SELECT", "SESSION", "SET", "SHARE", "SID", "SIZE", "SMALLINT",
	"START", "SUCCESSFUL", "SYNONYM", "SYSDATE", "TABLE", "THEN", "TO",
	"TRIGGER", "UID", "UNION", "UNIQUE", "UPDATE", "USER", "VALIDATE",
	"VALUES", "VARCHAR", "VARCHAR2", "VIEW", "WHENEVER", "WHERE", "WITH",
}

// Bind names Oracle rejects as placeholders.
var oracleBindEscapes = []string{
	"uid", "session", "file", "access", "mode", "comment", "desc", "size",
	"start", "end", "increment",
}

// Lower-case column names that collide with Oracle keywords.
var oracleWordEscapes = []string{
	"uid", "session", "file", "access", "mode", "comment", "desc", "size", "name",
}

func build(cfg *core.DialectConfig) *dialect.Dialect {
	return dialect.New(cfg).
		IdentifierChars("$#").
		RegexpFunction("REGEXP_LIKE").
		EmptyBlob("EMPTY_BLOB()").
		WithReservedWords(oracleReservedWords...).
		BindEscapes(oracleBindEscapes...).
		WordEscapes(oracleWordEscapes...).
		DMLWordEscapes("date").
		SystemPrefixes("SYS_", "BIN$").
		// Empty concatenations left behind by bind expansion
		Compatibility("''||", "").
		Compatibility("||''", "").
		// IN () matches nothing anyway
		Compatibility("IN ()", "= NULL").
		Compatibility("(FALSE)", "(1=0)").
		Compatibility("POW(", "POWER(").
		Compatibility(") AS count_alias", ") count_alias").
		Compatibility(`ESCAPE '\\'`, `ESCAPE '\'`).
		Compatibility("SELECT CONNECTION_ID() FROM DUAL", "SELECT DISTINCT sid FROM v$mystat").
		Compatibility("SHOW PROCESSLIST", "SELECT DISTINCT stat.sid, sess.process, sess.status, sess.username, sess.schemaname, sql.sql_text "+
			"FROM v$mystat stat, v$session sess, v$sql sql "+
			"WHERE sql.sql_id(+) = sess.sql_id AND sess.status = 'ACTIVE' AND sess.type = 'USER'").
		Compatibility("SHOW TABLES", "SELECT * FROM user_tables").
		ErrorMarkers(core.ErrorIdentifierTooLong, "ORA-00972").
		ErrorMarkers(core.ErrorConstraintViolation, "ORA-00001", "ORA-02291", "ORA-02292").
		ErrorMarkers(core.ErrorIncompatibleSyntax, "ORA-00900", "ORA-00907", "ORA-00933", "ORA-00936").
		Sequences("SEQ_%s_%s", "SELECT %s.NEXTVAL FROM DUAL", "SELECT %s.CURRVAL FROM DUAL").
		TemporaryTables("CREATE GLOBAL TEMPORARY TABLE %s ON COMMIT PRESERVE ROWS AS %s", true).
		Build()
}

// Oracle is the Oracle 12c+ dialect.
var Oracle = build(Config)

// Legacy is the dialect for Oracle releases before 12c.
var Legacy = build(LegacyConfig)
