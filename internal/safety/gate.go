// Package safety implements the SQL safety gate (spec §4.2): a
// parser-based validator that rejects anything that is not a read-only
// SELECT, or that reaches for a function capable of bypassing
// tenant/resource isolation.
package safety

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// RejectionKind is a machine-readable classification, safe to return to
// the caller (it never leaks parser internals or remote error text).
type RejectionKind string

const (
	KindNonSelectStatement  RejectionKind = "non_select_statement"
	KindMultiStatement      RejectionKind = "multi_statement"
	KindDataModification    RejectionKind = "data_modification"
	KindSchemaModification  RejectionKind = "schema_modification"
	KindDangerousFunction   RejectionKind = "dangerous_function"
	KindTooLong             RejectionKind = "too_long"
	KindUnparseable         RejectionKind = "unparseable"
)

const MaxSQLBytes = 100_000

// Rejection carries a classification plus a short, client-safe message.
type Rejection struct {
	Kind    RejectionKind
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// dangerousFunctions is the deny-list from spec §4.2 item 4: filesystem
// access, program execution, foreign-connection, administrative,
// large-object I/O, and extension/role management functions.
var dangerousFunctions = map[string]struct{}{
	"pg_read_file":               {},
	"pg_read_binary_file":        {},
	"pg_ls_dir":                  {},
	"pg_ls_logdir":               {},
	"pg_ls_waldir":               {},
	"pg_stat_file":               {},
	"pg_execute_server_program":  {},
	"dblink":                     {},
	"dblink_connect":             {},
	"dblink_exec":                {},
	"pg_terminate_backend":       {},
	"pg_cancel_backend":          {},
	"pg_reload_conf":             {},
	"pg_rotate_logfile":          {},
	"lo_import":                  {},
	"lo_export":                  {},
	"lo_read":                    {},
	"lo_write":                   {},
	"pg_read_server_files":       {},
	"pg_write_server_files":      {},
	"pg_execute_server_files":    {},
}

// Validate parses sql and rejects anything unsafe to run against a live
// external data source. It never executes or inspects the schema — only
// syntax.
func Validate(sql string) *Rejection {
	if len(sql) > MaxSQLBytes {
		return &Rejection{Kind: KindTooLong, Message: "query text exceeds the maximum allowed length"}
	}

	pieces, err := sqlparser.SplitStatementToPieces(sql)
	if err != nil {
		return &Rejection{Kind: KindUnparseable, Message: "sql could not be parsed"}
	}
	nonEmpty := 0
	for _, p := range pieces {
		if strings.TrimSpace(strings.TrimRight(strings.TrimSpace(p), ";")) != "" {
			nonEmpty++
		}
	}
	if nonEmpty > 1 {
		return &Rejection{Kind: KindMultiStatement, Message: "multi-statement batches are not allowed"}
	}

	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return &Rejection{Kind: KindUnparseable, Message: "sql could not be parsed"}
	}

	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union, *sqlparser.ParenSelect:
		// continue below — a read-only top-level statement.
	case *sqlparser.Insert, *sqlparser.Update, *sqlparser.Delete:
		return &Rejection{Kind: KindDataModification, Message: "data-modification statements are not allowed"}
	case *sqlparser.DDL:
		return &Rejection{Kind: KindSchemaModification, Message: "schema-modification statements are not allowed"}
	default:
		return &Rejection{Kind: KindNonSelectStatement, Message: "only SELECT statements are allowed"}
	}

	var rejection *Rejection
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		if rejection != nil {
			return false, nil
		}
		switch n := node.(type) {
		case *sqlparser.Insert, *sqlparser.Update, *sqlparser.Delete:
			rejection = &Rejection{Kind: KindDataModification, Message: "data-modification statements are not allowed in a subquery or CTE"}
			return false, nil
		case *sqlparser.DDL:
			rejection = &Rejection{Kind: KindSchemaModification, Message: "schema-modification statements are not allowed in a subquery or CTE"}
			return false, nil
		case *sqlparser.FuncExpr:
			name := strings.ToLower(n.Name.String())
			if _, denied := dangerousFunctions[name]; denied {
				rejection = &Rejection{Kind: KindDangerousFunction, Message: fmt.Sprintf("function %q is not permitted", name)}
				return false, nil
			}
		}
		return true, nil
	}, stmt)

	return rejection
}

// StripTrailingSemicolon removes one trailing semicolon (and surrounding
// whitespace) so the runner can safely wrap validated SQL in an outer
// bounded-row SELECT (spec §4.2).
func StripTrailingSemicolon(sql string) string {
	s := strings.TrimRight(sql, " \t\n\r")
	return strings.TrimSuffix(s, ";")
}
