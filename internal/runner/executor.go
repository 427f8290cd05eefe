package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/biexec/core/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor runs a run's already-validated SQL against a data source pool
// and materializes the result with a bounded row count.
type Executor struct {
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{logger: logger.With("component", "executor")}
}

type ExecutionResult struct {
	Columns   []domain.ColumnDef
	Rows      [][]any
	RowCount  int
	ByteCount int
	Truncated bool
	Duration  time.Duration
	Err       error
}

// Run executes run.ExecutedSQL against pool. The SQL carries positional
// placeholders ($1..$N) and paramValues are passed as the matching
// arguments through the driver's extended query protocol, so values are
// never interpolated into the SQL string (§3).
func (e *Executor) Run(ctx context.Context, pool *pgxpool.Pool, run *domain.Run, paramValues []any) ExecutionResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(run.TimeoutSeconds)*time.Second)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return ExecutionResult{Duration: time.Since(start), Err: fmt.Errorf("acquire connection: %w", err)}
	}
	defer conn.Release()

	statementTimeoutMS := run.TimeoutSeconds * 1000
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", statementTimeoutMS)); err != nil {
		return ExecutionResult{Duration: time.Since(start), Err: fmt.Errorf("set statement timeout: %w", err)}
	}

	// Request one row beyond the limit so a result that exactly fills
	// MaxRows can be told apart from one that overflows it — the extra row
	// tells us whether to truncate.
	bounded := fmt.Sprintf("SELECT * FROM (%s) AS bounded_subquery LIMIT %d", run.ExecutedSQL, run.MaxRows+1)

	rows, err := conn.Query(ctx, bounded, paramValues...)
	if err != nil {
		return ExecutionResult{Duration: time.Since(start), Err: fmt.Errorf("execute query: %w", err)}
	}
	defer rows.Close()

	result, err := materialize(rows, run.MaxRows)
	if err != nil {
		return ExecutionResult{Duration: time.Since(start), Err: err}
	}
	result.Duration = time.Since(start)
	return result
}

func materialize(rows pgx.Rows, maxRows int) (ExecutionResult, error) {
	fieldDescs := rows.FieldDescriptions()
	columns := make([]domain.ColumnDef, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = domain.ColumnDef{Name: fd.Name, DataType: pgTypeName(fd.DataTypeOID)}
	}

	var out [][]any
	byteCount := 0
	truncated := false

	for rows.Next() {
		if len(out) == maxRows {
			truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return ExecutionResult{}, fmt.Errorf("read row values: %w", err)
		}
		byteCount += estimateRowBytes(vals)
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return ExecutionResult{}, fmt.Errorf("iterate rows: %w", err)
	}

	return ExecutionResult{
		Columns:   columns,
		Rows:      out,
		RowCount:  len(out),
		ByteCount: byteCount,
		Truncated: truncated,
	}, nil
}

func estimateRowBytes(vals []any) int {
	n := 0
	for _, v := range vals {
		switch t := v.(type) {
		case string:
			n += len(t)
		case []byte:
			n += len(t)
		default:
			n += 8
		}
	}
	return n
}

// pgTypeName maps common OIDs to display names; unrecognized OIDs fall
// back to a numeric label rather than failing the run over cosmetics.
func pgTypeName(oid uint32) string {
	switch oid {
	case pgtypeBool:
		return "boolean"
	case pgtypeInt4:
		return "integer"
	case pgtypeInt8:
		return "bigint"
	case pgtypeFloat8:
		return "double precision"
	case pgtypeText, pgtypeVarchar:
		return "text"
	case pgtypeTimestamp:
		return "timestamp"
	case pgtypeTimestamptz:
		return "timestamptz"
	case pgtypeDate:
		return "date"
	case pgtypeNumeric:
		return "numeric"
	case pgtypeJSONB:
		return "jsonb"
	default:
		return fmt.Sprintf("oid:%d", oid)
	}
}

// Hand-maintained subset of pgtype OIDs, avoiding a dependency on the
// pgtype registry just to print a friendly type name.
const (
	pgtypeBool        = 16
	pgtypeInt8        = 20
	pgtypeInt4        = 23
	pgtypeText        = 25
	pgtypeJSONB       = 3802
	pgtypeFloat8      = 701
	pgtypeVarchar     = 1043
	pgtypeDate        = 1082
	pgtypeTimestamp   = 1114
	pgtypeTimestamptz = 1184
	pgtypeNumeric     = 1700
)
