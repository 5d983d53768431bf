package executor

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SQLExecutor executes a single SQL statement against a configured DSN and
// returns the result set (for queries) or rows-affected (for statements).
type SQLExecutor struct{}

// Execute implements Executor. params must carry "dsn" and "statement"
// (strings), and may carry "args" ([]any) bound as positional parameters.
func (e *SQLExecutor) Execute(ctx context.Context, params map[string]any, ctxValues map[string]any) (map[string]any, error) {
	dsn, ok := params["dsn"].(string)
	if !ok || dsn == "" {
		return nil, fmt.Errorf("sql executor: params.dsn is required")
	}
	statement, ok := params["statement"].(string)
	if !ok || statement == "" {
		return nil, fmt.Errorf("sql executor: params.statement is required")
	}
	args, _ := params["args"].([]any)

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql executor: connect: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("sql executor: query: %w", err)
	}
	defer rows.Close()

	var result []map[string]any
	fieldDescs := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("sql executor: read row: %w", err)
		}
		row := make(map[string]any, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql executor: row iteration: %w", err)
	}

	return map[string]any{
		"rows":          result,
		"rows_affected": rows.CommandTag().RowsAffected(),
	}, nil
}
