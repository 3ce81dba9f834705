package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertSQL builds an INSERT ... ON CONFLICT (keys) DO UPDATE SET statement
// for a single row. All non-key columns are overwritten on conflict, which
// matches the store's one-current-row-per-key model.
func UpsertSQL(table string, columns, conflictKeys []string) string {
	conflictSet := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		conflictSet[k] = true
	}

	placeholders := make([]string, len(columns))
	var setClauses []string
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if !conflictSet[col] {
			q := pgx.Identifier{col}.Sanitize()
			setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		sanitizeTable(table),
		quoteAndJoin(columns),
		strings.Join(placeholders, ", "),
		quoteAndJoin(conflictKeys),
		strings.Join(setClauses, ", "),
	)
}

// Upsert executes a single-row upsert built by UpsertSQL.
func Upsert(ctx context.Context, pool Pool, table string, columns, conflictKeys []string, values []any) error {
	if len(values) != len(columns) {
		return eris.Errorf("db: upsert %s: %d values for %d columns", table, len(values), len(columns))
	}
	if len(conflictKeys) == 0 {
		return eris.Errorf("db: upsert %s: no conflict keys specified", table)
	}

	if _, err := pool.Exec(ctx, UpsertSQL(table, columns, conflictKeys), values...); err != nil {
		return eris.Wrapf(err, "db: upsert into %s", table)
	}
	return nil
}

// sanitizeTable handles schema-qualified table names like "facts.fund_facts_llm".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
