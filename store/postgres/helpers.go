package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mizzle-dev/worlds/workflow"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// listSuffix renders the cursor, order, and limit clauses for a scan keyed
// on column. The cursor is exclusive in the scan direction. Arguments are
// appended to args and referenced by position.
func listSuffix(column string, opts workflow.ListOpts, args *[]any) string {
	var sb strings.Builder
	desc := opts.Order == workflow.SortDesc

	if opts.Cursor != "" {
		*args = append(*args, opts.Cursor)
		op := ">"
		if desc {
			op = "<"
		}
		fmt.Fprintf(&sb, " AND %s %s $%d", column, op, len(*args))
	}

	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s", column, dir)

	if opts.Limit > 0 {
		*args = append(*args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(*args))
	}
	return sb.String()
}
