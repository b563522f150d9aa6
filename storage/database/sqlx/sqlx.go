package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
)

// selectContext runs q on exec and scans every row into dest, a pointer to a slice of structs.
func selectContext(ctx context.Context, exec core.DBExecutor, dest interface{}, q string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return sqlx.StructScan(rows, dest)
}

// selectIn expands the slice arguments of a "?" bound query before running it.
func selectIn(ctx context.Context, exec core.DBExecutor, dest interface{}, q string, args ...interface{}) error {
	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return errors.Wrap(err, "expanding query")
	}
	return selectContext(ctx, exec, dest, sqlx.Rebind(sqlx.DOLLAR, q), args...)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
