package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE postgres reports for a duplicate key
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err wraps a postgres unique constraint
// violation. Only the SQLSTATE is trusted, never the message text.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
