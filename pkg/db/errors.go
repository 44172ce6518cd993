package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
)

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally on the named constraint. Postgres errors are matched on SQLSTATE;
// sqlite only exposes the message.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.PostgresError(err); ok {
		return pg.Code == pkgerrors.SQLStateUniqueViolation &&
			(constraint == "" || pg.Constraint == constraint)
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraint == "" || strings.Contains(msg, constraint)
}

// IsNotFound reports whether err is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
