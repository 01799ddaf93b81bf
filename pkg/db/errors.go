package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
)

// Postgres SQLSTATE codes the engine reacts to.
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateCheckViolation       = "23514"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// IsUniqueViolation reports whether the provided error references a unique
// violation. When constraintName is provided, the constraint must match too.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pgErr := asPgError(err); pgErr != nil {
		if pgErr.Code != sqlStateUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports whether err is a reference to a missing parent row.
func IsForeignKeyViolation(err error) bool {
	if pgErr := asPgError(err); pgErr != nil {
		return pgErr.Code == sqlStateForeignKeyViolation
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// IsCheckViolation reports whether err is a CHECK constraint failure.
func IsCheckViolation(err error) bool {
	if pgErr := asPgError(err); pgErr != nil {
		return pgErr.Code == sqlStateCheckViolation
	}
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}

// Named CHECK constraints with a dedicated error code. Postgres names inline
// column checks <table>_<column>_check.
const (
	ConstraintRecordQuantity   = "inventory_records_quantity_check"
	ConstraintLogNewQuantity   = "inventory_logs_new_quantity_check"
	ConstraintDistinctBranches = "stock_transfers_distinct_branches"
)

const sqliteCheckPrefix = "CHECK constraint failed: "

// CheckConstraintName returns the constraint named by a CHECK violation. It is
// empty when err is not a check violation or the driver did not report a name.
func CheckConstraintName(err error) string {
	if pgErr := asPgError(err); pgErr != nil {
		if pgErr.Code != sqlStateCheckViolation {
			return ""
		}
		return pgErr.ConstraintName
	}
	if err == nil {
		return ""
	}
	msg := err.Error()
	idx := strings.Index(msg, sqliteCheckPrefix)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(msg[idx+len(sqliteCheckPrefix):])
}

// IsTransient reports whether err is a concurrency failure that a caller may
// retry by re-invoking the whole operation.
func IsTransient(err error) bool {
	if pgErr := asPgError(err); pgErr != nil {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return true
		}
		return false
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

func asPgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

// ClassifyError maps a storage error onto the engine taxonomy. Typed errors
// pass through untouched.
func ClassifyError(err error, message string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	switch {
	case IsForeignKeyViolation(err):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message+": referenced row does not exist")
	case IsCheckViolation(err):
		return classifyCheck(err, message)
	case IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, message)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
	}
}

func classifyCheck(err error, message string) error {
	name := CheckConstraintName(err)
	switch name {
	case ConstraintRecordQuantity, ConstraintLogNewQuantity:
		return pkgerrors.Wrap(pkgerrors.CodeInsufficientStock, err, message+": stock constraint violated")
	case ConstraintDistinctBranches:
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, message+": source and destination branch must differ")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, message+": value rejected by storage").
			WithDetails(map[string]any{"constraint": name})
	}
}
