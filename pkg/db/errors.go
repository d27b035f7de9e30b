package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the rental flows care about.
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
)

func sqlState(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation constraint. When constraintName is provided, the helper looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	if sqlState(err) == pgUniqueViolation {
		return true
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsCheckViolation reports a violated CHECK constraint.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgCheckViolation {
		return true
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}

// IsContention reports errors caused by competing transactions: lock waits that
// timed out, serialization failures, deadlocks, statement cancellation and
// expired contexts. Callers may retry these.
func IsContention(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch sqlState(err) {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled:
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// DiagnosticFields extracts the Postgres diagnostics worth logging from err.
// It returns nil for errors that did not come from the database driver.
func DiagnosticFields(err error) map[string]any {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgFields(pgxErr.Code, pgxErr.TableName, pgxErr.ConstraintName, pgxErr.Detail)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgFields(string(pqErr.Code), pqErr.Table, pqErr.Constraint, pqErr.Detail)
	}
	return nil
}

func pgFields(code, table, constraint, detail string) map[string]any {
	fields := map[string]any{"pg_code": code}
	if table != "" {
		fields["pg_table"] = table
	}
	if constraint != "" {
		fields["pg_constraint"] = constraint
	}
	if detail != "" {
		fields["pg_detail"] = detail
	}
	return fields
}
