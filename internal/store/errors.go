package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Store error types
var (
	// ErrUnavailable is returned when the replica cannot be reached
	ErrUnavailable = errors.New("category store unavailable")

	// ErrQueryFailed is returned when the replica rejects a query
	ErrQueryFailed = errors.New("category query failed")
)

// ConvertDBError converts driver-specific errors to store errors.
// Context cancellation passes through untouched.
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// pgx
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if isUnavailableState(pgErr.Code) {
			return fmt.Errorf("%w: %s", ErrUnavailable, pgErr.Message)
		}
		return fmt.Errorf("%w: %s (SQLSTATE %s)", ErrQueryFailed, pgErr.Message, pgErr.Code)
	}

	// lib/pq
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if isUnavailableState(string(pqErr.Code)) {
			return fmt.Errorf("%w: %s", ErrUnavailable, pqErr.Message)
		}
		return fmt.Errorf("%w: %s (SQLSTATE %s)", ErrQueryFailed, pqErr.Message, pqErr.Code)
	}

	// sqlite
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
			return fmt.Errorf("%w: %v", ErrUnavailable, liteErr)
		}
		return fmt.Errorf("%w: %v", ErrQueryFailed, liteErr)
	}

	return fmt.Errorf("%w: %v", ErrQueryFailed, err)
}

// isUnavailableState reports connection exceptions (class 08) and
// operator intervention (class 57) SQLSTATEs
func isUnavailableState(code string) bool {
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57")
}

// IsUnavailable returns true if the error is ErrUnavailable
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
