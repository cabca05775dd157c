package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a single-row read matches nothing.
	ErrNotFound = errors.New("record not found")
	// ErrConstraintViolation is returned when a write breaks a foreign key,
	// unique or check constraint.
	ErrConstraintViolation = errors.New("constraint violation")
)

// BackendError wraps any other persistence failure.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string { return "database: " + e.Err.Error() }

func (e *BackendError) Unwrap() error { return e.Err }

// MapError translates driver errors into the package sentinels. nil stays nil
// and already mapped errors pass through.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConstraintViolation) {
		return err
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503", "23505", "23514":
			return fmt.Errorf("%w: %s (%s)", ErrConstraintViolation, pgErr.Message, pgErr.ConstraintName)
		}
	}
	return &BackendError{Err: err}
}
