package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a specific record is not found.
	ErrNotFound = errors.New("requested record not found")

	// ErrDatabaseError is returned for unexpected database errors.
	// It can be used to wrap more specific driver errors.
	ErrDatabaseError = errors.New("database error")

	// ErrDuplicateKey is returned when an insert/update violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")

	// ErrSlotConflict is returned when an active booking already holds an overlapping slot on the table.
	ErrSlotConflict = errors.New("table slot already booked")

	// ErrReferenceConflict is returned when a generated booking reference is already taken.
	ErrReferenceConflict = errors.New("booking reference already exists")

	// ErrVersionConflict is returned when an expected-version update finds a newer version.
	ErrVersionConflict = errors.New("record was modified by another request")
)

// Constraint names declared in schema.sql.
const (
	ConstraintBookingActiveSlot = "bookings_active_slot_key"
	ConstraintBookingNoOverlap  = "bookings_no_overlap"
	ConstraintBookingReference  = "bookings_reference_key"
)

// SQLExecutor defines an interface that can be satisfied by *sql.DB or *sql.Tx
// This allows repository methods to be used within transactions or with a direct DB connection.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// scanner is an interface satisfied by *sql.Row and *sql.Rows.
// This allows for generic scanning helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

// classifyWriteError maps driver errors of an insert/update onto repository sentinels.
func classifyWriteError(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			switch pqErr.Constraint {
			case ConstraintBookingActiveSlot:
				return fmt.Errorf("%w: %s (constraint: %s)", ErrSlotConflict, op, pqErr.Constraint)
			case ConstraintBookingReference:
				return fmt.Errorf("%w: %s (constraint: %s)", ErrReferenceConflict, op, pqErr.Constraint)
			}
			return fmt.Errorf("%w: %s (constraint: %s)", ErrDuplicateKey, pqErr.Message, pqErr.Constraint)
		case "exclusion_violation":
			return fmt.Errorf("%w: %s (constraint: %s)", ErrSlotConflict, op, pqErr.Constraint)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
}
