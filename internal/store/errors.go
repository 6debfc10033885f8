package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates a missing or unauthorized resource lookup.
var ErrNotFound = errors.New("record not found")

// ErrInvalidReference is returned when a write names an office, event type or
// organization that does not exist.
var ErrInvalidReference = errors.New("referenced record does not exist")

const pgForeignKeyViolation = "23503"

// ReferenceError is an ErrInvalidReference naming the input field whose id
// was rejected. Field is empty when the constraint is not recognised.
type ReferenceError struct {
	Field string
}

func (e *ReferenceError) Error() string {
	if e.Field == "" {
		return ErrInvalidReference.Error()
	}
	return e.Field + ": " + ErrInvalidReference.Error()
}

func (e *ReferenceError) Is(target error) bool { return target == ErrInvalidReference }

// referenceFields maps foreign key columns to input field names.
var referenceFields = []struct {
	column string
	field  string
}{
	{"event_type_id", "eventType.id"},
	{"organization_id", "organization.id"},
	{"office_id", "office.id"},
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgForeignKeyViolation {
		return err
	}
	ref := &ReferenceError{}
	// default constraint names are <table>_<column>_fkey
	for _, rf := range referenceFields {
		if pgErr.ColumnName == rf.column || strings.Contains(pgErr.ConstraintName, "_"+rf.column+"_") {
			ref.Field = rf.field
			break
		}
	}
	return ref
}

// InvalidReferenceField returns the input field named by a ReferenceError in
// err's chain, or "".
func InvalidReferenceField(err error) string {
	var ref *ReferenceError
	if errors.As(err, &ref) {
		return ref.Field
	}
	return ""
}
