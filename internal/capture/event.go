package capture

import (
	"encoding/json"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Operation is the kind of row mutation a change event describes.
type Operation string

const (
	OpInsert  Operation = "INSERT"
	OpUpdate  Operation = "UPDATE"
	OpDelete  Operation = "DELETE"
	OpUnknown Operation = "UNKNOWN"
)

// operationFromCode maps the engine's authorizer action code to an Operation.
func operationFromCode(code int) Operation {
	switch code {
	case sqlite3.SQLITE_INSERT:
		return OpInsert
	case sqlite3.SQLITE_UPDATE:
		return OpUpdate
	case sqlite3.SQLITE_DELETE:
		return OpDelete
	default:
		return OpUnknown
	}
}

// Field is one (column label, encoded value) pair. It serializes as a
// two-element JSON array, matching the host wire format.
type Field [2]string

// Label returns the column label of the field.
func (f Field) Label() string { return f[0] }

// Value returns the encoded value of the field.
func (f Field) Value() string { return f[1] }

// Event is an immutable record of a single pending row mutation, built
// inside the pre-update hook and consumed exactly once by the dispatcher.
// It is never persisted.
type Event struct {
	DBName    string    `json:"db_name"`
	Table     string    `json:"table"`
	Operation Operation `json:"operation"`
	RowID     int64     `json:"rowid"`
	OldValues []Field   `json:"old_values"` // nil for INSERT
	NewValues []Field   `json:"new_values"` // nil for DELETE
}

// Marshal renders the event in the host wire format. Absent value lists
// serialize as null.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Validate checks the event shape invariant: INSERT carries only new
// values, DELETE only old values, UPDATE both with matching length.
func (e *Event) Validate() error {
	switch e.Operation {
	case OpInsert:
		if e.OldValues != nil {
			return fmt.Errorf("INSERT event for %s carries old values", e.Table)
		}
		if e.NewValues == nil {
			return fmt.Errorf("INSERT event for %s missing new values", e.Table)
		}
	case OpDelete:
		if e.NewValues != nil {
			return fmt.Errorf("DELETE event for %s carries new values", e.Table)
		}
		if e.OldValues == nil {
			return fmt.Errorf("DELETE event for %s missing old values", e.Table)
		}
	case OpUpdate:
		if e.OldValues == nil || e.NewValues == nil {
			return fmt.Errorf("UPDATE event for %s missing a value list", e.Table)
		}
		if len(e.OldValues) != len(e.NewValues) {
			return fmt.Errorf("UPDATE event for %s has %d old values but %d new values",
				e.Table, len(e.OldValues), len(e.NewValues))
		}
	case OpUnknown:
		if e.OldValues != nil || e.NewValues != nil {
			return fmt.Errorf("UNKNOWN event for %s carries values", e.Table)
		}
	default:
		return fmt.Errorf("invalid operation %q", e.Operation)
	}
	return nil
}
