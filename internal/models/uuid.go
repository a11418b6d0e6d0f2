// Package models provides data model definitions for Parla Core.
package models

import (
	"database/sql/driver"
	"fmt"

	googleuuid "github.com/google/uuid"
)

// UUID is a wrapper around string for UUID type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// Bytes returns the canonical 16-byte form of the UUID.
// The history ledger stores entity ids as 16-byte blobs.
func (u UUID) Bytes() ([]byte, error) {
	id, err := googleuuid.Parse(string(u))
	if err != nil {
		return nil, fmt.Errorf("invalid UUID %q: %w", string(u), err)
	}
	b := id[:]
	return b, nil
}

// Validate reports whether the UUID parses in canonical form.
func (u UUID) Validate() error {
	if _, err := googleuuid.Parse(string(u)); err != nil {
		return fmt.Errorf("invalid UUID %q: %w", string(u), err)
	}
	return nil
}

// UUIDFromBytes builds a UUID from its 16-byte form.
func UUIDFromBytes(b []byte) (UUID, error) {
	id, err := googleuuid.FromBytes(b)
	if err != nil {
		return "", fmt.Errorf("invalid UUID bytes: %w", err)
	}
	return UUID(id.String()), nil
}
