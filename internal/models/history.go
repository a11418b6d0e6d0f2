// Package models provides data model definitions for Parla Core.
package models

import "time"

// ChangeType identifies the kind of entity-level change a history record
// describes. The integer values are part of the on-disk and JSON formats.
type ChangeType int

const (
	ChangeInsert  ChangeType = 0
	ChangeUpdate  ChangeType = 1
	ChangeDelete  ChangeType = 2
	ChangeUnknown ChangeType = 3
)

// ChangeTypeFrom maps a stored integer back to a ChangeType.
// Out-of-range values decode as ChangeUnknown.
func ChangeTypeFrom(v int64) ChangeType {
	if v < 0 || v > int64(ChangeUnknown) {
		return ChangeUnknown
	}
	return ChangeType(v)
}

// String returns a human-readable name for the change type.
func (t ChangeType) String() string {
	switch t {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Authors partition history records by origin. Everything that is not
// AuthorSender is treated as local when the reconciler partitions the ledger.
const (
	AuthorLocal  = "local"
	AuthorSender = "sender"
)

// Entity names as recorded in the ledger and dispatched on by the reconciler.
const (
	EntityContact       = "ContactData"
	EntityMessage       = "MessageData"
	EntityContactStatus = "ContactStatusData"
	EntityContactSeenAt = "ContactSeenAtData"
)

// Sync status progression for history records.
const (
	SyncPending   int64 = 0
	SyncSent      int64 = 1
	SyncConfirmed int64 = 2
	SyncFailed    int64 = 3
)

// HistoryRecord is a durable, append-only record of one entity-level change.
// It drives downstream synchronization and is never deleted by this layer.
type HistoryRecord struct {
	ID         int64      `db:"id" json:"id"`
	EntityName string     `db:"entity_name" json:"entity_name"`
	EntityID   UUID       `db:"entity_id" json:"entity_id"`
	ChangeType ChangeType `db:"change_type" json:"change_type"`
	Author     string     `db:"author" json:"author"`
	CreatedAt  float64    `db:"created_at" json:"created_at"` // seconds since epoch
	SyncStatus int64      `db:"sync_status" json:"sync_status"`
	TryCount   int64      `db:"try_count" json:"try_count"`
}

// TableName returns the table name for HistoryRecord.
func (HistoryRecord) TableName() string {
	return "history"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (r *HistoryRecord) CreatedAtTime() time.Time {
	sec := int64(r.CreatedAt)
	nsec := int64((r.CreatedAt - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Local reports whether the record belongs to the local partition.
func (r *HistoryRecord) Local() bool {
	return r.Author != AuthorSender
}
