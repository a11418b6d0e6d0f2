// Package history implements the durable history ledger: an append-only
// record of entity-level semantic changes, written explicitly by the entity
// repositories and consumed by the change reconciler. It is distinct from
// the transient row-level change events the capture pipeline emits.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/parlavoice/core/internal/models"
	"github.com/parlavoice/core/internal/telemetry"
)

// clockStep is the minimum created_at increment between two appends that
// land on the same wall-clock reading. One microsecond keeps the column a
// faithful timestamp while guaranteeing strict ordering.
const clockStep = 1e-6

// Ledger provides append and scan operations over the history table.
// Appends are serialized so created_at is strictly increasing and matches
// insertion order; reads never observe a partial record because every
// insert is a single atomic statement.
type Ledger struct {
	db *sql.DB

	mu     sync.Mutex
	lastTS float64
}

// NewLedger creates a ledger over an open database handle. The history
// table must already exist (migrations run first).
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// nextTimestamp returns a strictly increasing wall-clock timestamp in
// epoch seconds.
func (l *Ledger) nextTimestamp() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := float64(time.Now().UnixNano()) / 1e9
	if ts <= l.lastTS {
		ts = l.lastTS + clockStep
	}
	l.lastTS = ts
	return ts
}

const insertRecordSQL = `
	INSERT INTO history (entity_name, entity_id, change_type, author, created_at, sync_status, try_count)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

// Append records one semantic change. The record starts pending with zero
// attempts. Storage failure is fatal to the caller's operation.
func (l *Ledger) Append(entityName string, entityID models.UUID, changeType models.ChangeType, author string) (int64, error) {
	return l.append(l.db, entityName, entityID, changeType, author)
}

// AppendTx is Append inside the caller's transaction, so the ledger record
// commits or rolls back together with the entity write that caused it.
func (l *Ledger) AppendTx(tx *sql.Tx, entityName string, entityID models.UUID, changeType models.ChangeType, author string) (int64, error) {
	return l.append(tx, entityName, entityID, changeType, author)
}

// execer is the common surface of *sql.DB and *sql.Tx the ledger writes
// through.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (l *Ledger) append(e execer, entityName string, entityID models.UUID, changeType models.ChangeType, author string) (int64, error) {
	idBytes, err := entityID.Bytes()
	if err != nil {
		telemetry.LedgerOps.WithLabelValues("append", "error").Inc()
		return 0, fmt.Errorf("invalid entity id %q: %w", entityID, err)
	}

	createdAt := l.nextTimestamp()

	var id int64
	err = telemetry.ObserveQuery("history_append", func() error {
		res, err := e.Exec(insertRecordSQL,
			entityName, idBytes, int64(changeType), author, createdAt, models.SyncPending, 0)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		telemetry.LedgerOps.WithLabelValues("append", "error").Inc()
		return 0, fmt.Errorf("failed to append history record for %s: %w", entityName, err)
	}

	telemetry.LedgerOps.WithLabelValues("append", "ok").Inc()
	return id, nil
}

const selectRecordSQL = `
	SELECT id, entity_name, entity_id, change_type, author, created_at, sync_status, try_count
	FROM history
	`

// ListSince returns every record with created_at strictly after the given
// timestamp, in ascending order. Re-querying without intervening writes
// yields an identical sequence.
func (l *Ledger) ListSince(afterTimestamp float64) ([]models.HistoryRecord, error) {
	return l.scan(selectRecordSQL+"WHERE created_at > ? ORDER BY created_at ASC, id ASC", afterTimestamp)
}

// ListAfterID returns up to limit records with id strictly greater than
// afterID for one author partition, in id order. This is the reconciler's
// scan: the monotonic id cannot collide the way a wall-clock timestamp can.
func (l *Ledger) ListAfterID(afterID int64, author string, limit int) ([]models.HistoryRecord, error) {
	if limit <= 0 {
		limit = 256
	}
	return l.scan(selectRecordSQL+"WHERE id > ? AND author = ? ORDER BY id ASC LIMIT ?",
		afterID, author, limit)
}

// ListLocalAfterID is ListAfterID for the local partition. Local is
// defined by exclusion: every author other than "sender" belongs to it,
// matching HistoryRecord.Local.
func (l *Ledger) ListLocalAfterID(afterID int64, limit int) ([]models.HistoryRecord, error) {
	if limit <= 0 {
		limit = 256
	}
	return l.scan(selectRecordSQL+"WHERE id > ? AND author != ? ORDER BY id ASC LIMIT ?",
		afterID, models.AuthorSender, limit)
}

// All returns the full ledger in insertion order, for dumps and inspection.
func (l *Ledger) All() ([]models.HistoryRecord, error) {
	return l.scan(selectRecordSQL + "ORDER BY id ASC")
}

func (l *Ledger) scan(query string, args ...interface{}) ([]models.HistoryRecord, error) {
	var records []models.HistoryRecord
	err := telemetry.ObserveQuery("history_list", func() error {
		rows, err := l.db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var rec models.HistoryRecord
			var idBytes []byte
			var changeType int64
			if err := rows.Scan(&rec.ID, &rec.EntityName, &idBytes, &changeType,
				&rec.Author, &rec.CreatedAt, &rec.SyncStatus, &rec.TryCount); err != nil {
				return err
			}
			rec.ChangeType = models.ChangeTypeFrom(changeType)
			entityID, err := models.UUIDFromBytes(idBytes)
			if err != nil {
				return fmt.Errorf("corrupt entity id on history record %d: %w", rec.ID, err)
			}
			rec.EntityID = entityID
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		telemetry.LedgerOps.WithLabelValues("list", "error").Inc()
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	telemetry.LedgerOps.WithLabelValues("list", "ok").Inc()
	return records, nil
}

// MarkAttempted records the outcome of one synchronization attempt: it sets
// the new sync status and increments try_count in a single statement.
func (l *Ledger) MarkAttempted(recordID int64, newStatus int64) error {
	err := telemetry.ObserveQuery("history_mark", func() error {
		res, err := l.db.Exec(
			"UPDATE history SET sync_status = ?, try_count = try_count + 1 WHERE id = ?",
			newStatus, recordID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("history record %d not found", recordID)
		}
		return nil
	})
	if err != nil {
		telemetry.LedgerOps.WithLabelValues("mark", "error").Inc()
		return fmt.Errorf("failed to mark history record %d: %w", recordID, err)
	}
	telemetry.LedgerOps.WithLabelValues("mark", "ok").Inc()
	return nil
}
