// Package sync tests for the reconciliation handlers.
package sync

import (
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/parlavoice/core/internal/history"
	"github.com/parlavoice/core/internal/models"
	"github.com/parlavoice/core/internal/uuid"
)

func newTestLedger(t *testing.T) *history.Ledger {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_name TEXT NOT NULL,
		entity_id BLOB NOT NULL,
		change_type INTEGER NOT NULL,
		author TEXT NOT NULL,
		created_at REAL NOT NULL,
		sync_status INTEGER NOT NULL DEFAULT 0,
		try_count INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return history.NewLedger(db)
}

// fakeContacts serves a fixed contact set.
type fakeContacts struct {
	contacts map[models.UUID]*models.Contact
}

func (f *fakeContacts) GetContact(id models.UUID) (*models.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return nil, fmt.Errorf("contact not found: %s", id)
	}
	return c, nil
}

// fakeMessages serves a fixed message set.
type fakeMessages struct {
	messages map[models.UUID]*models.Message
}

func (f *fakeMessages) GetMessage(id models.UUID) (*models.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("message not found: %s", id)
	}
	return m, nil
}

// fakeCache records invalidations.
type fakeCache struct {
	removed []models.UUID
}

func (f *fakeCache) Remove(id models.UUID) { f.removed = append(f.removed, id) }

func senderRecord(t *testing.T, ledger *history.Ledger, entity string, entityID models.UUID, ct models.ChangeType) models.HistoryRecord {
	t.Helper()
	id, err := ledger.Append(entity, entityID, ct, models.AuthorSender)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	return models.HistoryRecord{
		ID: id, EntityName: entity, EntityID: entityID,
		ChangeType: ct, Author: models.AuthorSender,
	}
}

func ledgerRecord(t *testing.T, ledger *history.Ledger, recordID int64) models.HistoryRecord {
	t.Helper()
	records, err := ledger.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	for _, rec := range records {
		if rec.ID == recordID {
			return rec
		}
	}
	t.Fatalf("record %d not found", recordID)
	return models.HistoryRecord{}
}

// =====================================================
// ContactHandler Tests
// =====================================================

// TestContactHandler_HandleSender_sendAndMark verifies the happy path:
// contact pushed, attempt recorded as sent.
func TestContactHandler_HandleSender_sendAndMark(t *testing.T) {
	ledger := newTestLedger(t)
	contactID := models.UUID(uuid.New())
	sender := &fakeSender{}
	tr := NewDataTransport(sender, 3)
	contacts := &fakeContacts{contacts: map[models.UUID]*models.Contact{
		contactID: {ID: contactID, FirstName: "Ada"},
	}}
	h := NewContactHandler(contacts, tr, ledger, nil)

	rec := senderRecord(t, ledger, models.EntityContact, contactID, models.ChangeInsert)
	if err := h.HandleSender(rec); err != nil {
		t.Fatalf("HandleSender() error = %v", err)
	}

	if len(sender.contacts) != 1 || sender.contacts[0] != contactID {
		t.Errorf("sender saw %v, want [%v]", sender.contacts, contactID)
	}
	stored := ledgerRecord(t, ledger, rec.ID)
	if stored.SyncStatus != models.SyncSent {
		t.Errorf("sync_status = %d, want sent", stored.SyncStatus)
	}
	if stored.TryCount != 1 {
		t.Errorf("try_count = %d, want 1", stored.TryCount)
	}
}

// TestContactHandler_HandleSender_delete verifies deletions go through the
// delete path without a repository read.
func TestContactHandler_HandleSender_delete(t *testing.T) {
	ledger := newTestLedger(t)
	contactID := models.UUID(uuid.New())
	sender := &fakeSender{}
	tr := NewDataTransport(sender, 3)
	h := NewContactHandler(&fakeContacts{}, tr, ledger, nil)

	rec := senderRecord(t, ledger, models.EntityContact, contactID, models.ChangeDelete)
	if err := h.HandleSender(rec); err != nil {
		t.Fatalf("HandleSender() error = %v", err)
	}
	if len(sender.deletes) != 1 || sender.deletes[0] != contactID {
		t.Errorf("sender deletes = %v, want [%v]", sender.deletes, contactID)
	}
}

// TestContactHandler_HandleSender_transientFailure verifies a failed push
// is marked failed AND propagated, so the reconciler retries the record.
func TestContactHandler_HandleSender_transientFailure(t *testing.T) {
	ledger := newTestLedger(t)
	contactID := models.UUID(uuid.New())
	tr := NewDataTransport(&fakeSender{failSends: 1}, 3)
	contacts := &fakeContacts{contacts: map[models.UUID]*models.Contact{
		contactID: {ID: contactID},
	}}
	h := NewContactHandler(contacts, tr, ledger, nil)

	rec := senderRecord(t, ledger, models.EntityContact, contactID, models.ChangeInsert)
	if err := h.HandleSender(rec); err == nil {
		t.Fatal("HandleSender() should propagate a transient failure")
	}

	stored := ledgerRecord(t, ledger, rec.ID)
	if stored.SyncStatus != models.SyncFailed {
		t.Errorf("sync_status = %d, want failed", stored.SyncStatus)
	}
	if stored.TryCount != 1 {
		t.Errorf("try_count = %d, want 1", stored.TryCount)
	}
}

// TestContactHandler_HandleSender_exhaustionSettles verifies the handler
// stops propagating once the transport gives up, so the partition moves on.
func TestContactHandler_HandleSender_exhaustionSettles(t *testing.T) {
	ledger := newTestLedger(t)
	contactID := models.UUID(uuid.New())
	tr := NewDataTransport(&fakeSender{failSends: 10}, 1)
	contacts := &fakeContacts{contacts: map[models.UUID]*models.Contact{
		contactID: {ID: contactID},
	}}
	h := NewContactHandler(contacts, tr, ledger, nil)

	rec := senderRecord(t, ledger, models.EntityContact, contactID, models.ChangeInsert)
	if err := h.HandleSender(rec); err == nil {
		t.Fatal("first attempt should propagate")
	}
	if err := h.HandleSender(rec); err != nil {
		t.Fatalf("exhausted attempt should settle, got %v", err)
	}

	stored := ledgerRecord(t, ledger, rec.ID)
	if stored.SyncStatus != models.SyncFailed {
		t.Errorf("sync_status = %d, want failed", stored.SyncStatus)
	}
}

// TestContactHandler_HandleSender_vanishedContact verifies a missing row is
// settled as failed rather than wedging the partition.
func TestContactHandler_HandleSender_vanishedContact(t *testing.T) {
	ledger := newTestLedger(t)
	contactID := models.UUID(uuid.New())
	tr := NewDataTransport(&fakeSender{}, 3)
	h := NewContactHandler(&fakeContacts{}, tr, ledger, nil)

	rec := senderRecord(t, ledger, models.EntityContact, contactID, models.ChangeInsert)
	if err := h.HandleSender(rec); err != nil {
		t.Fatalf("HandleSender() error = %v", err)
	}

	stored := ledgerRecord(t, ledger, rec.ID)
	if stored.SyncStatus != models.SyncFailed {
		t.Errorf("sync_status = %d, want failed", stored.SyncStatus)
	}
}

// TestContactHandler_HandleLocal_invalidatesCache verifies local changes
// drop the cached contact.
func TestContactHandler_HandleLocal_invalidatesCache(t *testing.T) {
	ledger := newTestLedger(t)
	contactID := models.UUID(uuid.New())
	cache := &fakeCache{}
	h := NewContactHandler(&fakeContacts{}, NewDataTransport(&fakeSender{}, 3), ledger, cache)

	rec := models.HistoryRecord{ID: 1, EntityName: models.EntityContact,
		EntityID: contactID, ChangeType: models.ChangeUpdate, Author: models.AuthorLocal}
	if err := h.HandleLocal(rec); err != nil {
		t.Fatalf("HandleLocal() error = %v", err)
	}
	if len(cache.removed) != 1 || cache.removed[0] != contactID {
		t.Errorf("cache invalidations = %v, want [%v]", cache.removed, contactID)
	}
}

// =====================================================
// MessageHandler Tests
// =====================================================

func TestMessageHandler_HandleSender_sendAndMark(t *testing.T) {
	ledger := newTestLedger(t)
	msgID := models.UUID(uuid.New())
	sender := &fakeSender{}
	tr := NewDataTransport(sender, 3)
	messages := &fakeMessages{messages: map[models.UUID]*models.Message{
		msgID: {ID: msgID, Text: "hi"},
	}}
	h := NewMessageHandler(messages, tr, ledger)

	rec := senderRecord(t, ledger, models.EntityMessage, msgID, models.ChangeInsert)
	if err := h.HandleSender(rec); err != nil {
		t.Fatalf("HandleSender() error = %v", err)
	}
	if len(sender.messages) != 1 || sender.messages[0] != msgID {
		t.Errorf("sender saw %v, want [%v]", sender.messages, msgID)
	}
	stored := ledgerRecord(t, ledger, rec.ID)
	if stored.SyncStatus != models.SyncSent {
		t.Errorf("sync_status = %d, want sent", stored.SyncStatus)
	}
}

func TestMessageHandler_HandleLocal_noop(t *testing.T) {
	h := NewMessageHandler(&fakeMessages{}, NewDataTransport(&fakeSender{}, 3), newTestLedger(t))
	if err := h.HandleLocal(models.HistoryRecord{ID: 1}); err != nil {
		t.Errorf("HandleLocal() error = %v", err)
	}
}
