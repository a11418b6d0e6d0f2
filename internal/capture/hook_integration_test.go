//go:build sqlite_preupdate_hook

// Integration tests driving the real driver pre-update hook. These run
// only when the module is built with -tags sqlite_preupdate_hook.
package capture

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"sync/atomic"
	"testing"

	sqlite3 "github.com/mattn/go-sqlite3"
)

var testDriverSeq atomic.Int64

// openHookedDB opens an in-memory database whose connections feed the
// interceptor through the real pre-update hook.
func openHookedDB(t *testing.T, ic *Interceptor) *sql.DB {
	t.Helper()
	driverName := fmt.Sprintf("sqlite3_capture_hook_%d", testDriverSeq.Add(1))
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return ic.Attach(conn)
		},
	})

	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func nextEvent(t *testing.T, q *Queue) Event {
	t.Helper()
	select {
	case ev := <-q.Events():
		return ev
	default:
		t.Fatal("no event in queue")
	}
	return Event{}
}

// TestAttach_rowLifecycle runs an insert, an update and a delete through
// a hooked connection and checks each mutation arrives as one well-formed
// event with real column labels and encoded values.
func TestAttach_rowLifecycle(t *testing.T) {
	queue := NewQueue(16)
	cols := NewColumnCache(nil)
	ic := NewInterceptor(queue, cols)
	db := openHookedDB(t, ic)

	if _, err := db.Exec(
		"CREATE TABLE message_data (id INTEGER PRIMARY KEY, body TEXT, payload BLOB)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	cols.Bind(db)
	if err := cols.Warm(); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	if _, err := db.Exec(
		"INSERT INTO message_data (id, body, payload) VALUES (5, 'hello', ?)",
		[]byte{0xde, 0xad}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := db.Exec(
		"UPDATE message_data SET body = 'goodbye' WHERE id = 5"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := db.Exec("DELETE FROM message_data WHERE id = 5"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if got := queue.Len(); got != 3 {
		t.Fatalf("queue holds %d events, want 3", got)
	}

	ins := nextEvent(t, queue)
	if ins.Operation != OpInsert {
		t.Errorf("first event operation = %q, want %q", ins.Operation, OpInsert)
	}
	if err := ins.Validate(); err != nil {
		t.Errorf("insert event invalid: %v", err)
	}
	if ins.Table != "message_data" || ins.RowID != 5 {
		t.Errorf("insert event for %s rowid %d, want message_data rowid 5", ins.Table, ins.RowID)
	}
	if len(ins.NewValues) != 3 {
		t.Fatalf("insert carries %d new values, want 3", len(ins.NewValues))
	}
	if got := ins.NewValues[1]; got.Label() != "body" || got.Value() != "hello" {
		t.Errorf("body field = [%s %s], want [body hello]", got.Label(), got.Value())
	}
	wantBlob := base64.StdEncoding.EncodeToString([]byte{0xde, 0xad})
	if got := ins.NewValues[2]; got.Label() != "payload" || got.Value() != wantBlob {
		t.Errorf("payload field = [%s %s], want [payload %s]", got.Label(), got.Value(), wantBlob)
	}

	upd := nextEvent(t, queue)
	if upd.Operation != OpUpdate {
		t.Errorf("second event operation = %q, want %q", upd.Operation, OpUpdate)
	}
	if err := upd.Validate(); err != nil {
		t.Errorf("update event invalid: %v", err)
	}
	if got := upd.OldValues[1].Value(); got != "hello" {
		t.Errorf("update old body = %q, want 'hello'", got)
	}
	if got := upd.NewValues[1].Value(); got != "goodbye" {
		t.Errorf("update new body = %q, want 'goodbye'", got)
	}

	del := nextEvent(t, queue)
	if del.Operation != OpDelete {
		t.Errorf("third event operation = %q, want %q", del.Operation, OpDelete)
	}
	if err := del.Validate(); err != nil {
		t.Errorf("delete event invalid: %v", err)
	}
	if del.RowID != 5 {
		t.Errorf("delete event rowid = %d, want 5", del.RowID)
	}
	if got := del.OldValues[1].Value(); got != "goodbye" {
		t.Errorf("delete old body = %q, want 'goodbye'", got)
	}
}

// TestAttach_schemaChangesPassThrough verifies DDL does not produce
// change events; only row mutations on user tables do.
func TestAttach_schemaChangesPassThrough(t *testing.T) {
	queue := NewQueue(16)
	ic := NewInterceptor(queue, nil)
	db := openHookedDB(t, ic)

	if _, err := db.Exec("CREATE TABLE scratch (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := db.Exec("CREATE INDEX scratch_idx ON scratch (id)"); err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	if got := queue.Len(); got != 0 {
		t.Errorf("DDL enqueued %d events, want 0", got)
	}

	if _, err := db.Exec("INSERT INTO scratch (id) VALUES (1)"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if got := queue.Len(); got != 1 {
		t.Errorf("queue holds %d events after insert, want 1", got)
	}
	ev := nextEvent(t, queue)
	if len(ev.NewValues) != 1 || ev.NewValues[0].Label() != "col_0" {
		t.Errorf("uncached table should carry positional labels, got %v", ev.NewValues)
	}
}
