package capture

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitPayload(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a notification")
		return nil
	}
}

func TestDispatcher_deliversInOrder(t *testing.T) {
	q := NewQueue(8)
	d := NewDispatcher(q)

	got := make(chan []byte, 8)
	d.SetCallback(func(payload []byte) { got <- payload })
	d.Start()
	defer d.Stop()

	tables := []string{"contact_data", "message_data", "history"}
	for _, table := range tables {
		require.True(t, q.TrySend(Event{
			DBName: "main", Table: table, Operation: OpInsert,
			NewValues: []Field{{"id", "AQID"}},
		}))
	}

	for _, want := range tables {
		var ev Event
		require.NoError(t, json.Unmarshal(waitPayload(t, got), &ev))
		assert.Equal(t, want, ev.Table)
		assert.Equal(t, OpInsert, ev.Operation)
	}
}

// TestDispatcher_callbackRegisteredLate verifies events sent before any
// callback exists are discarded, and delivery starts once one is installed.
func TestDispatcher_callbackRegisteredLate(t *testing.T) {
	q := NewQueue(8)
	d := NewDispatcher(q)
	d.Start()
	defer d.Stop()

	// No callback yet: the event is consumed and dropped silently.
	require.True(t, q.TrySend(Event{DBName: "main", Table: "early", Operation: OpUnknown}))

	// Let the loop pass the uninstrumented event before registering.
	time.Sleep(50 * time.Millisecond)

	got := make(chan []byte, 1)
	d.SetCallback(func(payload []byte) { got <- payload })

	require.True(t, q.TrySend(Event{DBName: "main", Table: "late", Operation: OpUnknown}))

	var ev Event
	require.NoError(t, json.Unmarshal(waitPayload(t, got), &ev))
	assert.Equal(t, "late", ev.Table)
}

// TestDispatcher_callbackReplaced verifies the last registration wins.
func TestDispatcher_callbackReplaced(t *testing.T) {
	q := NewQueue(8)
	d := NewDispatcher(q)

	var mu sync.Mutex
	var firstHits int
	d.SetCallback(func([]byte) {
		mu.Lock()
		firstHits++
		mu.Unlock()
	})

	got := make(chan []byte, 1)
	d.SetCallback(func(payload []byte) { got <- payload })
	d.Start()
	defer d.Stop()

	require.True(t, q.TrySend(Event{DBName: "main", Table: "t", Operation: OpUnknown}))
	waitPayload(t, got)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, firstHits, "replaced callback should never fire")
}

// TestDispatcher_survivesCallbackPanic verifies a panicking host callback
// does not kill the dispatch loop.
func TestDispatcher_survivesCallbackPanic(t *testing.T) {
	q := NewQueue(8)
	d := NewDispatcher(q)

	got := make(chan []byte, 1)
	calls := 0
	d.SetCallback(func(payload []byte) {
		calls++
		if calls == 1 {
			panic("host callback exploded")
		}
		got <- payload
	})
	d.Start()
	defer d.Stop()

	require.True(t, q.TrySend(Event{DBName: "main", Table: "boom", Operation: OpUnknown}))
	require.True(t, q.TrySend(Event{DBName: "main", Table: "after", Operation: OpUnknown}))

	var ev Event
	require.NoError(t, json.Unmarshal(waitPayload(t, got), &ev))
	assert.Equal(t, "after", ev.Table, "loop should deliver the event after the panic")
}

// TestDispatcher_stopDrainsBuffered verifies Stop flushes events already
// queued before the loop exits.
func TestDispatcher_stopDrainsBuffered(t *testing.T) {
	q := NewQueue(8)
	d := NewDispatcher(q)

	var mu sync.Mutex
	var seen []string
	d.SetCallback(func(payload []byte) {
		var ev Event
		if err := json.Unmarshal(payload, &ev); err == nil {
			mu.Lock()
			seen = append(seen, ev.Table)
			mu.Unlock()
		}
	})

	// Queue before the loop ever runs, then start and stop immediately:
	// everything buffered must still come through.
	for _, table := range []string{"a", "b", "c"} {
		require.True(t, q.TrySend(Event{DBName: "main", Table: table, Operation: OpUnknown}))
	}
	d.Start()
	d.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestDispatcher_stopWithoutStart(t *testing.T) {
	d := NewDispatcher(NewQueue(1))
	d.Stop() // must not hang
}

func TestDispatcher_stopIdempotent(t *testing.T) {
	d := NewDispatcher(NewQueue(1))
	d.Start()
	d.Stop()
	d.Stop()
}
