package capture

import (
	"fmt"

	"github.com/parlavoice/core/internal/logging"
	"github.com/parlavoice/core/internal/telemetry"
)

// preUpdateData is the subset of the driver's pre-update accessor the
// interceptor reads. The driver adapter lives behind the
// sqlite_preupdate_hook build tag; tests use a fake.
type preUpdateData interface {
	Operation() int
	Database() string
	Table() string
	OldRowID() int64
	NewRowID() int64
	Old() ([]interface{}, error)
	New() ([]interface{}, error)
}

// Interceptor turns pending row mutations into change events and offers
// them to the queue. It runs inline on the critical section of every write,
// so it does the minimum possible work: no serialization, no I/O, no
// callback invocation. Expensive work belongs to the dispatcher.
type Interceptor struct {
	queue *Queue
	cols  *ColumnCache
	log   *logging.Logger
}

// NewInterceptor creates an interceptor feeding the given queue. cols may
// be nil, in which case all events carry positional column labels.
func NewInterceptor(queue *Queue, cols *ColumnCache) *Interceptor {
	return &Interceptor{
		queue: queue,
		cols:  cols,
		log:   logging.Scoped("interceptor"),
	}
}

// capture builds and enqueues one change event. Nothing here may fail the
// surrounding transaction: every failure path degrades to drop-and-log.
func (i *Interceptor) capture(d preUpdateData) {
	ev, err := i.buildEvent(d)
	if err != nil {
		telemetry.EventsDropped.Inc()
		i.log.Warn("failed to read row image, dropping change event", map[string]interface{}{
			"table": d.Table(), "error": err.Error(),
		})
		return
	}

	if !i.queue.TrySend(ev) {
		telemetry.EventsDropped.Inc()
		i.log.Warn("event queue full, dropping change event", map[string]interface{}{
			"table": ev.Table, "operation": string(ev.Operation), "rowid": ev.RowID,
		})
		return
	}
	telemetry.EventsCaptured.WithLabelValues(string(ev.Operation)).Inc()
}

// buildEvent captures the row images for the pending mutation.
func (i *Interceptor) buildEvent(d preUpdateData) (Event, error) {
	op := operationFromCode(d.Operation())
	ev := Event{
		DBName:    d.Database(),
		Table:     d.Table(),
		Operation: op,
	}

	switch op {
	case OpInsert:
		row, err := d.New()
		if err != nil {
			return Event{}, err
		}
		ev.RowID = d.NewRowID()
		ev.NewValues = i.encodeRow(ev.DBName, ev.Table, row)
	case OpDelete:
		row, err := d.Old()
		if err != nil {
			return Event{}, err
		}
		ev.RowID = d.OldRowID()
		ev.OldValues = i.encodeRow(ev.DBName, ev.Table, row)
	case OpUpdate:
		oldRow, err := d.Old()
		if err != nil {
			return Event{}, err
		}
		newRow, err := d.New()
		if err != nil {
			return Event{}, err
		}
		// The new row id is authoritative for updates.
		ev.RowID = d.NewRowID()
		ev.OldValues = i.encodeRow(ev.DBName, ev.Table, oldRow)
		ev.NewValues = i.encodeRow(ev.DBName, ev.Table, newRow)
	default:
		// Degenerate event: the transaction must still proceed.
		ev.RowID = 0
	}

	return ev, nil
}

// encodeRow converts raw column values into labeled transport fields.
// Column names come from the schema cache when known, positional labels
// otherwise.
func (i *Interceptor) encodeRow(dbName, table string, row []interface{}) []Field {
	var names []string
	if i.cols != nil {
		names = i.cols.Names(dbName, table)
	}

	fields := make([]Field, len(row))
	for idx, v := range row {
		label := fmt.Sprintf("col_%d", idx)
		if idx < len(names) {
			label = names[idx]
		}
		fields[idx] = Field{label, EncodeValue(v)}
	}
	return fields
}
