// Package monitor implements the change reconciler: a polling loop that
// scans the history ledger in two independent author partitions ("local"
// and "sender") and dispatches each record to an entity-specific handler.
// Delivery is at-least-once: a failed record blocks its partition's
// watermark, so it is retried on the next cycle, while later records in the
// same batch are still attempted.
package monitor

import (
	"sync"
	"time"

	"github.com/parlavoice/core/internal/history"
	"github.com/parlavoice/core/internal/logging"
	"github.com/parlavoice/core/internal/models"
	"github.com/parlavoice/core/internal/telemetry"
)

// DefaultPollInterval is the reconciler's default cycle period.
const DefaultPollInterval = 5 * time.Second

// DefaultBatchSize caps how many records one partition processes per cycle.
const DefaultBatchSize = 256

// EntityHandler processes ledger records for one entity type. HandleLocal
// receives records authored on this device; HandleSender receives records
// authored by the remote side. Handlers should be idempotent: the
// reconciler may redeliver a record whose earlier attempt failed mid-batch.
type EntityHandler interface {
	HandleLocal(record models.HistoryRecord) error
	HandleSender(record models.HistoryRecord) error
}

// Monitor drives both ledger partitions. Each partition keeps its own
// watermark, keyed by the ledger's monotonic record id, and advances it
// per-record on success.
type Monitor struct {
	ledger   *history.Ledger
	log      *logging.Logger
	interval time.Duration
	batch    int

	mu              sync.RWMutex
	handlers        map[string]EntityHandler
	localWatermark  int64
	senderWatermark int64

	stopCh    chan struct{}
	done      chan struct{}
	started   bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a monitor over the given ledger. Non-positive interval or
// batch fall back to defaults.
func New(ledger *history.Ledger, interval time.Duration, batch int) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Monitor{
		ledger:   ledger,
		log:      logging.Scoped("monitor"),
		interval: interval,
		batch:    batch,
		handlers: make(map[string]EntityHandler),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RegisterHandler installs the handler for one entity name. Registration
// after Start is allowed; the next cycle sees the new handler.
func (m *Monitor) RegisterHandler(entityName string, handler EntityHandler) {
	m.mu.Lock()
	m.handlers[entityName] = handler
	m.mu.Unlock()
}

func (m *Monitor) handler(entityName string) (EntityHandler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[entityName]
	return h, ok
}

// Watermarks returns the current (local, sender) watermark record ids.
func (m *Monitor) Watermarks() (int64, int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.localWatermark, m.senderWatermark
}

// Reset rewinds both watermarks to the beginning of the ledger. The next
// cycle redelivers everything; handlers must tolerate that.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.localWatermark = 0
	m.senderWatermark = 0
	m.mu.Unlock()
}

// RunCycle scans and dispatches both partitions once.
func (m *Monitor) RunCycle() {
	m.processPartition(models.AuthorLocal)
	m.processPartition(models.AuthorSender)
}

func (m *Monitor) processPartition(author string) {
	defer telemetry.MonitorCycles.WithLabelValues(author).Inc()

	m.mu.RLock()
	watermark := m.localWatermark
	if author == models.AuthorSender {
		watermark = m.senderWatermark
	}
	m.mu.RUnlock()

	// The local partition is everything not authored by the remote side,
	// so records with ad-hoc author strings still get dispatched.
	var records []models.HistoryRecord
	var err error
	if author == models.AuthorSender {
		records, err = m.ledger.ListAfterID(watermark, models.AuthorSender, m.batch)
	} else {
		records, err = m.ledger.ListLocalAfterID(watermark, m.batch)
	}
	if err != nil {
		m.log.Error("ledger scan failed, retrying next cycle", err, map[string]interface{}{
			"partition": author,
		})
		return
	}

	// A failed record pins the watermark so it is redelivered next cycle.
	// Later records are still attempted this cycle.
	blocked := false
	for _, record := range records {
		if err := m.dispatch(author, record); err != nil {
			telemetry.HandlerFailures.WithLabelValues(author, record.EntityName).Inc()
			m.log.Error("handler failed, record will be retried", err, map[string]interface{}{
				"partition": author, "entity": record.EntityName, "record_id": record.ID,
			})
			blocked = true
			continue
		}
		if !blocked {
			m.advance(author, record.ID)
		}
	}
}

// dispatch routes one record to its entity handler. Unrecognized entities
// are logged and treated as handled, so they never wedge the partition.
func (m *Monitor) dispatch(author string, record models.HistoryRecord) error {
	h, ok := m.handler(record.EntityName)
	if !ok {
		m.log.Warn("no handler for entity, skipping record", map[string]interface{}{
			"entity": record.EntityName, "record_id": record.ID,
		})
		return nil
	}
	if author == models.AuthorSender {
		return h.HandleSender(record)
	}
	return h.HandleLocal(record)
}

func (m *Monitor) advance(author string, id int64) {
	m.mu.Lock()
	if author == models.AuthorSender {
		if id > m.senderWatermark {
			m.senderWatermark = id
		}
	} else {
		if id > m.localWatermark {
			m.localWatermark = id
		}
	}
	m.mu.Unlock()
}

// Start launches the poll loop. Subsequent calls are no-ops.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.started = true
		m.mu.Unlock()
		go m.run()
	})
}

// Stop halts the poll loop and waits for the in-flight cycle to finish.
// Safe to call more than once, and before Start.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.mu.RLock()
	started := m.started
	m.mu.RUnlock()
	if started {
		<-m.done
	}
}

func (m *Monitor) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.RunCycle()
		case <-m.stopCh:
			return
		}
	}
}
