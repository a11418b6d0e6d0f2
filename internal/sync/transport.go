// Package sync implements outbound synchronization: the data transport
// that pushes entity changes to the Parla backend, and the entity handlers
// the change reconciler dispatches ledger records to.
package sync

import (
	stdsync "sync"
	"sync/atomic"

	apperrors "github.com/parlavoice/core/internal/errors"
	"github.com/parlavoice/core/internal/logging"
	"github.com/parlavoice/core/internal/models"
)

// DefaultMaxRetries bounds per-entity send attempts before the transport
// gives up.
const DefaultMaxRetries = 3

// Sender is the network layer the transport delegates to. Production
// builds wire the HTTP client here; tests use fakes.
type Sender interface {
	SendContact(contact *models.Contact) error
	DeleteContact(id models.UUID) error
	SendMessage(msg *models.Message) error
	DeleteMessage(id models.UUID) error
}

// NoopSender accepts every operation without touching the network. Bridge
// builds use it until the host wires a real backend client.
type NoopSender struct{}

func (NoopSender) SendContact(*models.Contact) error { return nil }
func (NoopSender) DeleteContact(models.UUID) error   { return nil }
func (NoopSender) SendMessage(*models.Message) error { return nil }
func (NoopSender) DeleteMessage(models.UUID) error   { return nil }

// RetryCounter tracks failed attempts per entity id.
type RetryCounter struct {
	mu       stdsync.Mutex
	counters map[models.UUID]int
}

// NewRetryCounter creates an empty counter set.
func NewRetryCounter() *RetryCounter {
	return &RetryCounter{counters: make(map[models.UUID]int)}
}

// Increment bumps the counter for an id and returns the new value.
func (r *RetryCounter) Increment(id models.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[id]++
	return r.counters[id]
}

// Get returns the current counter for an id.
func (r *RetryCounter) Get(id models.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[id]
}

// Remove clears the counter for an id.
func (r *RetryCounter) Remove(id models.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.counters, id)
}

// DataTransport wraps a Sender with network-availability gating and
// per-entity retry accounting. A send is refused while the network is down
// or once an entity has exhausted its attempts; refusals are reported with
// distinct error codes so callers can tell "give up" from "try later".
type DataTransport struct {
	sender     Sender
	retries    *RetryCounter
	maxRetries int
	networkUp  atomic.Bool
	log        *logging.Logger
}

// NewDataTransport creates a transport over the given sender. The network
// starts as available.
func NewDataTransport(sender Sender, maxRetries int) *DataTransport {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	t := &DataTransport{
		sender:     sender,
		retries:    NewRetryCounter(),
		maxRetries: maxRetries,
		log:        logging.Scoped("transport"),
	}
	t.networkUp.Store(true)
	return t
}

// SetNetworkAvailable flips the reachability flag, normally driven by the
// host platform's connectivity callbacks.
func (t *DataTransport) SetNetworkAvailable(available bool) {
	t.networkUp.Store(available)
	t.log.Info("network availability changed", map[string]interface{}{
		"available": available,
	})
}

// NetworkAvailable reports the current reachability flag.
func (t *DataTransport) NetworkAvailable() bool {
	return t.networkUp.Load()
}

// Attempts returns how many failed attempts an entity has accumulated.
func (t *DataTransport) Attempts(id models.UUID) int {
	return t.retries.Get(id)
}

func (t *DataTransport) checkCanSend(id models.UUID) error {
	if !t.networkUp.Load() {
		return apperrors.New(apperrors.ErrNetworkUnavailable, "network is not available")
	}
	if t.retries.Get(id) >= t.maxRetries {
		return apperrors.New(apperrors.ErrMaxRetries, "max retry count reached for "+id.String())
	}
	return nil
}

// send runs one gated attempt and maintains the retry counter.
func (t *DataTransport) send(id models.UUID, op string, fn func() error) error {
	if err := t.checkCanSend(id); err != nil {
		return err
	}

	if err := fn(); err != nil {
		attempts := t.retries.Increment(id)
		t.log.Error("transport operation failed", err, map[string]interface{}{
			"operation": op, "entity_id": id.String(), "attempts": attempts,
		})
		return apperrors.Wrap(apperrors.ErrTransportFailed, op+" failed", err)
	}

	t.retries.Remove(id)
	return nil
}

// SendContact pushes a contact upsert to the backend.
func (t *DataTransport) SendContact(contact *models.Contact) error {
	return t.send(contact.ID, "send contact", func() error {
		return t.sender.SendContact(contact)
	})
}

// DeleteContact pushes a contact deletion to the backend.
func (t *DataTransport) DeleteContact(id models.UUID) error {
	return t.send(id, "delete contact", func() error {
		return t.sender.DeleteContact(id)
	})
}

// SendMessage pushes a message to the backend.
func (t *DataTransport) SendMessage(msg *models.Message) error {
	return t.send(msg.ID, "send message", func() error {
		return t.sender.SendMessage(msg)
	})
}

// DeleteMessage pushes a message deletion to the backend.
func (t *DataTransport) DeleteMessage(id models.UUID) error {
	return t.send(id, "delete message", func() error {
		return t.sender.DeleteMessage(id)
	})
}
