package sync

import (
	apperrors "github.com/parlavoice/core/internal/errors"
	"github.com/parlavoice/core/internal/history"
	"github.com/parlavoice/core/internal/logging"
	"github.com/parlavoice/core/internal/models"
)

// ContactReader is the slice of the repository the contact handler needs.
type ContactReader interface {
	GetContact(id models.UUID) (*models.Contact, error)
}

// MessageReader is the slice of the repository the message handler needs.
type MessageReader interface {
	GetMessage(id models.UUID) (*models.Message, error)
}

// CacheInvalidator drops stale read-cache entries when a remote change
// lands.
type CacheInvalidator interface {
	Remove(id models.UUID)
}

// ContactHandler reconciles contact ledger records. Sender-partition
// records are pushed through the transport and the attempt is recorded on
// the ledger whatever the outcome; local-partition records invalidate the
// read cache so the next lookup observes the new row.
type ContactHandler struct {
	contacts  ContactReader
	transport *DataTransport
	ledger    *history.Ledger
	cache     CacheInvalidator
	log       *logging.Logger
}

// NewContactHandler creates the contact reconciliation handler. cache may
// be nil when no read cache is in use.
func NewContactHandler(contacts ContactReader, transport *DataTransport, ledger *history.Ledger, cache CacheInvalidator) *ContactHandler {
	return &ContactHandler{
		contacts:  contacts,
		transport: transport,
		ledger:    ledger,
		cache:     cache,
		log:       logging.Scoped("sync.contact"),
	}
}

// HandleLocal reacts to a contact change made on this device's behalf.
func (h *ContactHandler) HandleLocal(record models.HistoryRecord) error {
	if h.cache != nil {
		h.cache.Remove(record.EntityID)
	}
	return nil
}

// HandleSender pushes a contact change to the backend and records the
// attempt.
func (h *ContactHandler) HandleSender(record models.HistoryRecord) error {
	var sendErr error
	if record.ChangeType == models.ChangeDelete {
		sendErr = h.transport.DeleteContact(record.EntityID)
	} else {
		contact, err := h.contacts.GetContact(record.EntityID)
		if err != nil {
			// The row is gone; a later delete record will carry the news.
			h.log.Warn("contact vanished before sync, skipping record", map[string]interface{}{
				"record_id": record.ID, "entity_id": record.EntityID.String(),
			})
			return h.ledger.MarkAttempted(record.ID, models.SyncFailed)
		}
		sendErr = h.transport.SendContact(contact)
	}

	return finishAttempt(h.ledger, h.log, record, sendErr)
}

// MessageHandler reconciles message ledger records.
type MessageHandler struct {
	messages  MessageReader
	transport *DataTransport
	ledger    *history.Ledger
	log       *logging.Logger
}

// NewMessageHandler creates the message reconciliation handler.
func NewMessageHandler(messages MessageReader, transport *DataTransport, ledger *history.Ledger) *MessageHandler {
	return &MessageHandler{
		messages:  messages,
		transport: transport,
		ledger:    ledger,
		log:       logging.Scoped("sync.message"),
	}
}

// HandleLocal reacts to a message change made on this device's behalf.
// Message reads are not cached, so there is nothing to do.
func (h *MessageHandler) HandleLocal(record models.HistoryRecord) error {
	return nil
}

// HandleSender pushes a message change to the backend and records the
// attempt.
func (h *MessageHandler) HandleSender(record models.HistoryRecord) error {
	var sendErr error
	if record.ChangeType == models.ChangeDelete {
		sendErr = h.transport.DeleteMessage(record.EntityID)
	} else {
		msg, err := h.messages.GetMessage(record.EntityID)
		if err != nil {
			h.log.Warn("message vanished before sync, skipping record", map[string]interface{}{
				"record_id": record.ID, "entity_id": record.EntityID.String(),
			})
			return h.ledger.MarkAttempted(record.ID, models.SyncFailed)
		}
		sendErr = h.transport.SendMessage(msg)
	}

	return finishAttempt(h.ledger, h.log, record, sendErr)
}

// finishAttempt records the outcome of one send on the ledger, then decides
// whether the reconciler should retry. Success and permanent exhaustion
// both settle the record; transient failures propagate so the watermark
// stays pinned and the record is redelivered.
func finishAttempt(ledger *history.Ledger, log *logging.Logger, record models.HistoryRecord, sendErr error) error {
	status := models.SyncSent
	if sendErr != nil {
		status = models.SyncFailed
	}
	if markErr := ledger.MarkAttempted(record.ID, status); markErr != nil {
		log.Error("failed to record sync attempt", markErr, map[string]interface{}{
			"record_id": record.ID,
		})
		return markErr
	}

	if sendErr == nil {
		return nil
	}
	if apperrors.Is(sendErr, apperrors.ErrMaxRetries) {
		// Exhausted: keep the failed mark and let the partition move on.
		log.Error("giving up on record after max retries", sendErr, map[string]interface{}{
			"record_id": record.ID, "entity": record.EntityName,
		})
		return nil
	}
	return sendErr
}
