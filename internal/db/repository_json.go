// Package db provides JSON-boundary variants of the repository operations,
// used by the FFI bridge where every payload crosses as a UTF-8 JSON string.
package db

import (
	"encoding/json"
	"fmt"

	"github.com/parlavoice/core/internal/models"
	"github.com/parlavoice/core/internal/uuid"
)

// UpsertContactJSON decodes a contact document, assigns an id when absent,
// and upserts it. It returns the contact id.
func (r *Repository) UpsertContactJSON(payload string, author string) (string, error) {
	var contact models.Contact
	if err := json.Unmarshal([]byte(payload), &contact); err != nil {
		return "", fmt.Errorf("invalid contact payload: %w", err)
	}
	if contact.ID == "" {
		contact.ID = models.UUID(uuid.New())
	}
	if err := r.UpsertContact(&contact, author); err != nil {
		return "", err
	}
	return contact.ID.String(), nil
}

// GetContactJSON returns one contact as a JSON document. A missing contact
// is an error, never an empty document.
func (r *Repository) GetContactJSON(id string) (string, error) {
	contact, err := r.GetContact(models.UUID(id))
	if err != nil {
		return "", err
	}
	return marshalJSON(contact)
}

// ListContactsJSON returns all contacts as a JSON array. No contacts is an
// empty array, not an error.
func (r *Repository) ListContactsJSON() (string, error) {
	contacts, err := r.ListContacts()
	if err != nil {
		return "", err
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	return marshalJSON(contacts)
}

// DeleteContactJSON deletes a contact by id string.
func (r *Repository) DeleteContactJSON(id string, author string) error {
	return r.DeleteContact(models.UUID(id), author)
}

// AddMessageJSON decodes a message document, assigns an id when absent, and
// inserts it. It returns the message id.
func (r *Repository) AddMessageJSON(payload string, author string) (string, error) {
	var msg models.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return "", fmt.Errorf("invalid message payload: %w", err)
	}
	if msg.ID == "" {
		msg.ID = models.UUID(uuid.New())
	}
	if err := r.AddMessage(&msg, author); err != nil {
		return "", err
	}
	return msg.ID.String(), nil
}

// GetMessageJSON returns one message as a JSON document.
func (r *Repository) GetMessageJSON(id string) (string, error) {
	msg, err := r.GetMessage(models.UUID(id))
	if err != nil {
		return "", err
	}
	return marshalJSON(msg)
}

// UpsertContactStatusJSON decodes and upserts a contact status document.
func (r *Repository) UpsertContactStatusJSON(payload string, author string) error {
	var status models.ContactStatus
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		return fmt.Errorf("invalid contact status payload: %w", err)
	}
	return r.UpsertContactStatus(&status, author)
}

// UpsertSeenAtJSON decodes and upserts a seen-at marker document.
func (r *Repository) UpsertSeenAtJSON(payload string, author string) error {
	var seen models.ContactSeenAt
	if err := json.Unmarshal([]byte(payload), &seen); err != nil {
		return fmt.Errorf("invalid seen-at payload: %w", err)
	}
	return r.UpsertSeenAt(&seen, author)
}

func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize: %w", err)
	}
	return string(data), nil
}
